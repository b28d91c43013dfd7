package entity

import "time"

// Document is an uploaded source file under annotation. Upload, storage and
// checksum dedup live outside this service; the pipeline reads metadata and
// owns the per-document archive ledger keyed by ID.
type Document struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	ContentType      string    `json:"content_type,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
