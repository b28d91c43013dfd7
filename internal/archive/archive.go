// Package archive owns the per-document annotation ledger: a single JSON
// file per document recording every annotation and review event, keyed by
// field name and merged by (task, role). The file layout is a persisted
// contract read directly by external report tools.
package archive

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// FileInfo carries static document metadata, written once on first update.
type FileInfo struct {
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name"`
	StoragePath   string `json:"storage_path,omitempty"`
	UploadTime    string `json:"upload_time,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
}

// TemplateInfo describes the expected field list; refreshed on every write.
type TemplateInfo struct {
	TemplateID    string   `json:"template_id"`
	TemplateName  string   `json:"template_name"`
	FieldsDefined []string `json:"fields_defined"`
	Version       string   `json:"version"`
}

// Entry is one annotation or review event for a single field. At most one
// entry exists per (task_id, role_type) pair within a field's list; a later
// write from the same pair updates the entry in place.
type Entry struct {
	TaskID            string          `json:"task_id"`
	TaskName          string          `json:"task_name"`
	RoleType          string          `json:"role_type"`
	OperationTime     string          `json:"operation_time"`
	UserID            int64           `json:"user_id,omitempty"`
	Username          string          `json:"username,omitempty"`
	AnnotationContent json.RawMessage `json:"annotation_content"`
	ReviewComment     string          `json:"review_comment,omitempty"`
	ExpertNote        string          `json:"expert_note,omitempty"`
	AdjustmentReason  string          `json:"adjustment_reason,omitempty"`
}

// Archive is the full ledger for one document.
type Archive struct {
	FileInfo                *FileInfo          `json:"file_info,omitempty"`
	TemplateInfo            *TemplateInfo      `json:"template_info,omitempty"`
	AnnotationRecords       map[string][]Entry `json:"annotation_records"`
	LatestAnnotationVersion string             `json:"latest_annotation_version,omitempty"`
	LastModifiedTime        string             `json:"last_modified_time,omitempty"`
}

// New returns an empty archive ready for mutation.
func New() *Archive {
	return &Archive{AnnotationRecords: make(map[string][]Entry)}
}

// Parse decodes ledger bytes. It never fails: empty, missing or malformed
// content yields a fresh empty archive so a corrupted file cannot wedge the
// annotation pipeline.
func Parse(data []byte) *Archive {
	if len(bytes.TrimSpace(data)) == 0 {
		return New()
	}
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return New()
	}
	if a.AnnotationRecords == nil {
		a.AnnotationRecords = make(map[string][]Entry)
	}
	return &a
}

// Marshal renders the ledger pretty-printed, the on-disk format.
func (a *Archive) Marshal() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Record is one annotation or review event to merge into the ledger.
type Record struct {
	TaskID        int64
	TaskName      string
	RoleType      string
	UserID        int64
	Username      string
	OperationTime time.Time
	Fields        map[string]json.RawMessage
	ReviewNotes   string // review_comment for reviewers, expert_note for experts
	Version       int    // annotation version, reflected in latest_annotation_version
}

const adjustmentReason = "corrected AI-extracted result"

// Apply merges a record into the ledger under the one-entry-per-(task,role)
// invariant. Fields are visited in sorted order so entry order is stable
// across submissions of the same payload.
func (a *Archive) Apply(rec Record) {
	if a.AnnotationRecords == nil {
		a.AnnotationRecords = make(map[string][]Entry)
	}

	taskID := taskKey(rec.TaskID)
	opTime := rec.OperationTime.Format(time.RFC3339)

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := rec.Fields[name]
		entries := a.AnnotationRecords[name]

		idx := -1
		for i := range entries {
			if entries[i].TaskID == taskID && entries[i].RoleType == rec.RoleType {
				idx = i
				break
			}
		}

		if idx >= 0 {
			e := &entries[idx]
			e.TaskName = rec.TaskName
			e.OperationTime = opTime
			e.UserID = rec.UserID
			e.Username = rec.Username
			e.AnnotationContent = value
			stampNotes(e, rec)
			stampAdjustment(e, entries, idx, value)
		} else {
			entry := Entry{
				TaskID:            taskID,
				TaskName:          rec.TaskName,
				RoleType:          rec.RoleType,
				OperationTime:     opTime,
				UserID:            rec.UserID,
				Username:          rec.Username,
				AnnotationContent: value,
			}
			stampNotes(&entry, rec)
			entries = append(entries, entry)
			stampAdjustment(&entries[len(entries)-1], entries, len(entries)-1, value)
		}
		a.AnnotationRecords[name] = entries
	}

	if rec.Version > 0 {
		a.LatestAnnotationVersion = versionTag(rec.Version)
	}
	a.LastModifiedTime = time.Now().Format(time.RFC3339)
}

// stampNotes attaches reviewer or expert commentary to an entry according to
// its role, clearing stale notes on overwrite.
func stampNotes(e *Entry, rec Record) {
	switch e.RoleType {
	case "reviewer":
		e.ReviewComment = rec.ReviewNotes
	case "expert":
		e.ExpertNote = rec.ReviewNotes
	}
}

// stampAdjustment flags a human correction of an automated result: when an
// ordinary annotator's value differs from the immediately preceding AI
// annotator entry for the same field, adjustment_reason is set; when the
// values agree again it is cleared.
func stampAdjustment(e *Entry, entries []Entry, idx int, value json.RawMessage) {
	if e.RoleType != "ordinary_annotator" || idx == 0 {
		return
	}
	prev := entries[idx-1]
	if prev.RoleType != "ai_annotator" {
		return
	}
	if jsonEqual(prev.AnnotationContent, value) {
		e.AdjustmentReason = ""
	} else {
		e.AdjustmentReason = adjustmentReason
	}
}

// EnsureFileInfo writes the static document section once.
func (a *Archive) EnsureFileInfo(info FileInfo) {
	if a.FileInfo == nil {
		a.FileInfo = &info
	}
}

// SetTemplateInfo refreshes the expected-field section on every write.
func (a *Archive) SetTemplateInfo(info TemplateInfo) {
	a.TemplateInfo = &info
}

// FieldConflicts returns, per field, the entries of any field whose list
// carries more than one distinct annotation value.
func (a *Archive) FieldConflicts() map[string][]Entry {
	conflicts := make(map[string][]Entry)
	for name, entries := range a.AnnotationRecords {
		if len(entries) < 2 {
			continue
		}
		distinct := make(map[string]struct{})
		for _, e := range entries {
			distinct[string(compact(e.AnnotationContent))] = struct{}{}
		}
		if len(distinct) > 1 {
			conflicts[name] = entries
		}
	}
	return conflicts
}

func taskKey(id int64) string {
	return "TASK-" + strconv.FormatInt(id, 10)
}

func versionTag(v int) string {
	return "v" + strconv.Itoa(v)
}

// jsonEqual compares two raw JSON values structurally-enough for the ledger:
// byte equality after compaction.
func jsonEqual(a, b json.RawMessage) bool {
	return bytes.Equal(compact(a), compact(b))
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
