package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new document record
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (original_filename, file_path, file_size, content_type)
		VALUES (?, ?, ?, ?)
	`

	var contentType sql.NullString
	if doc.ContentType != "" {
		contentType = sql.NullString{String: doc.ContentType, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.OriginalFilename,
		doc.FilePath,
		doc.FileSize,
		contentType,
	)
	if err != nil {
		r.logger.Error("Failed to create document",
			zap.String("filename", doc.OriginalFilename),
			zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := `SELECT id, original_filename, file_path, file_size, content_type, created_at
		FROM documents WHERE id = ?`

	var d entity.Document
	var contentType sql.NullString
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.OriginalFilename,
		&d.FilePath,
		&d.FileSize,
		&contentType,
		&d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if contentType.Valid {
		d.ContentType = contentType.String
	}

	return &d, nil
}

// getExecutor returns appropriate executor based on context
func (r *DocumentRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
