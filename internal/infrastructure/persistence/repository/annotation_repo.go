package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// AnnotationRepository implements port.AnnotationRepository
type AnnotationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnnotationRepository creates a new annotation repository
func NewAnnotationRepository(db *sql.DB, logger *zap.Logger) port.AnnotationRepository {
	return &AnnotationRepository{
		db:     db,
		logger: logger,
	}
}

const annotationColumns = `id, task_id, task_assignment_id, annotation_data, version,
	status, confidence_score, submitted_at, reviewer_id, reviewed_at, review_notes,
	created_at, updated_at`

// Create creates a new annotation
func (r *AnnotationRepository) Create(ctx context.Context, annotation *entity.Annotation) error {
	query := `
		INSERT INTO annotations (
			task_id, task_assignment_id, annotation_data, version, status,
			confidence_score, submitted_at, reviewer_id, reviewed_at, review_notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	confidence, submittedAt, reviewerID, reviewedAt, reviewNotes := annotationNulls(annotation)

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		annotation.TaskID,
		annotation.TaskAssignmentID,
		annotation.AnnotationData,
		annotation.Version,
		annotation.Status,
		confidence,
		submittedAt,
		reviewerID,
		reviewedAt,
		reviewNotes,
	)
	if err != nil {
		r.logger.Error("Failed to create annotation",
			zap.Int64("task_id", annotation.TaskID),
			zap.Int64("assignment_id", annotation.TaskAssignmentID),
			zap.Error(err))
		return fmt.Errorf("failed to create annotation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	annotation.ID = id
	return nil
}

// GetByID retrieves an annotation by its ID
func (r *AnnotationRepository) GetByID(ctx context.Context, id int64) (*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE id = ?`

	annotation, err := scanAnnotation(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get annotation by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	return annotation, nil
}

// GetByAssignmentID retrieves the single annotation for an assignment
func (r *AnnotationRepository) GetByAssignmentID(ctx context.Context, assignmentID int64) (*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE task_assignment_id = ?`

	annotation, err := scanAnnotation(r.getExecutor(ctx).QueryRowContext(ctx, query, assignmentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get annotation by assignment ID",
			zap.Int64("assignment_id", assignmentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	return annotation, nil
}

// GetByTaskID retrieves all annotations for a task
func (r *AnnotationRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE task_id = ? ORDER BY created_at`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get annotations by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get annotations: %w", err)
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

// GetSubmittedByTaskID retrieves submitted (not draft) annotations for a task
func (r *AnnotationRepository) GetSubmittedByTaskID(ctx context.Context, taskID int64) ([]*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations
		WHERE task_id = ? AND status != 'DRAFT' ORDER BY submitted_at`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get submitted annotations",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get submitted annotations: %w", err)
	}
	defer rows.Close()

	return scanAnnotations(rows)
}

// Update updates an existing annotation
func (r *AnnotationRepository) Update(ctx context.Context, annotation *entity.Annotation) error {
	query := `
		UPDATE annotations
		SET annotation_data = ?, version = ?, status = ?, confidence_score = ?,
			submitted_at = ?, reviewer_id = ?, reviewed_at = ?, review_notes = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	confidence, submittedAt, reviewerID, reviewedAt, reviewNotes := annotationNulls(annotation)

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		annotation.AnnotationData,
		annotation.Version,
		annotation.Status,
		confidence,
		submittedAt,
		reviewerID,
		reviewedAt,
		reviewNotes,
		annotation.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update annotation",
			zap.Int64("id", annotation.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update annotation: %w", err)
	}

	return nil
}

func annotationNulls(a *entity.Annotation) (sql.NullFloat64, sql.NullTime, sql.NullInt64, sql.NullTime, sql.NullString) {
	var confidence sql.NullFloat64
	var submittedAt, reviewedAt sql.NullTime
	var reviewerID sql.NullInt64
	var reviewNotes sql.NullString

	if a.ConfidenceScore != nil {
		confidence = sql.NullFloat64{Float64: *a.ConfidenceScore, Valid: true}
	}
	if a.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *a.SubmittedAt, Valid: true}
	}
	if a.ReviewerID != nil {
		reviewerID = sql.NullInt64{Int64: *a.ReviewerID, Valid: true}
	}
	if a.ReviewedAt != nil {
		reviewedAt = sql.NullTime{Time: *a.ReviewedAt, Valid: true}
	}
	if a.ReviewNotes != "" {
		reviewNotes = sql.NullString{String: a.ReviewNotes, Valid: true}
	}
	return confidence, submittedAt, reviewerID, reviewedAt, reviewNotes
}

func scanAnnotation(row rowScanner) (*entity.Annotation, error) {
	var a entity.Annotation
	var confidence sql.NullFloat64
	var submittedAt, reviewedAt sql.NullTime
	var reviewerID sql.NullInt64
	var reviewNotes sql.NullString

	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.TaskAssignmentID,
		&a.AnnotationData,
		&a.Version,
		&a.Status,
		&confidence,
		&submittedAt,
		&reviewerID,
		&reviewedAt,
		&reviewNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if confidence.Valid {
		a.ConfidenceScore = &confidence.Float64
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Time
	}
	if reviewerID.Valid {
		a.ReviewerID = &reviewerID.Int64
	}
	if reviewedAt.Valid {
		a.ReviewedAt = &reviewedAt.Time
	}
	if reviewNotes.Valid {
		a.ReviewNotes = reviewNotes.String
	}

	return &a, nil
}

func scanAnnotations(rows *sql.Rows) ([]*entity.Annotation, error) {
	var annotations []*entity.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *AnnotationRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.AnnotationRepository = (*AnnotationRepository)(nil)
