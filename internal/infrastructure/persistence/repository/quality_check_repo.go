package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// QualityCheckRepository implements port.QualityCheckRepository
type QualityCheckRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQualityCheckRepository creates a new quality check repository
func NewQualityCheckRepository(db *sql.DB, logger *zap.Logger) port.QualityCheckRepository {
	return &QualityCheckRepository{
		db:     db,
		logger: logger,
	}
}

const qualityCheckColumns = `id, task_id, annotator_a_id, annotator_b_id,
	annotation_a_id, annotation_b_id, comparison_result, conflict_fields,
	status, resolved_by_id, selected_side, resolution_notes, resolved_at, created_at`

// Create creates a new quality check
func (r *QualityCheckRepository) Create(ctx context.Context, check *entity.QualityCheck) error {
	query := `
		INSERT INTO quality_checks (
			task_id, annotator_a_id, annotator_b_id, annotation_a_id, annotation_b_id,
			comparison_result, conflict_fields, status,
			resolved_by_id, selected_side, resolution_notes, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	conflictFields, selectedSide, resolutionNotes, resolvedByID, resolvedAt := qualityCheckNulls(check)

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		check.TaskID,
		check.AnnotatorAID,
		check.AnnotatorBID,
		check.AnnotationAID,
		check.AnnotationBID,
		check.ComparisonResult,
		conflictFields,
		check.Status,
		resolvedByID,
		selectedSide,
		resolutionNotes,
		resolvedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create quality check",
			zap.Int64("task_id", check.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create quality check: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	check.ID = id
	return nil
}

// GetByID retrieves a quality check by its ID
func (r *QualityCheckRepository) GetByID(ctx context.Context, id int64) (*entity.QualityCheck, error) {
	query := `SELECT ` + qualityCheckColumns + ` FROM quality_checks WHERE id = ?`

	check, err := scanQualityCheck(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get quality check by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get quality check: %w", err)
	}

	return check, nil
}

// GetByTaskID retrieves the quality check for a task, if any. A task has at
// most one; its existence blocks re-triggering.
func (r *QualityCheckRepository) GetByTaskID(ctx context.Context, taskID int64) (*entity.QualityCheck, error) {
	query := `SELECT ` + qualityCheckColumns + ` FROM quality_checks WHERE task_id = ?`

	check, err := scanQualityCheck(r.getExecutor(ctx).QueryRowContext(ctx, query, taskID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get quality check by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get quality check: %w", err)
	}

	return check, nil
}

// Update updates an existing quality check
func (r *QualityCheckRepository) Update(ctx context.Context, check *entity.QualityCheck) error {
	query := `
		UPDATE quality_checks
		SET comparison_result = ?, conflict_fields = ?, status = ?,
			resolved_by_id = ?, selected_side = ?, resolution_notes = ?, resolved_at = ?
		WHERE id = ?
	`

	conflictFields, selectedSide, resolutionNotes, resolvedByID, resolvedAt := qualityCheckNulls(check)

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		check.ComparisonResult,
		conflictFields,
		check.Status,
		resolvedByID,
		selectedSide,
		resolutionNotes,
		resolvedAt,
		check.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update quality check",
			zap.Int64("id", check.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update quality check: %w", err)
	}

	return nil
}

// ListPending retrieves unresolved quality checks, oldest first
func (r *QualityCheckRepository) ListPending(ctx context.Context, limit, offset int) ([]*entity.QualityCheck, error) {
	query := `SELECT ` + qualityCheckColumns + ` FROM quality_checks
		WHERE status = 'PENDING' ORDER BY created_at LIMIT ? OFFSET ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list pending quality checks", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending quality checks: %w", err)
	}
	defer rows.Close()

	var checks []*entity.QualityCheck
	for rows.Next() {
		check, err := scanQualityCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quality check: %w", err)
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func qualityCheckNulls(c *entity.QualityCheck) (sql.NullString, sql.NullString, sql.NullString, sql.NullInt64, sql.NullTime) {
	var conflictFields, selectedSide, resolutionNotes sql.NullString
	var resolvedByID sql.NullInt64
	var resolvedAt sql.NullTime

	if c.ConflictFields != "" {
		conflictFields = sql.NullString{String: c.ConflictFields, Valid: true}
	}
	if c.SelectedSide != "" {
		selectedSide = sql.NullString{String: c.SelectedSide, Valid: true}
	}
	if c.ResolutionNotes != "" {
		resolutionNotes = sql.NullString{String: c.ResolutionNotes, Valid: true}
	}
	if c.ResolvedByID != nil {
		resolvedByID = sql.NullInt64{Int64: *c.ResolvedByID, Valid: true}
	}
	if c.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *c.ResolvedAt, Valid: true}
	}
	return conflictFields, selectedSide, resolutionNotes, resolvedByID, resolvedAt
}

func scanQualityCheck(row rowScanner) (*entity.QualityCheck, error) {
	var c entity.QualityCheck
	var conflictFields, selectedSide, resolutionNotes sql.NullString
	var resolvedByID sql.NullInt64
	var resolvedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.TaskID,
		&c.AnnotatorAID,
		&c.AnnotatorBID,
		&c.AnnotationAID,
		&c.AnnotationBID,
		&c.ComparisonResult,
		&conflictFields,
		&c.Status,
		&resolvedByID,
		&selectedSide,
		&resolutionNotes,
		&resolvedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conflictFields.Valid {
		c.ConflictFields = conflictFields.String
	}
	if selectedSide.Valid {
		c.SelectedSide = selectedSide.String
	}
	if resolutionNotes.Valid {
		c.ResolutionNotes = resolutionNotes.String
	}
	if resolvedByID.Valid {
		c.ResolvedByID = &resolvedByID.Int64
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}

	return &c, nil
}

// getExecutor returns appropriate executor based on context
func (r *QualityCheckRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.QualityCheckRepository = (*QualityCheckRepository)(nil)
