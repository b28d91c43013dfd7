package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
	}
}

const assignmentColumns = `id, task_id, user_id, assignment_type, status, notes,
	assigned_at, completed_at`

// Create creates a new assignment. The unique index on
// (task_id, user_id, assignment_type) rejects duplicate triples.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *entity.TaskAssignment) error {
	query := `
		INSERT INTO task_assignments (task_id, user_id, assignment_type, status, notes)
		VALUES (?, ?, ?, ?, ?)
	`

	var notes sql.NullString
	if assignment.Notes != "" {
		notes = sql.NullString{String: assignment.Notes, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		assignment.TaskID,
		assignment.UserID,
		assignment.AssignmentType,
		assignment.Status,
		notes,
	)
	if err != nil {
		r.logger.Error("Failed to create assignment",
			zap.Int64("task_id", assignment.TaskID),
			zap.Int64("user_id", assignment.UserID),
			zap.String("type", string(assignment.AssignmentType)),
			zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	assignment.ID = id
	return nil
}

// GetByID retrieves an assignment by its ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*entity.TaskAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE id = ?`

	assignment, err := scanAssignment(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get assignment by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return assignment, nil
}

// GetByTaskID retrieves all assignments for a task
func (r *AssignmentRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE task_id = ? ORDER BY assigned_at`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get assignments by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// GetByTaskAndType retrieves a task's assignments of one stage type
func (r *AssignmentRepository) GetByTaskAndType(ctx context.Context, taskID int64, assignmentType entity.AssignmentType) ([]*entity.TaskAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments
		WHERE task_id = ? AND assignment_type = ? ORDER BY assigned_at`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID, assignmentType)
	if err != nil {
		r.logger.Error("Failed to get assignments by task and type",
			zap.Int64("task_id", taskID),
			zap.String("type", string(assignmentType)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// Exists reports whether a (task, user, type) triple already exists
func (r *AssignmentRepository) Exists(ctx context.Context, taskID, userID int64, assignmentType entity.AssignmentType) (bool, error) {
	query := `SELECT COUNT(1) FROM task_assignments
		WHERE task_id = ? AND user_id = ? AND assignment_type = ?`

	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, taskID, userID, assignmentType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment existence: %w", err)
	}
	return count > 0, nil
}

// Update updates an existing assignment
func (r *AssignmentRepository) Update(ctx context.Context, assignment *entity.TaskAssignment) error {
	query := `
		UPDATE task_assignments
		SET status = ?, notes = ?, completed_at = ?
		WHERE id = ?
	`

	var notes sql.NullString
	var completedAt sql.NullTime
	if assignment.Notes != "" {
		notes = sql.NullString{String: assignment.Notes, Valid: true}
	}
	if assignment.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *assignment.CompletedAt, Valid: true}
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		assignment.Status,
		notes,
		completedAt,
		assignment.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update assignment",
			zap.Int64("id", assignment.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	return nil
}

// CountActiveByUser counts a user's not-yet-finished assignments of a type.
// Used by the allocator's least-loaded selection.
func (r *AssignmentRepository) CountActiveByUser(ctx context.Context, userID int64, assignmentType entity.AssignmentType) (int, error) {
	query := `SELECT COUNT(1) FROM task_assignments
		WHERE user_id = ? AND assignment_type = ? AND status IN ('ASSIGNED', 'IN_PROGRESS')`

	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, userID, assignmentType).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count active assignments",
			zap.Int64("user_id", userID),
			zap.String("type", string(assignmentType)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count active assignments: %w", err)
	}
	return count, nil
}

func scanAssignment(row rowScanner) (*entity.TaskAssignment, error) {
	var a entity.TaskAssignment
	var notes sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.UserID,
		&a.AssignmentType,
		&a.Status,
		&notes,
		&a.AssignedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if notes.Valid {
		a.Notes = notes.String
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}

	return &a, nil
}

func scanAssignments(rows *sql.Rows) ([]*entity.TaskAssignment, error) {
	var assignments []*entity.TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *AssignmentRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
