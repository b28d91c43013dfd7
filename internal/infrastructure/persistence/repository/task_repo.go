package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `id, title, description, status, priority, category_id,
	form_config, document_id, document_index, batch_id, batch_name,
	submitted_at, created_at, updated_at`

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			title, description, status, priority, category_id,
			form_config, document_id, document_index, batch_id, batch_name,
			submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var description, formConfig, documentIndex, batchID, batchName sql.NullString
	var categoryID, documentID sql.NullInt64
	var submittedAt sql.NullTime

	if task.Description != "" {
		description = sql.NullString{String: task.Description, Valid: true}
	}
	if task.FormConfig != "" {
		formConfig = sql.NullString{String: task.FormConfig, Valid: true}
	}
	if task.DocumentIndex != "" {
		documentIndex = sql.NullString{String: task.DocumentIndex, Valid: true}
	}
	if task.BatchID != "" {
		batchID = sql.NullString{String: task.BatchID, Valid: true}
	}
	if task.BatchName != "" {
		batchName = sql.NullString{String: task.BatchName, Valid: true}
	}
	if task.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *task.CategoryID, Valid: true}
	}
	if task.DocumentID != nil {
		documentID = sql.NullInt64{Int64: *task.DocumentID, Valid: true}
	}
	if task.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *task.SubmittedAt, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.Title,
		description,
		task.Status,
		task.Priority,
		categoryID,
		formConfig,
		documentID,
		documentIndex,
		batchID,
		batchName,
		submittedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("title", task.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	query := `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, category_id = ?,
			form_config = ?, document_id = ?, document_index = ?,
			batch_id = ?, batch_name = ?, submitted_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var description, formConfig, documentIndex, batchID, batchName sql.NullString
	var categoryID, documentID sql.NullInt64
	var submittedAt sql.NullTime

	if task.Description != "" {
		description = sql.NullString{String: task.Description, Valid: true}
	}
	if task.FormConfig != "" {
		formConfig = sql.NullString{String: task.FormConfig, Valid: true}
	}
	if task.DocumentIndex != "" {
		documentIndex = sql.NullString{String: task.DocumentIndex, Valid: true}
	}
	if task.BatchID != "" {
		batchID = sql.NullString{String: task.BatchID, Valid: true}
	}
	if task.BatchName != "" {
		batchName = sql.NullString{String: task.BatchName, Valid: true}
	}
	if task.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *task.CategoryID, Valid: true}
	}
	if task.DocumentID != nil {
		documentID = sql.NullInt64{Int64: *task.DocumentID, Valid: true}
	}
	if task.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *task.SubmittedAt, Valid: true}
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.Title,
		description,
		task.Status,
		task.Priority,
		categoryID,
		formConfig,
		documentID,
		documentIndex,
		batchID,
		batchName,
		submittedAt,
		task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Int64("id", task.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// UpdateStatus updates task status
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	query := `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update task status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	return nil
}

// SetBatch stamps the submission batch onto a task
func (r *TaskRepository) SetBatch(ctx context.Context, id int64, batchID, batchName string, submittedAt time.Time) error {
	query := `
		UPDATE tasks
		SET batch_id = ?, batch_name = ?, submitted_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, batchID, batchName, submittedAt, id)
	if err != nil {
		r.logger.Error("Failed to set task batch",
			zap.Int64("id", id),
			zap.String("batch_id", batchID),
			zap.Error(err))
		return fmt.Errorf("failed to set task batch: %w", err)
	}

	return nil
}

// SetSubmittedAt refreshes the task's latest submission time
func (r *TaskRepository) SetSubmittedAt(ctx context.Context, id int64, submittedAt time.Time) error {
	query := `
		UPDATE tasks
		SET submitted_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, submittedAt, id)
	if err != nil {
		r.logger.Error("Failed to set task submission time",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to set task submission time: %w", err)
	}

	return nil
}

// List retrieves tasks, optionally filtered by status
func (r *TaskRepository) List(ctx context.Context, status entity.TaskStatus, limit, offset int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// GetByDocumentID retrieves all tasks bound to a document
func (r *TaskRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE document_id = ? ORDER BY created_at`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get tasks by document ID",
			zap.Int64("document_id", documentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tasks by document: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var task entity.Task
	var description, formConfig, documentIndex, batchID, batchName sql.NullString
	var categoryID, documentID sql.NullInt64
	var submittedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&categoryID,
		&formConfig,
		&documentID,
		&documentIndex,
		&batchID,
		&batchName,
		&submittedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = description.String
	}
	if formConfig.Valid {
		task.FormConfig = formConfig.String
	}
	if documentIndex.Valid {
		task.DocumentIndex = documentIndex.String
	}
	if batchID.Valid {
		task.BatchID = batchID.String
	}
	if batchName.Valid {
		task.BatchName = batchName.String
	}
	if categoryID.Valid {
		task.CategoryID = &categoryID.Int64
	}
	if documentID.Valid {
		task.DocumentID = &documentID.Int64
	}
	if submittedAt.Valid {
		task.SubmittedAt = &submittedAt.Time
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *TaskRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
