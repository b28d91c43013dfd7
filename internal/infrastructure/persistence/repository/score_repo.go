package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// ScoreRepository implements port.ScoreRepository
type ScoreRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScoreRepository creates a new score history repository
func NewScoreRepository(db *sql.DB, logger *zap.Logger) port.ScoreRepository {
	return &ScoreRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a score history row
func (r *ScoreRepository) Create(ctx context.Context, entry *entity.ScoreEntry) error {
	query := `
		INSERT INTO score_history (
			user_id, score_change, previous_score, new_score,
			score_type, description, task_id, quality_check_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var taskID, qualityCheckID sql.NullInt64
	if entry.TaskID != nil {
		taskID = sql.NullInt64{Int64: *entry.TaskID, Valid: true}
	}
	if entry.QualityCheckID != nil {
		qualityCheckID = sql.NullInt64{Int64: *entry.QualityCheckID, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.UserID,
		entry.ScoreChange,
		entry.PreviousScore,
		entry.NewScore,
		entry.ScoreType,
		entry.Description,
		taskID,
		qualityCheckID,
	)
	if err != nil {
		r.logger.Error("Failed to create score entry",
			zap.Int64("user_id", entry.UserID),
			zap.String("type", string(entry.ScoreType)),
			zap.Error(err))
		return fmt.Errorf("failed to create score entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByUserID retrieves a user's score history, newest first
func (r *ScoreRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error) {
	query := `
		SELECT id, user_id, score_change, previous_score, new_score,
			score_type, description, task_id, quality_check_id, created_at
		FROM score_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get score history",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ScoreEntry
	for rows.Next() {
		var e entity.ScoreEntry
		var taskID, qualityCheckID sql.NullInt64
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.ScoreChange,
			&e.PreviousScore,
			&e.NewScore,
			&e.ScoreType,
			&e.Description,
			&taskID,
			&qualityCheckID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score entry: %w", err)
		}
		if taskID.Valid {
			e.TaskID = &taskID.Int64
		}
		if qualityCheckID.Valid {
			e.QualityCheckID = &qualityCheckID.Int64
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *ScoreRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.ScoreRepository = (*ScoreRepository)(nil)
