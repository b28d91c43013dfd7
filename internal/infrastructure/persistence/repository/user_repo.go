package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, email, role, status, score, lark_id, created_at`

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetActiveByRoles retrieves ACTIVE users holding any of the given roles,
// ordered by creation so ties in allocator load break first-seen.
func (r *UserRepository) GetActiveByRoles(ctx context.Context, roles ...entity.Role) ([]*entity.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(roles))
	placeholders = placeholders[:len(placeholders)-2]
	query := `SELECT ` + userColumns + ` FROM users
		WHERE status = 'ACTIVE' AND role IN (` + placeholders + `) ORDER BY created_at, id`

	args := make([]interface{}, len(roles))
	for i, role := range roles {
		args[i] = role
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get active users by roles", zap.Error(err))
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateScore sets a user's current score
func (r *UserRepository) UpdateScore(ctx context.Context, id int64, score int) error {
	query := `UPDATE users SET score = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, score, id)
	if err != nil {
		r.logger.Error("Failed to update user score",
			zap.Int64("id", id),
			zap.Int("score", score),
			zap.Error(err))
		return fmt.Errorf("failed to update user score: %w", err)
	}

	return nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var email, larkID sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.Role,
		&u.Status,
		&u.Score,
		&larkID,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		u.Email = email.String
	}
	if larkID.Valid {
		u.LarkID = larkID.String
	}

	return &u, nil
}

// getExecutor returns appropriate executor based on context
func (r *UserRepository) getExecutor(ctx context.Context) executor {
	return pickExecutor(ctx, r.db)
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
