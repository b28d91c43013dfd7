package service

import (
	"context"
	"fmt"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

// defaultScoreChanges holds the fixed reward per score type. Manual
// adjustments carry their own value.
var defaultScoreChanges = map[entity.ScoreType]int{
	entity.ScoreTaskCompletion: 10,
	entity.ScoreReviewBonus:    8,
	entity.ScoreQualityBonus:   5,
	entity.ScorePenalty:        -5,
}

// AwardRequest describes one score change to apply
type AwardRequest struct {
	UserID         int64
	ScoreType      entity.ScoreType
	Change         int // only honored for MANUAL_ADJUSTMENT
	Description    string
	TaskID         *int64
	QualityCheckID *int64
}

// ScoreService maintains user scores and their audit history
type ScoreService interface {
	Award(ctx context.Context, req AwardRequest) error
	History(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error)
}

type scoreServiceImpl struct {
	userRepo  port.UserRepository
	scoreRepo port.ScoreRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewScoreService creates a new ScoreService
func NewScoreService(
	userRepo port.UserRepository,
	scoreRepo port.ScoreRepository,
	txManager port.TransactionManager,
	logger Logger,
) ScoreService {
	return &scoreServiceImpl{
		userRepo:  userRepo,
		scoreRepo: scoreRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// Award applies one score change and appends the history row atomically
func (s *scoreServiceImpl) Award(ctx context.Context, req AwardRequest) error {
	change, ok := defaultScoreChanges[req.ScoreType]
	if !ok {
		if req.ScoreType != entity.ScoreManualAdjustment {
			return fmt.Errorf("unknown score type: %s", req.ScoreType)
		}
		change = req.Change
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.GetByID(txCtx, req.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		newScore := user.Score + change
		if err := s.userRepo.UpdateScore(txCtx, req.UserID, newScore); err != nil {
			return fmt.Errorf("update score: %w", err)
		}

		entry := &entity.ScoreEntry{
			UserID:         req.UserID,
			ScoreChange:    change,
			PreviousScore:  user.Score,
			NewScore:       newScore,
			ScoreType:      req.ScoreType,
			Description:    req.Description,
			TaskID:         req.TaskID,
			QualityCheckID: req.QualityCheckID,
		}
		if err := s.scoreRepo.Create(txCtx, entry); err != nil {
			return fmt.Errorf("create score entry: %w", err)
		}

		s.logger.Info("Score awarded",
			"user_id", req.UserID,
			"type", string(req.ScoreType),
			"change", change,
			"new_score", newScore)
		return nil
	})
}

// History returns a user's score changes, newest first
func (s *scoreServiceImpl) History(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.scoreRepo.GetByUserID(ctx, userID, limit, offset)
}
