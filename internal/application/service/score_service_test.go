package service

import (
	"context"
	"testing"

	"github.com/annoworks/annotation-pipeline/internal/domain/entity"
)

func TestAward(t *testing.T) {
	tests := []struct {
		name       string
		scoreType  entity.ScoreType
		change     int
		wantChange int
		wantErr    bool
	}{
		{name: "task completion uses fixed reward", scoreType: entity.ScoreTaskCompletion, wantChange: 10},
		{name: "review bonus uses fixed reward", scoreType: entity.ScoreReviewBonus, wantChange: 8},
		{name: "quality bonus uses fixed reward", scoreType: entity.ScoreQualityBonus, wantChange: 5},
		{name: "penalty subtracts", scoreType: entity.ScorePenalty, wantChange: -5},
		{name: "manual adjustment honors the request", scoreType: entity.ScoreManualAdjustment, change: -17, wantChange: -17},
		{name: "unknown type is rejected", scoreType: "MYSTERY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var newScore int
			userRepo := &mockUserRepo{
				getByIDFunc: func(ctx context.Context, id int64) (*entity.User, error) {
					return &entity.User{ID: id, Score: 100}, nil
				},
				updateScoreFunc: func(ctx context.Context, id int64, score int) error {
					newScore = score
					return nil
				},
			}
			var entry *entity.ScoreEntry
			scoreRepo := &mockScoreRepo{
				createFunc: func(ctx context.Context, e *entity.ScoreEntry) error {
					entry = e
					return nil
				},
			}
			svc := NewScoreService(userRepo, scoreRepo, &mockTxManager{}, &mockLogger{})

			err := svc.Award(context.Background(), AwardRequest{
				UserID:    1,
				ScoreType: tt.scoreType,
				Change:    tt.change,
			})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Award() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Award() error = %v", err)
			}
			if newScore != 100+tt.wantChange {
				t.Errorf("new score = %d, want %d", newScore, 100+tt.wantChange)
			}
			if entry.ScoreChange != tt.wantChange || entry.PreviousScore != 100 || entry.NewScore != 100+tt.wantChange {
				t.Errorf("history entry = %+v", entry)
			}
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		userRepo := &mockUserRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.User, error) {
				return nil, nil
			},
		}
		svc := NewScoreService(userRepo, &mockScoreRepo{}, &mockTxManager{}, &mockLogger{})
		err := svc.Award(context.Background(), AwardRequest{UserID: 404, ScoreType: entity.ScoreTaskCompletion})
		if err != ErrUserNotFound {
			t.Errorf("Award() error = %v, want ErrUserNotFound", err)
		}
	})
}

func TestHistory(t *testing.T) {
	var gotLimit int
	scoreRepo := &mockScoreRepo{
		getByUserIDFunc: func(ctx context.Context, userID int64, limit, offset int) ([]*entity.ScoreEntry, error) {
			gotLimit = limit
			return []*entity.ScoreEntry{{ID: 1, UserID: userID}}, nil
		},
	}
	svc := NewScoreService(&mockUserRepo{}, scoreRepo, &mockTxManager{}, &mockLogger{})

	entries, err := svc.History(context.Background(), 1, 0, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if gotLimit != 50 {
		t.Errorf("default limit = %d, want 50", gotLimit)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}
