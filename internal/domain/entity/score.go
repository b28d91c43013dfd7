package entity

import "time"

// ScoreType classifies a score ledger entry.
type ScoreType string

const (
	ScoreTaskCompletion   ScoreType = "TASK_COMPLETION"
	ScoreQualityBonus     ScoreType = "QUALITY_BONUS"
	ScoreReviewBonus      ScoreType = "REVIEW_BONUS"
	ScorePenalty          ScoreType = "PENALTY"
	ScoreManualAdjustment ScoreType = "MANUAL_ADJUSTMENT"
)

// ScoreEntry records one change to a user's score with before/after values.
type ScoreEntry struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ScoreChange    int       `json:"score_change"`
	PreviousScore  int       `json:"previous_score"`
	NewScore       int       `json:"new_score"`
	ScoreType      ScoreType `json:"score_type"`
	Description    string    `json:"description"`
	TaskID         *int64    `json:"task_id,omitempty"`
	QualityCheckID *int64    `json:"quality_check_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
