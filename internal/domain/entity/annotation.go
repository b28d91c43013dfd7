package entity

import "time"

// AnnotationStatus tracks the review lifecycle of a submitted annotation.
type AnnotationStatus string

const (
	AnnotationStatusDraft     AnnotationStatus = "DRAFT"
	AnnotationStatusSubmitted AnnotationStatus = "SUBMITTED"
	AnnotationStatusApproved  AnnotationStatus = "APPROVED"
	AnnotationStatusRejected  AnnotationStatus = "REJECTED"
)

// Annotation is the payload a user submitted for one TaskAssignment. Exactly
// one row exists per (task, assignment) pair; resubmission replaces the row
// in place and bumps Version. The archive ledger is the durable history.
type Annotation struct {
	ID               int64            `json:"id"`
	TaskID           int64            `json:"task_id"`
	TaskAssignmentID int64            `json:"task_assignment_id"`
	AnnotationData   string           `json:"annotation_data"` // serialized field -> value map
	Version          int              `json:"version"`
	Status           AnnotationStatus `json:"status"`
	ConfidenceScore  *float64         `json:"confidence_score,omitempty"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	ReviewerID       *int64           `json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
	ReviewNotes      string           `json:"review_notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
