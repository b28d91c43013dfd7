package entity

import "time"

// ComparisonResult classifies how two independent annotations compare.
type ComparisonResult string

const (
	ComparisonMatch        ComparisonResult = "MATCH"
	ComparisonPartialMatch ComparisonResult = "PARTIAL_MATCH"
	ComparisonConflict     ComparisonResult = "CONFLICT"
)

// QualityCheckStatus tracks the lifecycle of a double-blind comparison case.
type QualityCheckStatus string

const (
	QualityCheckPending   QualityCheckStatus = "PENDING"
	QualityCheckResolved  QualityCheckStatus = "RESOLVED"
	QualityCheckEscalated QualityCheckStatus = "ESCALATED"
)

// QualityCheck is created when the second independent ANNOTATION assignment
// of a task completes. It snapshots the two annotators and their annotations;
// once RESOLVED only the audit fields recorded at resolution time remain
// mutable-by-history.
type QualityCheck struct {
	ID               int64              `json:"id"`
	TaskID           int64              `json:"task_id"`
	AnnotatorAID     int64              `json:"annotator_a_id"`
	AnnotatorBID     int64              `json:"annotator_b_id"`
	AnnotationAID    int64              `json:"annotation_a_id"`
	AnnotationBID    int64              `json:"annotation_b_id"`
	ComparisonResult ComparisonResult   `json:"comparison_result"`
	ConflictFields   string             `json:"conflict_fields,omitempty"`
	Status           QualityCheckStatus `json:"status"`
	ResolvedByID     *int64             `json:"resolved_by_id,omitempty"`
	SelectedSide     string             `json:"selected_side,omitempty"` // "A" or "B"
	ResolutionNotes  string             `json:"resolution_notes,omitempty"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}
