package entity

import "time"

// TaskStatus represents a task's position in the annotation lifecycle.
type TaskStatus string

const (
	TaskStatusCreated         TaskStatus = "CREATED"
	TaskStatusAIProcessing    TaskStatus = "AI_PROCESSING"
	TaskStatusAICompleted     TaskStatus = "AI_COMPLETED"
	TaskStatusAnnotating      TaskStatus = "ANNOTATING"
	TaskStatusAnnotated       TaskStatus = "ANNOTATED"
	TaskStatusInspecting      TaskStatus = "INSPECTING"
	TaskStatusInspected       TaskStatus = "INSPECTED"
	TaskStatusExpertReviewing TaskStatus = "EXPERT_REVIEWING"
	TaskStatusExpertReviewed  TaskStatus = "EXPERT_REVIEWED"
	TaskStatusReviewed        TaskStatus = "REVIEWED"
	TaskStatusClosed          TaskStatus = "CLOSED"

	// Legacy statuses kept for archives created before the staged lifecycle.
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// statusRank orders the lifecycle so the workflow can refuse backward moves.
// Legacy statuses rank alongside the stage they fold into.
var statusRank = map[TaskStatus]int{
	TaskStatusCreated:         0,
	TaskStatusAssigned:        0,
	TaskStatusAIProcessing:    1,
	TaskStatusAICompleted:     2,
	TaskStatusAnnotating:      3,
	TaskStatusInProgress:      3,
	TaskStatusAnnotated:       4,
	TaskStatusInspecting:      5,
	TaskStatusInspected:       6,
	TaskStatusExpertReviewing: 7,
	TaskStatusExpertReviewed:  8,
	TaskStatusReviewed:        8,
	TaskStatusCompleted:       8,
	TaskStatusClosed:          9,
}

// Rank returns the status position in the forward stage order.
func (s TaskStatus) Rank() int {
	return statusRank[s]
}

// IsTerminal reports whether the workflow never advances past this status on
// its own. CLOSED is only reachable via explicit administrative action.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusExpertReviewed, TaskStatusReviewed, TaskStatusCompleted, TaskStatusClosed:
		return true
	}
	return false
}

// Task is one unit of annotation work bound to a primary document. The
// document metadata is frozen into DocumentIndex at creation time so the task
// survives document deletion.
type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        TaskStatus `json:"status"`
	Priority      int        `json:"priority"`
	CategoryID    *int64     `json:"category_id,omitempty"`
	FormConfig    string     `json:"form_config,omitempty"` // JSON: expected annotation fields
	DocumentID    *int64     `json:"document_id,omitempty"`
	DocumentIndex string     `json:"document_index,omitempty"` // JSON snapshot taken at creation
	BatchID       string     `json:"batch_id,omitempty"`
	BatchName     string     `json:"batch_name,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FormFields decodes the ordered field names out of the task's form config.
type FormConfig struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}
