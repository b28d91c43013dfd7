package entity

import "time"

// AssignmentType identifies the pipeline stage a TaskAssignment belongs to.
type AssignmentType string

const (
	AssignmentTypeAIAnnotation AssignmentType = "AI_ANNOTATION"
	AssignmentTypeAnnotation   AssignmentType = "ANNOTATION"
	AssignmentTypeReview       AssignmentType = "REVIEW"
	AssignmentTypeInspection   AssignmentType = "INSPECTION"
	AssignmentTypeExpertReview AssignmentType = "EXPERT_REVIEW"
)

// roleTypes is the single source of the AssignmentType -> archive role_type
// mapping shared by the allocator, workflow and archive ledger. The string
// values are a persisted contract of the ledger file format.
var roleTypes = map[AssignmentType]string{
	AssignmentTypeAIAnnotation: "ai_annotator",
	AssignmentTypeAnnotation:   "ordinary_annotator",
	AssignmentTypeReview:       "reviewer",
	AssignmentTypeInspection:   "reviewer",
	AssignmentTypeExpertReview: "expert",
}

// eligibleRoles lists which user roles may hold each assignment type. The
// allocator uses it both to validate explicit assignments and to build the
// candidate pool when auto-selecting.
var eligibleRoles = map[AssignmentType][]Role{
	AssignmentTypeAIAnnotation: {RoleAnnotator, RoleAdmin},
	AssignmentTypeAnnotation:   {RoleAnnotator},
	AssignmentTypeReview:       {RoleReviewer, RoleExpert},
	AssignmentTypeInspection:   {RoleReviewer, RoleExpert},
	AssignmentTypeExpertReview: {RoleExpert},
}

// RoleType returns the archive role string for this assignment type.
func (t AssignmentType) RoleType() string {
	if role, ok := roleTypes[t]; ok {
		return role
	}
	return "ordinary_annotator"
}

// EligibleRoles returns the user roles allowed to hold this assignment type.
func (t AssignmentType) EligibleRoles() []Role {
	return eligibleRoles[t]
}

// Eligible reports whether a user of the given role may hold this type.
func (t AssignmentType) Eligible(role Role) bool {
	for _, r := range eligibleRoles[t] {
		if r == role {
			return true
		}
	}
	return false
}

// Valid reports whether t is one of the known assignment types.
func (t AssignmentType) Valid() bool {
	_, ok := roleTypes[t]
	return ok
}

// AssignmentStatus tracks progress of a single assignment.
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentStatusCompleted  AssignmentStatus = "COMPLETED"
	AssignmentStatusRejected   AssignmentStatus = "REJECTED"
)

// TaskAssignment binds one (task, user, type) triple. The triple is unique;
// the allocator treats an existing triple as a skip, and the schema enforces
// it with a unique index.
type TaskAssignment struct {
	ID             int64            `json:"id"`
	TaskID         int64            `json:"task_id"`
	UserID         int64            `json:"user_id"`
	AssignmentType AssignmentType   `json:"assignment_type"`
	Status         AssignmentStatus `json:"status"`
	Notes          string           `json:"notes,omitempty"`
	AssignedAt     time.Time        `json:"assigned_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}
