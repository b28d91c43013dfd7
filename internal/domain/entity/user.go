package entity

import "time"

// Role is a user's function in the annotation pipeline.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAnnotator Role = "ANNOTATOR"
	RoleReviewer  Role = "REVIEWER"
	RoleExpert    Role = "EXPERT"
)

// UserStatus gates assignment eligibility.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User is an annotator, reviewer, expert or administrator. Authentication is
// handled upstream; the pipeline only consumes identity and role.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	Score     int        `json:"score"`
	LarkID    string     `json:"lark_id,omitempty"` // IM identity for reviewer notifications
	CreatedAt time.Time  `json:"created_at"`
}
