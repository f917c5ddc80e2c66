package domain

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Identity models the authenticated user as reported by the server. It is
// refreshed on demand by the session service, never cached indefinitely.
type Identity struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	ProfileID string    `json:"profile_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
