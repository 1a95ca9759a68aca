package model

import "time"

// Role values. Anything else resolves to the least-privileged outcome.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserProfile is the document stored at users/{userId}, keyed by the identity
// provider's user id. A profile must exist for a session's user id or the
// session is terminated; identity alone never grants access.
type UserProfile struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role,omitempty"`
	Active       *bool     `json:"active,omitempty"`
	Department   string    `json:"department,omitempty"`
	RegisteredAt time.Time `json:"registeredAt,omitempty"`
	ModifiedBy   string    `json:"modifiedBy,omitempty"`
	ModifiedAt   time.Time `json:"modifiedAt,omitempty"`
}

// IsActive reports whether the profile may act. Absent means active.
func (p UserProfile) IsActive() bool {
	return p.Active == nil || *p.Active
}

// EffectiveRole resolves the profile role, defaulting to the least privilege.
func (p UserProfile) EffectiveRole() string {
	if p.Role == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// UserWithID pairs a profile with its store key for admin listings.
type UserWithID struct {
	ID string `json:"id"`
	UserProfile
}
