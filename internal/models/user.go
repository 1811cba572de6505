package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user role in the platform.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Status is the account lifecycle state of a user.
// Organizers start pending and are approved or suspended by an admin.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"
)

// ValidStatusTransition reports whether a status change is allowed.
// Accounts are never deleted; suspension is reversible.
func ValidStatusTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusSuspended
	case StatusApproved:
		return to == StatusSuspended
	case StatusSuspended:
		return to == StatusApproved
	}
	return false
}

// User represents a platform account (organizer or admin).
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Phone         *string   `json:"phone,omitempty"`
	Password      string    `json:"-"`
	Role          Role      `json:"role"`
	Name          string    `json:"name,omitempty"`
	BusinessName  string    `json:"businessName,omitempty"`
	Status        Status    `json:"status"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Phone         *string   `json:"phone,omitempty"`
	Role          Role      `json:"role"`
	Name          string    `json:"name,omitempty"`
	BusinessName  string    `json:"businessName,omitempty"`
	Status        Status    `json:"status"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:            u.ID,
		Email:         u.Email,
		Phone:         u.Phone,
		Role:          u.Role,
		Name:          u.Name,
		BusinessName:  u.BusinessName,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
