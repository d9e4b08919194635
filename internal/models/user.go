package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleOrganizer UserRole = "organizer"
	UserRoleVoter     UserRole = "voter"
)

type User struct {
	BaseModel
	Email          string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Username       string     `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"type:text;not null"`
	FirstName      string     `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName       string     `json:"lastName" gorm:"type:varchar(100);not null"`
	Role           UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'voter'"`
	OrganizationID *uuid.UUID `json:"organizationID,omitempty" gorm:"type:uuid;index"`
	EmailVerified  bool       `json:"emailVerified" gorm:"not null;default:false"`

	// Password brute-force accounting. LockedUntil in the future means the
	// account rejects login attempts before any password comparison.
	FailedLoginAttempts int        `json:"-" gorm:"not null;default:0"`
	LockedUntil         *time.Time `json:"-"`
}
