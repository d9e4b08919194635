package models

import (
	"time"

	"github.com/google/uuid"
)

// MFAConfig holds the per-account second-factor state. TOTPSecret is
// present (encrypted) from the moment setup starts; TOTPEnabled only flips
// after the user confirms a code. RecoveryCodes stores bcrypt hashes as a
// JSON array; plaintexts are returned exactly once at generation time.
type MFAConfig struct {
	BaseModel
	UserID         uuid.UUID  `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	TOTPEnabled    bool       `json:"totpEnabled" gorm:"default:false"`
	TOTPSecret     string     `json:"-" gorm:"type:text"`
	TOTPVerifiedAt *time.Time `json:"totpVerifiedAt,omitempty"`
	RecoveryCodes  string     `json:"-" gorm:"type:text"`
	RecoveryCount  int        `json:"recoveryCodesRemaining" gorm:"default:0"`

	// Code brute-force accounting, independent from the password channel.
	// An attacker holding the correct password must not get unlimited
	// guesses at the 6-digit code.
	FailedAttempts int        `json:"-" gorm:"not null;default:0"`
	LockedUntil    *time.Time `json:"-"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}
