package services

import "errors"

// Expected, user-facing outcomes. Handlers map these to structured
// rejections; they are never allowed to escape as unhandled faults.
var (
	// ErrInvalidCredentials deliberately merges "unknown identifier" and
	// "wrong password" so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked carries no countdown: disclosing the exact unlock
	// time would hand an attacker a retry schedule.
	ErrAccountLocked = errors.New("account temporarily locked, try again later")

	ErrEmailUnverified = errors.New("please verify your email address before signing in")

	ErrInvalidSecondFactorCode = errors.New("invalid verification code")

	// ErrSecondFactorConflict covers enabling without setup, enabling
	// twice, and verification against a factor that is not enabled.
	ErrSecondFactorConflict = errors.New("two-factor authentication is not in a valid state for this operation")

	ErrInvalidChallenge = errors.New("invalid or expired login challenge")
)
