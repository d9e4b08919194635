package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit action vocabulary. Closed set: handlers and services must use these
// constants, never ad hoc strings, so the feed queries stay exhaustive.
const (
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionLoginBlocked    = "LOGIN_BLOCKED"
	ActionLogin2FAPending = "LOGIN_2FA_PENDING"
	ActionAccountLocked   = "ACCOUNT_LOCKED"
	Action2FAFailed       = "2FA_FAILED"
	Action2FAEnabled      = "2FA_ENABLED"
	Action2FADisabled     = "2FA_DISABLED"
	ActionRecoveryUsed    = "RECOVERY_CODE_USED"
	ActionRecoveryRegen   = "RECOVERY_CODES_REGENERATED"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionUserRegistered  = "USER_REGISTERED"
	ActionEmailVerified   = "EMAIL_VERIFIED"
	ActionRoleChanged     = "ROLE_CHANGED"
	ActionPermissionDeny  = "PERMISSION_DENIED"
	ActionCSRFViolation   = "CSRF_VIOLATION"
	ActionRateLimited     = "RATE_LIMIT_EXCEEDED"
)

// SecurityActions is the vocabulary behind the security feed. Successful
// logins are deliberately excluded: the feed is for events worth a second
// look, and a plain success is not one.
var SecurityActions = []string{
	ActionLoginFailed,
	ActionLoginBlocked,
	ActionAccountLocked,
	Action2FAFailed,
	Action2FAEnabled,
	Action2FADisabled,
	ActionRecoveryUsed,
	ActionRecoveryRegen,
	ActionPasswordChanged,
	ActionRoleChanged,
	ActionPermissionDeny,
	ActionCSRFViolation,
	ActionRateLimited,
}

// SuspiciousActions narrows SecurityActions to failures, denials and
// violations only.
var SuspiciousActions = []string{
	ActionLoginFailed,
	ActionLoginBlocked,
	ActionAccountLocked,
	Action2FAFailed,
	ActionPermissionDeny,
	ActionCSRFViolation,
	ActionRateLimited,
}

// AuditLog is an append-only record of every security-relevant action.
// It does NOT use BaseModel because audit rows are never updated or
// soft-deleted; nothing in this codebase issues UPDATE or DELETE on it.
type AuditLog struct {
	ID           uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID             `json:"userID,omitempty" gorm:"type:uuid;index:idx_audit_actor_time,priority:1"`
	Action       string                 `json:"action" gorm:"type:varchar(50);not null;index:idx_audit_action_time,priority:1"`
	ResourceType string                 `json:"resourceType" gorm:"type:varchar(30);not null;index"`
	ResourceID   *uuid.UUID             `json:"resourceID,omitempty" gorm:"type:uuid;index"`
	OldValues    map[string]interface{} `json:"oldValues,omitempty" gorm:"type:jsonb;serializer:json"`
	NewValues    map[string]interface{} `json:"newValues,omitempty" gorm:"type:jsonb;serializer:json"`
	Details      map[string]interface{} `json:"details,omitempty" gorm:"type:jsonb;serializer:json"`
	IPAddress    string                 `json:"ipAddress" gorm:"type:varchar(45);not null"`
	RequestID    string                 `json:"requestID,omitempty" gorm:"type:varchar(36)"`
	CreatedAt    time.Time              `json:"createdAt" gorm:"not null;index:idx_audit_actor_time,priority:2;index:idx_audit_action_time,priority:2"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditExportCursor tracks the last successful export timestamp so the
// periodic object-storage export only ships new rows.
type AuditExportCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LastExportAt  time.Time `json:"lastExportAt" gorm:"not null"`
	ExportedCount int64     `json:"exportedCount" gorm:"not null;default:0"`
}

func (a *AuditExportCursor) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (AuditExportCursor) TableName() string {
	return "audit_export_cursors"
}
