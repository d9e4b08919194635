package models

import (
	"time"

	"github.com/google/uuid"
)

type ElectionStatus string

const (
	ElectionStatusScheduled ElectionStatus = "scheduled"
	ElectionStatusOpen      ElectionStatus = "open"
	ElectionStatusClosed    ElectionStatus = "closed"
)

type Election struct {
	BaseModel
	Title          string    `json:"title" gorm:"type:varchar(255);not null"`
	Description    string    `json:"description" gorm:"type:text"`
	OrganizationID uuid.UUID `json:"organizationID" gorm:"type:uuid;not null;index"`
	CreatedByID    uuid.UUID `json:"createdByID" gorm:"type:uuid;not null;index"`
	StartAt        time.Time `json:"startAt" gorm:"not null"`
	EndAt          time.Time `json:"endAt" gorm:"not null"`
}

// Status is derived from the voting window, never stored.
func (e *Election) Status(now time.Time) ElectionStatus {
	switch {
	case now.Before(e.StartAt):
		return ElectionStatusScheduled
	case now.After(e.EndAt):
		return ElectionStatusClosed
	default:
		return ElectionStatusOpen
	}
}
