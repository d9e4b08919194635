package models

import "github.com/google/uuid"

type Organization struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	OwnerID     uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`
	Users       []User    `json:"-" gorm:"foreignKey:OrganizationID"`
}
