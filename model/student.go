package model

import (
	"time"

	"gorm.io/gorm"
)

// StudentStatus represents a student's lifecycle state
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
	StudentStatusArchived StudentStatus = "archived"
)

// Student is a coach's client. Archiving is the removal path: it sets
// ArchivedAt instead of deleting the row, so history stays queryable.
type Student struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CoachID      uint           `gorm:"index;not null" json:"coach_id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	DateOfBirth  *time.Time     `json:"date_of_birth,omitempty"`
	Phone        string         `gorm:"type:varchar(30)" json:"phone,omitempty"`
	Notes        string         `gorm:"type:text" json:"notes,omitempty"`
	Status       StudentStatus  `gorm:"type:varchar(20);default:'active'" json:"status"`
	ArchivedAt   *time.Time     `json:"archived_at,omitempty"` // non-nil iff Status == archived

	// Current position in a progression path
	CurrentPathID  *uint `gorm:"index" json:"current_path_id,omitempty"`
	CurrentLevelID *uint `json:"current_level_id,omitempty"`

	TokenVersion int `gorm:"default:0" json:"-"`

	// Relationships
	Coach        Coach            `gorm:"foreignKey:CoachID" json:"-"`
	CurrentPath  *ProgressionPath `gorm:"foreignKey:CurrentPathID" json:"current_path,omitempty"`
	CurrentLevel *Level           `gorm:"foreignKey:CurrentLevelID" json:"current_level,omitempty"`
	Goals        []StudentGoal    `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}
