package model

import (
	"time"

	"gorm.io/gorm"
)

// LessonType classifies a coaching session
type LessonType string

const (
	LessonTypePrivate   LessonType = "private"
	LessonTypeGroup     LessonType = "group"
	LessonTypeClinic    LessonType = "clinic"
	LessonTypeMatchPlay LessonType = "match_play"
	LessonTypeFitness   LessonType = "fitness"
)

// Lesson is a logged coaching session between a coach and one student
type Lesson struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CoachID         uint           `gorm:"index;not null" json:"coach_id"`
	StudentID       uint           `gorm:"index;not null" json:"student_id"`
	Date            time.Time      `gorm:"not null" json:"date"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	Type            LessonType     `gorm:"type:varchar(20);default:'private'" json:"type"`
	Notes           string         `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Coach   Coach         `gorm:"foreignKey:CoachID" json:"-"`
	Student Student       `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Videos  []LessonVideo `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// LessonVideo associates a video with a lesson (many-to-many join)
type LessonVideo struct {
	LessonID uint  `gorm:"primaryKey" json:"lesson_id"`
	VideoID  uint  `gorm:"primaryKey" json:"video_id"`
	LinkedAt int64 `gorm:"autoCreateTime" json:"linked_at"`

	// Relationships
	Lesson Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"-"`
	Video  Video  `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"video,omitempty"`
}
