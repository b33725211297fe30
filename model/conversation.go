package model

import (
	"time"

	"gorm.io/gorm"
)

// SenderType identifies which party authored a message. It is always
// derived from the authenticated principal, never from client input.
type SenderType string

const (
	SenderCoach   SenderType = "coach"
	SenderStudent SenderType = "student"
)

// Conversation is the single message thread for a coach-student pair.
// The (coach_id, student_id) pair is unique; GET /conversations/with
// get-or-creates against it.
type Conversation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CoachID   uint           `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"coach_id"`
	StudentID uint           `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"student_id"`

	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CoachUnread   int        `gorm:"default:0" json:"coach_unread"`
	StudentUnread int        `gorm:"default:0" json:"student_unread"`

	// Relationships
	Coach    Coach     `gorm:"foreignKey:CoachID" json:"-"`
	Student  Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// Message is one entry in a conversation
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	ConversationID uint       `gorm:"index;not null" json:"conversation_id"`
	SenderType     SenderType `gorm:"type:varchar(10);not null" json:"sender_type"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	ReadAt         *time.Time `json:"read_at,omitempty"`

	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}
