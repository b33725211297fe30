package model

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionTier determines a coach's plan limits
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierStarter SubscriptionTier = "starter"
	TierPro     SubscriptionTier = "pro"
)

// Coach represents a tenant-owning account. Every student, video,
// lesson and non-system progression path belongs to exactly one coach.
type Coach struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
	Email        string           `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string           `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string           `gorm:"not null" json:"name"`
	Slug         string           `gorm:"uniqueIndex;not null" json:"slug"` // URL-safe public handle
	Bio          string           `gorm:"type:text" json:"bio,omitempty"`
	Tier         SubscriptionTier `gorm:"type:varchar(20);default:'free'" json:"tier"`

	// Plan limits, resolved from Tier at signup (and on upgrade)
	StudentLimit  int   `gorm:"default:5" json:"student_limit"`
	StorageLimit  int64 `gorm:"default:1073741824" json:"storage_limit"` // bytes
	AnalysisLimit int   `gorm:"default:10" json:"analysis_limit"`

	// Running usage counters
	StorageUsed   int64 `gorm:"default:0" json:"storage_used"` // bytes
	AnalysisCount int   `gorm:"default:0" json:"analysis_count"`

	TokenVersion int `gorm:"default:0" json:"-"` // Increment to invalidate all coach tokens

	// Relationships
	Students []Student         `gorm:"foreignKey:CoachID;constraint:OnDelete:CASCADE" json:"students,omitempty"`
	Videos   []Video           `gorm:"foreignKey:CoachID;constraint:OnDelete:CASCADE" json:"-"`
	Lessons  []Lesson          `gorm:"foreignKey:CoachID;constraint:OnDelete:CASCADE" json:"-"`
	Paths    []ProgressionPath `gorm:"foreignKey:CoachID;constraint:OnDelete:CASCADE" json:"-"`
}

// TierLimits returns the (studentLimit, storageLimit, analysisLimit)
// triple for a subscription tier.
func TierLimits(tier SubscriptionTier) (int, int64, int) {
	switch tier {
	case TierStarter:
		return 25, 10 * 1024 * 1024 * 1024, 100
	case TierPro:
		return 200, 100 * 1024 * 1024 * 1024, 1000
	default: // free
		return 5, 1 * 1024 * 1024 * 1024, 10
	}
}
