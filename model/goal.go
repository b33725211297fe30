package model

import (
	"time"

	"gorm.io/gorm"
)

// GoalStatus represents the state of a student goal
type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusAchieved   GoalStatus = "achieved"
	GoalStatusPaused     GoalStatus = "paused"
	GoalStatusAbandoned  GoalStatus = "abandoned"
)

// GoalCategory classifies what a goal is about
type GoalCategory string

const (
	GoalCategorySkill       GoalCategory = "skill_improvement"
	GoalCategoryFitness     GoalCategory = "fitness"
	GoalCategoryMental      GoalCategory = "mental"
	GoalCategoryCompetition GoalCategory = "competition"
	GoalCategoryRanking     GoalCategory = "ranking"
)

// StudentGoal is owned by a student. Only the owning student may change
// its core fields; the student's coach may only read it (when
// CoachVisible) and set CoachNotes. AchievedAt is non-nil iff
// Status == achieved.
type StudentGoal struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	StudentID   uint           `gorm:"index;not null" json:"student_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Category    GoalCategory   `gorm:"type:varchar(30);default:'skill_improvement'" json:"category"`
	Status      GoalStatus     `gorm:"type:varchar(20);default:'in_progress'" json:"status"`
	Progress    int            `gorm:"default:0" json:"progress"` // 0-100, independent of status
	TargetDate  *time.Time     `json:"target_date,omitempty"`
	AchievedAt  *time.Time     `json:"achieved_at,omitempty"`

	LinkedMilestoneID *uint  `gorm:"index" json:"linked_milestone_id,omitempty"`
	CoachVisible      bool   `gorm:"default:false" json:"coach_visible"`
	CoachNotes        string `gorm:"type:text" json:"coach_notes,omitempty"`

	// Relationships
	Student         Student    `gorm:"foreignKey:StudentID" json:"-"`
	LinkedMilestone *Milestone `gorm:"foreignKey:LinkedMilestoneID" json:"linked_milestone,omitempty"`
}
