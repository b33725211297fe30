package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlayerCategory groups progression paths by the kind of player they target
type PlayerCategory string

const (
	CategoryJuniorRed    PlayerCategory = "junior_red"
	CategoryJuniorOrange PlayerCategory = "junior_orange"
	CategoryJuniorGreen  PlayerCategory = "junior_green"
	CategoryJuniorYellow PlayerCategory = "junior_yellow"
	CategoryAdult        PlayerCategory = "adult"
	CategoryPerformance  PlayerCategory = "performance"
)

// ProgressionPath is the root of the four-level curriculum hierarchy
// (path -> levels -> skills -> milestones). System paths are seeded,
// shared across tenants and immutable to coaches; CoachID is nil for
// them.
type ProgressionPath struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CoachID        *uint          `gorm:"index" json:"coach_id,omitempty"` // nil for system paths
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description,omitempty"`
	PlayerCategory PlayerCategory `gorm:"type:varchar(20);not null" json:"player_category"`
	IsSystem       bool           `gorm:"default:false" json:"is_system"`

	// Relationships
	Levels   []Level   `gorm:"foreignKey:PathID;constraint:OnDelete:CASCADE" json:"levels,omitempty"`
	Students []Student `gorm:"foreignKey:CurrentPathID" json:"-"`
}

// Level is an ordered stage within a path
type Level struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PathID      uint      `gorm:"index;not null" json:"path_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	SortOrder   int       `gorm:"not null;default:0" json:"order"` // sort key only, sibling uniqueness not enforced

	// Relationships
	Path   ProgressionPath `gorm:"foreignKey:PathID" json:"-"`
	Skills []Skill         `gorm:"foreignKey:LevelID;constraint:OnDelete:CASCADE" json:"skills,omitempty"`
}

// SkillCategory tags a skill with the part of the game it trains
type SkillCategory string

const (
	SkillCategoryTechnique SkillCategory = "technique"
	SkillCategoryTactics   SkillCategory = "tactics"
	SkillCategoryFitness   SkillCategory = "fitness"
	SkillCategoryMental    SkillCategory = "mental"
)

// Skill is an ordered teaching unit within a level
type Skill struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	LevelID     uint          `gorm:"index;not null" json:"level_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Category    SkillCategory `gorm:"type:varchar(20);default:'technique'" json:"category"`
	SortOrder   int           `gorm:"not null;default:0" json:"order"`

	// Relationships
	Level      Level       `gorm:"foreignKey:LevelID" json:"-"`
	Milestones []Milestone `gorm:"foreignKey:SkillID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
}

// Milestone is a measurable checkpoint within a skill. TargetMetrics is
// free-form structured data (e.g. {"first_serve_pct": 60, "rally_length": 10}).
type Milestone struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	SkillID       uint           `gorm:"index;not null" json:"skill_id"`
	Title         string         `gorm:"not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description,omitempty"`
	SortOrder     int            `gorm:"not null;default:0" json:"order"`
	TargetMetrics datatypes.JSON `json:"target_metrics,omitempty"`

	// Relationships
	Skill Skill `gorm:"foreignKey:SkillID" json:"-"`
}
