package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VideoStatus tracks a video through its lifecycle
type VideoStatus string

const (
	VideoStatusUploaded   VideoStatus = "uploaded"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusAnalyzed   VideoStatus = "analyzed"
)

// StrokeType tags which stroke a video captures
type StrokeType string

const (
	StrokeServe     StrokeType = "serve"
	StrokeForehand  StrokeType = "forehand"
	StrokeBackhand  StrokeType = "backhand"
	StrokeVolley    StrokeType = "volley"
	StrokeOverhead  StrokeType = "overhead"
	StrokeSlice     StrokeType = "slice"
	StrokeMatchPlay StrokeType = "match_play"
)

// Video stores metadata for a clip uploaded by a coach. The bytes live
// in object storage under StorageKey; they never transit this API.
// FileSize is the client-declared size used for quota accounting.
type Video struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CoachID       uint           `gorm:"index;not null" json:"coach_id"`
	StudentID     uint           `gorm:"index;not null" json:"student_id"`
	Title         string         `json:"title,omitempty"`
	StorageKey    string         `gorm:"not null;uniqueIndex" json:"storage_key"`
	StorageBucket string         `gorm:"not null" json:"storage_bucket"`
	FileSize      int64          `gorm:"not null" json:"file_size"` // bytes, as declared at presign/complete
	ContentType   string         `gorm:"type:varchar(100)" json:"content_type,omitempty"`
	Status        VideoStatus    `gorm:"type:varchar(20);default:'uploaded'" json:"status"`
	StrokeType    *StrokeType    `gorm:"type:varchar(20)" json:"stroke_type,omitempty"`
	Notes         string         `gorm:"type:text" json:"notes,omitempty"`

	// Relationships
	Coach    Coach          `gorm:"foreignKey:CoachID" json:"-"`
	Student  Student        `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Analysis *VideoAnalysis `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"analysis,omitempty"`
}

// AnalysisStatus tracks a video analysis run
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// VideoAnalysis holds analysis output for a video. Metrics and Insights
// are opaque JSON produced by the analysis pipeline.
type VideoAnalysis struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	VideoID   uint           `gorm:"uniqueIndex;not null" json:"video_id"`
	Status    AnalysisStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Metrics   datatypes.JSON `json:"metrics,omitempty"`
	Insights  datatypes.JSON `json:"insights,omitempty"`

	Video Video `gorm:"foreignKey:VideoID" json:"-"`
}
