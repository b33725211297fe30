package model

import "time"

// JobRunLog records each cron job execution for operational visibility
type JobRunLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	JobName    string     `gorm:"type:varchar(100);index;not null" json:"job_name"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"type:varchar(20);default:'running'" json:"status"` // running, completed, failed
	Detail     string     `gorm:"type:text" json:"detail,omitempty"`
}
