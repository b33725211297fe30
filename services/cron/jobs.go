package cron

import (
	"fmt"
	"time"

	"github.com/courtline/courtline-api/model"
)

// staleProcessingAge is how long a video may sit in processing before
// the sweep returns it to uploaded.
const staleProcessingAge = 24 * time.Hour

// SweepStaleProcessing returns videos stuck in the processing state to
// uploaded so they can be retried.
func (m *CronManager) SweepStaleProcessing() (string, error) {
	cutoff := time.Now().Add(-staleProcessingAge)

	result := m.db.Model(&model.Video{}).
		Where("status = ? AND updated_at < ?", model.VideoStatusProcessing, cutoff).
		Update("status", model.VideoStatusUploaded)
	if result.Error != nil {
		return "", result.Error
	}

	return fmt.Sprintf("reset %d stale videos", result.RowsAffected), nil
}

// ReconcileStorageUsage recomputes each coach's storage_used from the
// sum of their live video sizes. The declared-size trust boundary means
// counters can drift from deletes that raced or failed mid-way; this
// job converges them.
func (m *CronManager) ReconcileStorageUsage() (string, error) {
	var coaches []model.Coach
	if err := m.db.Find(&coaches).Error; err != nil {
		return "", err
	}

	fixed := 0
	for i := range coaches {
		var actual int64
		err := m.db.Model(&model.Video{}).
			Where("coach_id = ?", coaches[i].ID).
			Select("COALESCE(SUM(file_size), 0)").
			Scan(&actual).Error
		if err != nil {
			return "", err
		}

		if actual != coaches[i].StorageUsed {
			err := m.db.Model(&model.Coach{}).
				Where("id = ?", coaches[i].ID).
				Update("storage_used", actual).Error
			if err != nil {
				return "", err
			}
			fixed++
		}
	}

	return fmt.Sprintf("checked %d coaches, corrected %d counters", len(coaches), fixed), nil
}
