package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron: c,
		db:   db,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Every 30 minutes: sweep videos stuck in processing
	_, err := m.cron.AddFunc("0 */30 * * * *", func() {
		m.runJob("sweep_stale_processing", m.SweepStaleProcessing)
	})
	if err != nil {
		return err
	}

	// Nightly at 03:00: reconcile storage counters against recorded video sizes
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.runJob("reconcile_storage_usage", m.ReconcileStorageUsage)
	})
	if err != nil {
		return err
	}

	return nil
}

// runJob executes a job and records its outcome in the job run log
func (m *CronManager) runJob(name string, fn func() (string, error)) {
	entry := model.JobRunLog{
		JobName:   name,
		StartedAt: time.Now(),
		Status:    "running",
	}
	if err := m.db.Create(&entry).Error; err != nil {
		log.Printf("Cron job %s: failed to create run log: %v", name, err)
	}

	detail, err := fn()

	now := time.Now()
	entry.FinishedAt = &now
	entry.Detail = detail
	if err != nil {
		entry.Status = "failed"
		entry.Detail = err.Error()
		log.Printf("Cron job %s failed: %v", name, err)
	} else {
		entry.Status = "completed"
	}

	if entry.ID != 0 {
		m.db.Save(&entry)
	}
}
