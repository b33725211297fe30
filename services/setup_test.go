package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courtline/courtline-api/model"
)

// openTestDB opens an in-memory SQLite database with the full schema
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database keeps the schema visible across pooled
	// connections while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Coach{},
		&model.Student{},
		&model.ProgressionPath{},
		&model.Level{},
		&model.Skill{},
		&model.Milestone{},
		&model.StudentGoal{},
		&model.Video{},
		&model.VideoAnalysis{},
		&model.Lesson{},
		&model.LessonVideo{},
		&model.Conversation{},
		&model.Message{},
		&model.JobRunLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// createTestCoach inserts a coach with free-tier limits
func createTestCoach(t *testing.T, db *gorm.DB, email, slug string) *model.Coach {
	t.Helper()

	studentLimit, storageLimit, analysisLimit := model.TierLimits(model.TierFree)
	coach := model.Coach{
		Email:         email,
		PasswordHash:  "x",
		Name:          "Test Coach",
		Slug:          slug,
		Tier:          model.TierFree,
		StudentLimit:  studentLimit,
		StorageLimit:  storageLimit,
		AnalysisLimit: analysisLimit,
	}
	if err := db.Create(&coach).Error; err != nil {
		t.Fatalf("Failed to create test coach: %v", err)
	}
	return &coach
}

// createTestStudent inserts an active student for the coach
func createTestStudent(t *testing.T, db *gorm.DB, coachID uint, email string) *model.Student {
	t.Helper()

	student := model.Student{
		CoachID:      coachID,
		Email:        email,
		PasswordHash: "x",
		Name:         "Test Student",
		Status:       model.StudentStatusActive,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("Failed to create test student: %v", err)
	}
	return &student
}
