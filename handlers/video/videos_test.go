package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Coach{}, &model.Student{},
		&model.Video{}, &model.VideoAnalysis{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// newTestApp mirrors the video route group, including the POST alias
// for upload completion.
func newTestApp(db *gorm.DB, coach *model.Coach) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("coach", coach)
		return c.Next()
	})

	h := NewVideoHandler(db, services.NewVideoService(db, nil))
	app.Get("/videos", h.ListVideos)
	app.Post("/videos", h.CompleteUpload)
	app.Post("/uploads/complete", h.CompleteUpload)

	return app
}

func seedAccounts(t *testing.T, db *gorm.DB) (*model.Coach, *model.Student) {
	t.Helper()

	studentLimit, storageLimit, analysisLimit := model.TierLimits(model.TierFree)
	coach := model.Coach{
		Email: "coach@example.com", PasswordHash: "x", Name: "Coach", Slug: "coach",
		StudentLimit: studentLimit, StorageLimit: storageLimit, AnalysisLimit: analysisLimit,
	}
	if err := db.Create(&coach).Error; err != nil {
		t.Fatalf("Failed to create coach: %v", err)
	}
	student := model.Student{CoachID: coach.ID, Email: "student@example.com", PasswordHash: "x", Name: "Student", Status: model.StudentStatusActive}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}
	return &coach, &student
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp.StatusCode, envelope
}

func TestPostVideosCompletesUpload(t *testing.T) {
	db := openTestDB(t)
	coach, student := seedAccounts(t, db)
	app := newTestApp(db, coach)

	key := fmt.Sprintf("videos/coach_%d/student_%d/1_serve.mp4", coach.ID, student.ID)
	status, _ := doJSON(t, app, "POST", "/videos", map[string]interface{}{
		"storage_key": key,
		"student_id":  student.ID,
		"file_size":   2048,
		"title":       "First serve session",
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %d", status)
	}

	var video model.Video
	if err := db.Where("storage_key = ?", key).First(&video).Error; err != nil {
		t.Fatalf("Video row not created: %v", err)
	}
	if video.Status != model.VideoStatusUploaded {
		t.Errorf("Expected status uploaded, got %s", video.Status)
	}

	var fresh model.Coach
	db.First(&fresh, coach.ID)
	if fresh.StorageUsed != 2048 {
		t.Errorf("Expected storage_used 2048, got %d", fresh.StorageUsed)
	}
}

func TestPostVideosMatchesCompleteEndpoint(t *testing.T) {
	db := openTestDB(t)
	coach, student := seedAccounts(t, db)
	app := newTestApp(db, coach)

	key := fmt.Sprintf("videos/coach_%d/student_%d/1_rally.mp4", coach.ID, student.ID)
	body := map[string]interface{}{
		"storage_key": key,
		"student_id":  student.ID,
		"file_size":   1024,
	}

	status, _ := doJSON(t, app, "POST", "/uploads/complete", body)
	if status != 201 {
		t.Fatalf("Expected 201 from /uploads/complete, got %d", status)
	}

	// The alias runs the same completion flow, so the same key conflicts
	status, _ = doJSON(t, app, "POST", "/videos", body)
	if status != 409 {
		t.Errorf("Expected 409 from the alias for a completed key, got %d", status)
	}
}
