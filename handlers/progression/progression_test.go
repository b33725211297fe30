package progression

import (
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
		&model.ProgressionPath{}, &model.Level{}, &model.Skill{}, &model.Milestone{},
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

func newTestApp(db *gorm.DB, coach *model.Coach) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("coach", coach)
		return c.Next()
	})

	h := NewProgressionHandler(db, services.NewProgressionService(db, nil))
	app.Get("/progression/paths", h.ListPaths)

	return app
}

func TestListPathsIsPaginated(t *testing.T) {
	db := openTestDB(t)

	coach := model.Coach{Email: "coach@example.com", PasswordHash: "x", Name: "Coach", Slug: "coach"}
	if err := db.Create(&coach).Error; err != nil {
		t.Fatalf("Failed to create coach: %v", err)
	}

	for i := 0; i < 3; i++ {
		path := model.ProgressionPath{
			CoachID:        &coach.ID,
			Name:           fmt.Sprintf("Path %d", i),
			PlayerCategory: model.CategoryAdult,
		}
		if err := db.Create(&path).Error; err != nil {
			t.Fatalf("Failed to create path: %v", err)
		}
	}

	app := newTestApp(db, &coach)

	req := httptest.NewRequest("GET", "/progression/paths?page=1&limit=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var envelope struct {
		Success    bool                     `json:"success"`
		Data       []map[string]interface{} `json:"data"`
		Pagination struct {
			CurrentPage int   `json:"current_page"`
			PerPage     int   `json:"per_page"`
			Total       int64 `json:"total"`
			TotalPages  int   `json:"total_pages"`
			HasMore     bool  `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(envelope.Data) != 2 {
		t.Errorf("Expected 2 paths on page 1, got %d", len(envelope.Data))
	}
	if envelope.Pagination.Total != 3 {
		t.Errorf("Expected total 3, got %d", envelope.Pagination.Total)
	}
	if !envelope.Pagination.HasMore {
		t.Error("Expected has_more on page 1")
	}

	// Second page carries the remainder
	req = httptest.NewRequest("GET", "/progression/paths?page=2&limit=2", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Errorf("Expected 1 path on page 2, got %d", len(envelope.Data))
	}
	if envelope.Pagination.HasMore {
		t.Error("Expected has_more false on the last page")
	}
}
