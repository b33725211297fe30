package student

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
		&model.ProgressionPath{}, &model.Level{},
		&model.StudentGoal{}, &model.Milestone{}, &model.Skill{},
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

	h := NewStudentHandler(db)
	app.Get("/students", h.ListStudents)
	app.Post("/students", h.CreateStudent)
	app.Get("/students/:id", h.GetStudent)
	app.Patch("/students/:id", h.UpdateStudent)
	app.Get("/students/:id/goals", h.ListStudentGoals)

	return app
}

func createCoach(t *testing.T, db *gorm.DB, email, slug string, studentLimit int) *model.Coach {
	t.Helper()

	coach := model.Coach{
		Email:        email,
		PasswordHash: "x",
		Name:         "Coach",
		Slug:         slug,
		Tier:         model.TierFree,
		StudentLimit: studentLimit,
	}
	if err := db.Create(&coach).Error; err != nil {
		t.Fatalf("Failed to create coach: %v", err)
	}
	return &coach
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

func TestArchiveAndReactivateStudent(t *testing.T) {
	db := openTestDB(t)
	coach := createCoach(t, db, "coach@example.com", "coach", 5)
	app := newTestApp(db, coach)

	student := model.Student{CoachID: coach.ID, Email: "s@example.com", PasswordHash: "x", Name: "Student", Status: model.StudentStatusActive}
	db.Create(&student)

	status, _ := doJSON(t, app, "PATCH", fmt.Sprintf("/students/%d", student.ID),
		map[string]interface{}{"status": "archived"})
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	var fresh model.Student
	db.First(&fresh, student.ID)
	if fresh.Status != model.StudentStatusArchived {
		t.Errorf("Expected status archived, got %s", fresh.Status)
	}
	if fresh.ArchivedAt == nil {
		t.Fatal("Expected ArchivedAt set on archive")
	}

	status, _ = doJSON(t, app, "PATCH", fmt.Sprintf("/students/%d", student.ID),
		map[string]interface{}{"status": "active"})
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	fresh = model.Student{}
	db.First(&fresh, student.ID)
	if fresh.Status != model.StudentStatusActive {
		t.Errorf("Expected status active, got %s", fresh.Status)
	}
	if fresh.ArchivedAt != nil {
		t.Errorf("Expected ArchivedAt cleared on reactivate, got %v", fresh.ArchivedAt)
	}
}

func TestStudentLimitCountsOnlyNonArchived(t *testing.T) {
	db := openTestDB(t)
	coach := createCoach(t, db, "coach@example.com", "coach", 2)
	app := newTestApp(db, coach)

	active := model.Student{CoachID: coach.ID, Email: "a@example.com", PasswordHash: "x", Name: "A", Status: model.StudentStatusActive}
	db.Create(&active)
	archived := model.Student{CoachID: coach.ID, Email: "b@example.com", PasswordHash: "x", Name: "B", Status: model.StudentStatusArchived}
	db.Create(&archived)

	// One active of two allowed: creation succeeds
	status, _ := doJSON(t, app, "POST", "/students", map[string]interface{}{
		"email":    "c@example.com",
		"password": "secret-pass-1",
		"name":     "Student C",
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %d", status)
	}

	// Limit now reached
	status, _ = doJSON(t, app, "POST", "/students", map[string]interface{}{
		"email":    "d@example.com",
		"password": "secret-pass-1",
		"name":     "Student D",
	})
	if status != 400 {
		t.Errorf("Expected 400 at limit, got %d", status)
	}
}

func TestListStudentsExcludesArchivedByDefault(t *testing.T) {
	db := openTestDB(t)
	coach := createCoach(t, db, "coach@example.com", "coach", 5)
	app := newTestApp(db, coach)

	db.Create(&model.Student{CoachID: coach.ID, Email: "a@example.com", PasswordHash: "x", Name: "Active", Status: model.StudentStatusActive})
	db.Create(&model.Student{CoachID: coach.ID, Email: "b@example.com", PasswordHash: "x", Name: "Gone", Status: model.StudentStatusArchived})

	status, envelope := doJSON(t, app, "GET", "/students", nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	data, ok := envelope["data"].([]interface{})
	if !ok {
		t.Fatalf("Unexpected data shape: %T", envelope["data"])
	}
	if len(data) != 1 {
		t.Fatalf("Expected 1 student, got %d", len(data))
	}

	status, envelope = doJSON(t, app, "GET", "/students?status=archived", nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}
	data, _ = envelope["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("Expected 1 archived student, got %d", len(data))
	}
}

func TestCoachSeesOnlyVisibleGoals(t *testing.T) {
	db := openTestDB(t)
	coach := createCoach(t, db, "coach@example.com", "coach", 5)
	app := newTestApp(db, coach)

	student := model.Student{CoachID: coach.ID, Email: "s@example.com", PasswordHash: "x", Name: "Student", Status: model.StudentStatusActive}
	db.Create(&student)

	db.Create(&model.StudentGoal{StudentID: student.ID, Title: "Visible", Status: model.GoalStatusInProgress, CoachVisible: true})
	db.Create(&model.StudentGoal{StudentID: student.ID, Title: "Hidden", Status: model.GoalStatusInProgress, CoachVisible: false})

	status, envelope := doJSON(t, app, "GET", fmt.Sprintf("/students/%d/goals", student.ID), nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}

	data, ok := envelope["data"].([]interface{})
	if !ok {
		t.Fatalf("Unexpected data shape: %T", envelope["data"])
	}
	if len(data) != 1 {
		t.Fatalf("Expected only the visible goal, got %d", len(data))
	}
}
