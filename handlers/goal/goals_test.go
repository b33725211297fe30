package goal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

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
		&model.ProgressionPath{}, &model.Level{}, &model.Skill{}, &model.Milestone{},
		&model.StudentGoal{},
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

// newTestApp registers the goal routes behind a stub auth layer that
// injects the given principal into Locals.
func newTestApp(db *gorm.DB, coach *model.Coach, student *model.Student) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if coach != nil {
			c.Locals("coach", coach)
		}
		if student != nil {
			c.Locals("student", student)
		}
		return c.Next()
	})

	h := NewGoalHandler(db)
	app.Get("/goals", h.ListGoals)
	app.Post("/goals", h.CreateGoal)
	app.Get("/goals/:id", h.GetGoal)
	app.Put("/goals/:id", h.UpdateGoal)
	app.Delete("/goals/:id", h.DeleteGoal)
	app.Patch("/goals/:id/notes", h.UpdateCoachNotes)

	return app
}

func seedAccounts(t *testing.T, db *gorm.DB) (*model.Coach, *model.Student) {
	t.Helper()

	coach := model.Coach{Email: "coach@example.com", PasswordHash: "x", Name: "Coach", Slug: "coach"}
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

	if resp.StatusCode == fiber.StatusNoContent {
		return resp.StatusCode, nil
	}

	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp.StatusCode, envelope
}

func TestGoalAchievedTransitions(t *testing.T) {
	db := openTestDB(t)
	_, student := seedAccounts(t, db)
	app := newTestApp(db, nil, student)

	goal := model.StudentGoal{
		StudentID: student.ID,
		Title:     "Hold serve in practice sets",
		Category:  model.GoalCategoryCompetition,
		Status:    model.GoalStatusInProgress,
	}
	if err := db.Create(&goal).Error; err != nil {
		t.Fatalf("Failed to create goal: %v", err)
	}

	// Entering achieved stamps AchievedAt
	status, _ := doJSON(t, app, "PUT", fmt.Sprintf("/goals/%d", goal.ID),
		map[string]interface{}{"status": "achieved", "progress": 100})
	if status != 200 {
		t.Fatalf("Expected 200, got %v", status)
	}

	var fresh model.StudentGoal
	db.First(&fresh, goal.ID)
	if fresh.Status != model.GoalStatusAchieved {
		t.Errorf("Expected status achieved, got %s", fresh.Status)
	}
	if fresh.AchievedAt == nil {
		t.Fatal("Expected AchievedAt to be set")
	}
	if time.Since(*fresh.AchievedAt) > time.Minute {
		t.Errorf("AchievedAt not recent: %v", fresh.AchievedAt)
	}

	// Leaving achieved clears it
	status, _ = doJSON(t, app, "PUT", fmt.Sprintf("/goals/%d", goal.ID),
		map[string]interface{}{"status": "in_progress"})
	if status != 200 {
		t.Fatalf("Expected 200, got %v", status)
	}

	fresh = model.StudentGoal{}
	db.First(&fresh, goal.ID)
	if fresh.Status != model.GoalStatusInProgress {
		t.Errorf("Expected status in_progress, got %s", fresh.Status)
	}
	if fresh.AchievedAt != nil {
		t.Errorf("Expected AchievedAt cleared, got %v", fresh.AchievedAt)
	}
}

func TestGoalForeignStudentForbidden(t *testing.T) {
	db := openTestDB(t)
	_, owner := seedAccounts(t, db)

	intruder := model.Student{CoachID: owner.CoachID, Email: "intruder@example.com", PasswordHash: "x", Name: "Intruder", Status: model.StudentStatusActive}
	if err := db.Create(&intruder).Error; err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}

	goal := model.StudentGoal{StudentID: owner.ID, Title: "Private goal", Status: model.GoalStatusInProgress}
	if err := db.Create(&goal).Error; err != nil {
		t.Fatalf("Failed to create goal: %v", err)
	}

	app := newTestApp(db, nil, &intruder)

	status, _ := doJSON(t, app, "PUT", fmt.Sprintf("/goals/%d", goal.ID),
		map[string]interface{}{"progress": 50})
	if status != 403 {
		t.Errorf("Expected 403 on foreign update, got %v", status)
	}

	status, _ = doJSON(t, app, "DELETE", fmt.Sprintf("/goals/%d", goal.ID), nil)
	if status != 403 {
		t.Errorf("Expected 403 on foreign delete, got %v", status)
	}
}

func TestDeleteGoalByOwner(t *testing.T) {
	db := openTestDB(t)
	_, student := seedAccounts(t, db)
	app := newTestApp(db, nil, student)

	goal := model.StudentGoal{StudentID: student.ID, Title: "Temporary goal", Status: model.GoalStatusInProgress}
	if err := db.Create(&goal).Error; err != nil {
		t.Fatalf("Failed to create goal: %v", err)
	}

	status, _ := doJSON(t, app, "DELETE", fmt.Sprintf("/goals/%d", goal.ID), nil)
	if status != 204 {
		t.Fatalf("Expected 204, got %v", status)
	}

	var count int64
	db.Model(&model.StudentGoal{}).Where("id = ?", goal.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected goal removed, found %d", count)
	}
}

func TestGoalLinkedMilestoneMustExist(t *testing.T) {
	db := openTestDB(t)
	_, student := seedAccounts(t, db)
	app := newTestApp(db, nil, student)

	status, _ := doJSON(t, app, "POST", "/goals", map[string]interface{}{
		"title":               "Serve consistency",
		"linked_milestone_id": 9999,
	})
	if status != 404 {
		t.Errorf("Expected 404 for missing milestone, got %v", status)
	}

	// With a real milestone the link round-trips
	path := model.ProgressionPath{Name: "P", PlayerCategory: model.CategoryAdult}
	db.Create(&path)
	level := model.Level{PathID: path.ID, Name: "L", SortOrder: 1}
	db.Create(&level)
	skill := model.Skill{LevelID: level.ID, Name: "S", SortOrder: 1}
	db.Create(&skill)
	milestone := model.Milestone{SkillID: skill.ID, Title: "M", SortOrder: 1}
	db.Create(&milestone)

	status, _ = doJSON(t, app, "POST", "/goals", map[string]interface{}{
		"title":               "Serve consistency",
		"linked_milestone_id": milestone.ID,
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %v", status)
	}

	var created model.StudentGoal
	if err := db.Where("title = ?", "Serve consistency").First(&created).Error; err != nil {
		t.Fatalf("Goal not created: %v", err)
	}
	if created.LinkedMilestoneID == nil || *created.LinkedMilestoneID != milestone.ID {
		t.Errorf("Milestone link not persisted: %v", created.LinkedMilestoneID)
	}
}

func TestCoachGoalVisibilityAndNotes(t *testing.T) {
	db := openTestDB(t)
	coach, student := seedAccounts(t, db)

	hidden := model.StudentGoal{StudentID: student.ID, Title: "Hidden", Status: model.GoalStatusInProgress, CoachVisible: false}
	db.Create(&hidden)
	visible := model.StudentGoal{StudentID: student.ID, Title: "Visible", Status: model.GoalStatusInProgress, CoachVisible: true}
	db.Create(&visible)

	app := newTestApp(db, coach, nil)

	// Hidden goals read as not found for the coach
	status, _ := doJSON(t, app, "GET", fmt.Sprintf("/goals/%d", hidden.ID), nil)
	if status != 404 {
		t.Errorf("Expected 404 for hidden goal, got %v", status)
	}

	status, _ = doJSON(t, app, "GET", fmt.Sprintf("/goals/%d", visible.ID), nil)
	if status != 200 {
		t.Errorf("Expected 200 for visible goal, got %v", status)
	}

	// Coach notes are the coach's one write
	status, _ = doJSON(t, app, "PATCH", fmt.Sprintf("/goals/%d/notes", visible.ID),
		map[string]interface{}{"coach_notes": "Work on the toss first."})
	if status != 200 {
		t.Fatalf("Expected 200 on notes patch, got %v", status)
	}

	var fresh model.StudentGoal
	db.First(&fresh, visible.ID)
	if fresh.CoachNotes != "Work on the toss first." {
		t.Errorf("Coach notes not persisted: %q", fresh.CoachNotes)
	}
}
