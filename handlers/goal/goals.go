package goal

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// GoalHandler handles student goal requests. Goals are student-owned:
// core fields are writable only by the owning student, CoachNotes only
// by the student's coach.
type GoalHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewGoalHandler creates a new goal handler
func NewGoalHandler(db *gorm.DB) *GoalHandler {
	return &GoalHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// applyStatus runs the goal state machine: entering achieved stamps
// AchievedAt, leaving achieved clears it.
func applyStatus(goal *model.StudentGoal, status model.GoalStatus) {
	if status == goal.Status {
		return
	}
	if status == model.GoalStatusAchieved {
		now := time.Now()
		goal.AchievedAt = &now
	} else if goal.Status == model.GoalStatusAchieved {
		goal.AchievedAt = nil
	}
	goal.Status = status
}

// milestoneExists verifies a linked milestone id resolves
func (h *GoalHandler) milestoneExists(id uint) (bool, error) {
	var milestone model.Milestone
	if err := h.db.First(&milestone, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListGoals handles GET /goals, the authenticated student's own goals
func (h *GoalHandler) ListGoals(c *fiber.Ctx) error {
	student, ok := middleware.GetStudent(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	status := c.Query("status", "")
	category := c.Query("category", "")

	query := h.db.Model(&model.StudentGoal{}).Where("student_id = ?", student.ID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count goals")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var goals []model.StudentGoal
	if err := query.Preload("LinkedMilestone").
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&goals).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch goals")
	}

	return response.Paginated(c, goals, pagination)
}

// CreateGoalRequest represents the request body for creating a goal
type CreateGoalRequest struct {
	Title             string             `json:"title" validate:"required,min=2,max=200"`
	Description       string             `json:"description" validate:"omitempty,max=2000"`
	Category          model.GoalCategory `json:"category" validate:"omitempty,oneof=skill_improvement fitness mental competition ranking"`
	Progress          int                `json:"progress" validate:"gte=0,lte=100"`
	TargetDate        *time.Time         `json:"target_date"`
	LinkedMilestoneID *uint              `json:"linked_milestone_id" validate:"omitempty,min=1"`
	CoachVisible      bool               `json:"coach_visible"`
}

// CreateGoal handles POST /goals
func (h *GoalHandler) CreateGoal(c *fiber.Ctx) error {
	student, ok := middleware.GetStudent(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.LinkedMilestoneID != nil {
		exists, err := h.milestoneExists(*req.LinkedMilestoneID)
		if err != nil {
			return response.InternalServerError(c, "Failed to verify milestone")
		}
		if !exists {
			return response.NotFound(c, "Linked milestone not found")
		}
	}

	category := req.Category
	if category == "" {
		category = model.GoalCategorySkill
	}

	goal := model.StudentGoal{
		StudentID:         student.ID,
		Title:             validation.SanitizeString(req.Title),
		Description:       validation.SanitizeString(req.Description),
		Category:          category,
		Status:            model.GoalStatusInProgress,
		Progress:          req.Progress,
		TargetDate:        req.TargetDate,
		LinkedMilestoneID: req.LinkedMilestoneID,
		CoachVisible:      req.CoachVisible,
	}

	if err := h.db.Create(&goal).Error; err != nil {
		return response.InternalServerError(c, "Failed to create goal")
	}

	h.db.Preload("LinkedMilestone").First(&goal, goal.ID)

	return response.Created(c, goal)
}

// loadGoal fetches a goal by path param
func (h *GoalHandler) loadGoal(c *fiber.Ctx) (*model.StudentGoal, error) {
	var goal model.StudentGoal
	err := h.db.Preload("LinkedMilestone").First(&goal, "id = ?", c.Params("id")).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// GetGoal handles GET /goals/:id. Readable by the owning student, or by
// the student's coach when the goal is coach-visible.
func (h *GoalHandler) GetGoal(c *fiber.Ctx) error {
	goal, err := h.loadGoal(c)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Goal not found")
		}
		return response.InternalServerError(c, "Failed to fetch goal")
	}

	if student, ok := middleware.GetStudent(c); ok {
		if goal.StudentID != student.ID {
			return response.Forbidden(c, "You do not own this goal")
		}
		return response.Success(c, goal)
	}

	if coach, ok := middleware.GetCoach(c); ok {
		var owner model.Student
		if err := h.db.First(&owner, goal.StudentID).Error; err != nil {
			return response.InternalServerError(c, "Failed to fetch goal")
		}
		if owner.CoachID != coach.ID || !goal.CoachVisible {
			return response.NotFound(c, "Goal not found")
		}
		return response.Success(c, goal)
	}

	return response.Unauthorized(c, "")
}

// UpdateGoalRequest represents the full update (PUT) of a goal's core fields
type UpdateGoalRequest struct {
	Title             *string             `json:"title" validate:"omitempty,min=2,max=200"`
	Description       *string             `json:"description" validate:"omitempty,max=2000"`
	Category          *model.GoalCategory `json:"category" validate:"omitempty,oneof=skill_improvement fitness mental competition ranking"`
	Status            *model.GoalStatus   `json:"status" validate:"omitempty,oneof=in_progress achieved paused abandoned"`
	Progress          *int                `json:"progress" validate:"omitempty,gte=0,lte=100"`
	TargetDate        *time.Time          `json:"target_date"`
	LinkedMilestoneID *uint               `json:"linked_milestone_id" validate:"omitempty,min=1"`
	CoachVisible      *bool               `json:"coach_visible"`
}

// UpdateGoal handles PUT /goals/:id, owning student only
func (h *GoalHandler) UpdateGoal(c *fiber.Ctx) error {
	student, ok := middleware.GetStudent(c)
	if !ok {
		return response.Forbidden(c, "Only the owning student may update a goal")
	}

	goal, err := h.loadGoal(c)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Goal not found")
		}
		return response.InternalServerError(c, "Failed to fetch goal")
	}

	if goal.StudentID != student.ID {
		return response.Forbidden(c, "You do not own this goal")
	}

	var req UpdateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.LinkedMilestoneID != nil {
		exists, err := h.milestoneExists(*req.LinkedMilestoneID)
		if err != nil {
			return response.InternalServerError(c, "Failed to verify milestone")
		}
		if !exists {
			return response.NotFound(c, "Linked milestone not found")
		}
		goal.LinkedMilestoneID = req.LinkedMilestoneID
	}

	if req.Title != nil {
		goal.Title = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		goal.Description = validation.SanitizeString(*req.Description)
	}
	if req.Category != nil {
		goal.Category = *req.Category
	}
	if req.Progress != nil {
		goal.Progress = *req.Progress
	}
	if req.TargetDate != nil {
		goal.TargetDate = req.TargetDate
	}
	if req.CoachVisible != nil {
		goal.CoachVisible = *req.CoachVisible
	}
	if req.Status != nil {
		applyStatus(goal, *req.Status)
	}

	// Select forces NULL writes when AchievedAt is cleared on reopen
	if err := h.db.Model(goal).
		Select("Title", "Description", "Category", "Status", "Progress",
			"TargetDate", "LinkedMilestoneID", "CoachVisible", "AchievedAt").
		Updates(goal).Error; err != nil {
		return response.InternalServerError(c, "Failed to update goal")
	}

	h.db.Preload("LinkedMilestone").First(goal, goal.ID)

	return response.Success(c, goal)
}

// CoachNotesRequest represents the coach annotation patch
type CoachNotesRequest struct {
	CoachNotes string `json:"coach_notes" validate:"required,max=2000"`
}

// UpdateCoachNotes handles PATCH /goals/:id/notes, the one goal field
// writable by the student's coach.
func (h *GoalHandler) UpdateCoachNotes(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Forbidden(c, "Only the student's coach may annotate a goal")
	}

	goal, err := h.loadGoal(c)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Goal not found")
		}
		return response.InternalServerError(c, "Failed to fetch goal")
	}

	var owner model.Student
	if err := h.db.First(&owner, goal.StudentID).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch goal")
	}
	if owner.CoachID != coach.ID {
		return response.NotFound(c, "Goal not found")
	}

	var req CoachNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	goal.CoachNotes = validation.SanitizeString(req.CoachNotes)
	if err := h.db.Model(goal).Update("coach_notes", goal.CoachNotes).Error; err != nil {
		return response.InternalServerError(c, "Failed to update goal")
	}

	return response.Success(c, goal)
}

// DeleteGoal handles DELETE /goals/:id, owning student only
func (h *GoalHandler) DeleteGoal(c *fiber.Ctx) error {
	student, ok := middleware.GetStudent(c)
	if !ok {
		return response.Forbidden(c, "Only the owning student may delete a goal")
	}

	goal, err := h.loadGoal(c)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Goal not found")
		}
		return response.InternalServerError(c, "Failed to fetch goal")
	}

	if goal.StudentID != student.ID {
		return response.Forbidden(c, "You do not own this goal")
	}

	if err := h.db.Delete(goal).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete goal")
	}

	return response.NoContent(c)
}
