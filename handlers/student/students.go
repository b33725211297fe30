package student

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/auth"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// StudentHandler handles roster management for the authenticated coach
type StudentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB) *StudentHandler {
	return &StudentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// ListStudents handles GET /students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	search := c.Query("search", "")
	status := c.Query("status", "")

	query := h.db.Model(&model.Student{}).Where("coach_id = ?", coach.ID)

	if search != "" {
		query = query.Where("name LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", model.StudentStatusArchived)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var students []model.Student
	if err := query.Preload("CurrentPath").
		Order("name ASC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch students")
	}

	return response.Paginated(c, students, pagination)
}

// CreateStudentRequest represents the request body for adding a student
type CreateStudentRequest struct {
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=8"`
	Name        string     `json:"name" validate:"required,min=2,max=100"`
	Phone       string     `json:"phone" validate:"omitempty,max=30"`
	Notes       string     `json:"notes" validate:"omitempty,max=2000"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// CreateStudent handles POST /students
func (h *StudentHandler) CreateStudent(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Email = strings.ToLower(validation.SanitizeString(req.Email))

	// Enforce the plan's student limit (archived students don't count)
	var count int64
	if err := h.db.Model(&model.Student{}).
		Where("coach_id = ? AND status <> ?", coach.ID, model.StudentStatusArchived).
		Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check student limit")
	}
	if count >= int64(coach.StudentLimit) {
		return response.BadRequest(c, "Student limit reached for your plan")
	}

	var existing model.Student
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "A student with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	student := model.Student{
		CoachID:      coach.ID,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Notes:        validation.SanitizeString(req.Notes),
		DateOfBirth:  req.DateOfBirth,
		Status:       model.StudentStatusActive,
	}

	if err := h.db.Create(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to create student")
	}

	return response.Created(c, student)
}

// GetStudent handles GET /students/:id
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var student model.Student
	if err := h.db.Preload("CurrentPath").Preload("CurrentLevel").
		Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&student).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	return response.Success(c, student)
}

// UpdateStudentRequest represents the partial patch for a student
type UpdateStudentRequest struct {
	Name        *string              `json:"name" validate:"omitempty,min=2,max=100"`
	Phone       *string              `json:"phone" validate:"omitempty,max=30"`
	Notes       *string              `json:"notes" validate:"omitempty,max=2000"`
	DateOfBirth *time.Time           `json:"date_of_birth"`
	Status      *model.StudentStatus `json:"status" validate:"omitempty,oneof=active inactive archived"`
}

// UpdateStudent handles PATCH /students/:id. Setting status=archived
// stamps ArchivedAt; returning to active/inactive clears it.
func (h *StudentHandler) UpdateStudent(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var student model.Student
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&student).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	var req UpdateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Name != nil {
		student.Name = validation.SanitizeString(*req.Name)
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.Notes != nil {
		student.Notes = validation.SanitizeString(*req.Notes)
	}
	if req.DateOfBirth != nil {
		student.DateOfBirth = req.DateOfBirth
	}
	if req.Status != nil && *req.Status != student.Status {
		student.Status = *req.Status
		if *req.Status == model.StudentStatusArchived {
			now := time.Now()
			student.ArchivedAt = &now
		} else {
			student.ArchivedAt = nil
		}
	}

	// Select forces NULL writes when ArchivedAt is cleared
	if err := h.db.Model(&student).
		Select("Name", "Phone", "Notes", "DateOfBirth", "Status", "ArchivedAt").
		Updates(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to update student")
	}

	return response.Success(c, student)
}

// ListStudentGoals handles GET /students/:id/goals, the coach's view
// of a student's goals, restricted to coach-visible ones.
func (h *StudentHandler) ListStudentGoals(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var student model.Student
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&student).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	query := h.db.Model(&model.StudentGoal{}).
		Where("student_id = ? AND coach_visible = ?", student.ID, true)

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
