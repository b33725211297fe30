package lesson

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

// LessonHandler handles lesson logging for the authenticated coach
type LessonHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(db *gorm.DB) *LessonHandler {
	return &LessonHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// ownedStudent verifies the student belongs to the coach
func (h *LessonHandler) ownedStudent(coachID, studentID uint) (bool, error) {
	var student model.Student
	err := h.db.Where("id = ? AND coach_id = ?", studentID, coachID).First(&student).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ownedVideos verifies every id resolves to a video owned by the coach.
// Returns the first offending id, or 0 when all are owned.
func (h *LessonHandler) ownedVideos(coachID uint, ids []uint) (uint, error) {
	for _, id := range ids {
		var video model.Video
		err := h.db.Where("id = ? AND coach_id = ?", id, coachID).First(&video).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return id, nil
			}
			return 0, err
		}
	}
	return 0, nil
}

// ListLessons handles GET /lessons
func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	studentID := c.Query("student_id", "")
	lessonType := c.Query("type", "")

	query := h.db.Model(&model.Lesson{}).Where("coach_id = ?", coach.ID)
	if studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if lessonType != "" {
		query = query.Where("type = ?", lessonType)
	}
	if from := c.Query("from", ""); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("date >= ?", t)
		}
	}
	if to := c.Query("to", ""); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query = query.Where("date <= ?", t)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count lessons")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var lessons []model.Lesson
	if err := query.Preload("Student").Preload("Videos.Video").
		Order("date DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&lessons).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch lessons")
	}

	return response.Paginated(c, lessons, pagination)
}

// CreateLessonRequest represents the request body for logging a lesson
type CreateLessonRequest struct {
	StudentID       uint             `json:"student_id" validate:"required,min=1"`
	Date            time.Time        `json:"date" validate:"required"`
	DurationMinutes int              `json:"duration_minutes" validate:"required,min=1,max=600"`
	Type            model.LessonType `json:"type" validate:"omitempty,oneof=private group clinic match_play fitness"`
	Notes           string           `json:"notes" validate:"omitempty,max=5000"`
	VideoIDs        []uint           `json:"video_ids" validate:"omitempty,dive,min=1"`
}

// CreateLesson handles POST /lessons
func (h *LessonHandler) CreateLesson(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	owned, err := h.ownedStudent(coach.ID, req.StudentID)
	if err != nil {
		return response.InternalServerError(c, "Failed to verify student")
	}
	if !owned {
		return response.NotFound(c, "Student not found")
	}

	if bad, err := h.ownedVideos(coach.ID, req.VideoIDs); err != nil {
		return response.InternalServerError(c, "Failed to verify videos")
	} else if bad != 0 {
		return response.NotFound(c, "Video not found")
	}

	lessonType := req.Type
	if lessonType == "" {
		lessonType = model.LessonTypePrivate
	}

	lesson := model.Lesson{
		CoachID:         coach.ID,
		StudentID:       req.StudentID,
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		Type:            lessonType,
		Notes:           validation.SanitizeString(req.Notes),
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lesson).Error; err != nil {
			return err
		}
		for _, id := range req.VideoIDs {
			link := model.LessonVideo{LessonID: lesson.ID, VideoID: id}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create lesson")
	}

	h.db.Preload("Student").Preload("Videos.Video").First(&lesson, lesson.ID)

	return response.Created(c, lesson)
}

// GetLesson handles GET /lessons/:id
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var lesson model.Lesson
	if err := h.db.Preload("Student").Preload("Videos.Video").
		Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&lesson).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	return response.Success(c, lesson)
}

// UpdateLessonRequest represents the partial patch for a lesson.
// VideoIDs, when present, replaces the full association set.
type UpdateLessonRequest struct {
	Date            *time.Time        `json:"date"`
	DurationMinutes *int              `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Type            *model.LessonType `json:"type" validate:"omitempty,oneof=private group clinic match_play fitness"`
	Notes           *string           `json:"notes" validate:"omitempty,max=5000"`
	VideoIDs        *[]uint           `json:"video_ids" validate:"omitempty,dive,min=1"`
}

// UpdateLesson handles PATCH /lessons/:id
func (h *LessonHandler) UpdateLesson(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var lesson model.Lesson
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&lesson).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	var req UpdateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.VideoIDs != nil {
		if bad, err := h.ownedVideos(coach.ID, *req.VideoIDs); err != nil {
			return response.InternalServerError(c, "Failed to verify videos")
		} else if bad != 0 {
			return response.NotFound(c, "Video not found")
		}
	}

	if req.Date != nil {
		lesson.Date = *req.Date
	}
	if req.DurationMinutes != nil {
		lesson.DurationMinutes = *req.DurationMinutes
	}
	if req.Type != nil {
		lesson.Type = *req.Type
	}
	if req.Notes != nil {
		lesson.Notes = validation.SanitizeString(*req.Notes)
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&lesson).Error; err != nil {
			return err
		}
		if req.VideoIDs != nil {
			if err := tx.Where("lesson_id = ?", lesson.ID).
				Delete(&model.LessonVideo{}).Error; err != nil {
				return err
			}
			for _, id := range *req.VideoIDs {
				link := model.LessonVideo{LessonID: lesson.ID, VideoID: id}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to update lesson")
	}

	h.db.Preload("Student").Preload("Videos.Video").First(&lesson, lesson.ID)

	return response.Success(c, lesson)
}

// DeleteLesson handles DELETE /lessons/:id. Associated videos survive;
// only the lesson and its links are removed.
func (h *LessonHandler) DeleteLesson(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var lesson model.Lesson
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&lesson).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to fetch lesson")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", lesson.ID).
			Delete(&model.LessonVideo{}).Error; err != nil {
			return err
		}
		return tx.Delete(&lesson).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to delete lesson")
	}

	return response.SuccessWithMessage(c, "Lesson deleted", nil)
}
