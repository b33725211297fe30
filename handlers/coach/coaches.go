package coach

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// CoachHandler handles coach self-service requests
type CoachHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(db *gorm.DB) *CoachHandler {
	return &CoachHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// GetMe handles GET /coaches/me
func (h *CoachHandler) GetMe(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	return response.Success(c, coach)
}

// UpdateMeRequest represents the partial patch for a coach profile
type UpdateMeRequest struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=100"`
	Bio  *string `json:"bio" validate:"omitempty,max=2000"`
	Slug *string `json:"slug" validate:"omitempty,min=3,max=50"`
}

// UpdateMe handles PATCH /coaches/me
func (h *CoachHandler) UpdateMe(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req UpdateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Name != nil {
		coach.Name = validation.SanitizeString(*req.Name)
	}
	if req.Bio != nil {
		coach.Bio = validation.SanitizeString(*req.Bio)
	}
	if req.Slug != nil {
		slug := validation.SanitizeString(*req.Slug)
		if ok, msg := validation.ValidateSlug(slug); !ok {
			return response.BadRequest(c, msg)
		}

		var existing model.Coach
		if err := h.db.Where("slug = ? AND id <> ?", slug, coach.ID).First(&existing).Error; err == nil {
			return response.Conflict(c, "This slug is already taken")
		}
		coach.Slug = slug
	}

	if err := h.db.Save(coach).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	return response.Success(c, coach)
}

// UsageResponse summarizes plan limits and running usage
type UsageResponse struct {
	Tier          model.SubscriptionTier `json:"tier"`
	StudentLimit  int                    `json:"student_limit"`
	StudentCount  int64                  `json:"student_count"`
	StorageLimit  int64                  `json:"storage_limit"`
	StorageUsed   int64                  `json:"storage_used"`
	AnalysisLimit int                    `json:"analysis_limit"`
	AnalysisCount int                    `json:"analysis_count"`
}

// GetUsage handles GET /coaches/me/usage
func (h *CoachHandler) GetUsage(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	// Re-read counters rather than trusting the session snapshot
	var fresh model.Coach
	if err := h.db.First(&fresh, coach.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to load usage")
	}

	var students int64
	if err := h.db.Model(&model.Student{}).
		Where("coach_id = ? AND status <> ?", coach.ID, model.StudentStatusArchived).
		Count(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	return response.Success(c, UsageResponse{
		Tier:          fresh.Tier,
		StudentLimit:  fresh.StudentLimit,
		StudentCount:  students,
		StorageLimit:  fresh.StorageLimit,
		StorageUsed:   fresh.StorageUsed,
		AnalysisLimit: fresh.AnalysisLimit,
		AnalysisCount: fresh.AnalysisCount,
	})
}
