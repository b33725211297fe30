package video

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// VideoHandler handles the video library and the two-phase upload flow
type VideoHandler struct {
	db        *gorm.DB
	service   *services.VideoService
	validator *validation.Validator
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(db *gorm.DB, service *services.VideoService) *VideoHandler {
	return &VideoHandler{
		db:        db,
		service:   service,
		validator: validation.NewValidator(),
	}
}

// ListVideos handles GET /videos
func (h *VideoHandler) ListVideos(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	studentID := c.Query("student_id", "")
	status := c.Query("status", "")
	strokeType := c.Query("stroke_type", "")

	query := h.db.Model(&model.Video{}).Where("coach_id = ?", coach.ID)
	if studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if strokeType != "" {
		query = query.Where("stroke_type = ?", strokeType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count videos")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var videos []model.Video
	if err := query.Preload("Student").Preload("Analysis").
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&videos).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch videos")
	}

	return response.Paginated(c, videos, pagination)
}

// GetVideo handles GET /videos/:id
func (h *VideoHandler) GetVideo(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var video model.Video
	if err := h.db.Preload("Student").Preload("Analysis").
		Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	return response.Success(c, video)
}

// UpdateVideoRequest represents the metadata patch for a video
type UpdateVideoRequest struct {
	Title      *string           `json:"title" validate:"omitempty,max=200"`
	StrokeType *model.StrokeType `json:"stroke_type" validate:"omitempty,oneof=serve forehand backhand volley overhead slice match_play"`
	Notes      *string           `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateVideo handles PATCH /videos/:id
func (h *VideoHandler) UpdateVideo(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var video model.Video
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	var req UpdateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Title != nil {
		video.Title = validation.SanitizeString(*req.Title)
	}
	if req.StrokeType != nil {
		video.StrokeType = req.StrokeType
	}
	if req.Notes != nil {
		video.Notes = validation.SanitizeString(*req.Notes)
	}

	if err := h.db.Save(&video).Error; err != nil {
		return response.InternalServerError(c, "Failed to update video")
	}

	return response.Success(c, video)
}

// DeleteVideo handles DELETE /videos/:id
func (h *VideoHandler) DeleteVideo(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid video id")
	}

	if err := h.service.DeleteVideo(c.Context(), coach.ID, uint(id)); err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to delete video")
	}

	return response.SuccessWithMessage(c, "Video deleted", nil)
}

// GetPlaybackURL handles GET /videos/:id/playback
func (h *VideoHandler) GetPlaybackURL(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid video id")
	}

	url, err := h.service.PlaybackURL(coach.ID, uint(id))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to generate playback URL")
	}

	return response.Success(c, fiber.Map{"playback_url": url})
}

func marshalJSON(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// CreateAnalysisRequest carries analysis output for a video
type CreateAnalysisRequest struct {
	Metrics  map[string]interface{} `json:"metrics"`
	Insights map[string]interface{} `json:"insights"`
}

// CreateAnalysis handles POST /videos/:id/analysis
func (h *VideoHandler) CreateAnalysis(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid video id")
	}

	var req CreateAnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	metrics, err := marshalJSON(req.Metrics)
	if err != nil {
		return response.BadRequest(c, "Invalid metrics payload")
	}
	insights, err := marshalJSON(req.Insights)
	if err != nil {
		return response.BadRequest(c, "Invalid insights payload")
	}

	analysis, err := h.service.CreateAnalysis(c.Context(), coach.ID, uint(id), metrics, insights)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return h.mapServiceError(c, err)
	}

	return response.Created(c, analysis)
}

// GetAnalysis handles GET /videos/:id/analysis
func (h *VideoHandler) GetAnalysis(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var video model.Video
	if err := h.db.Where("id = ? AND coach_id = ?", c.Params("id"), coach.ID).
		First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	var analysis model.VideoAnalysis
	if err := h.db.Where("video_id = ?", video.ID).First(&analysis).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video has no analysis")
		}
		return response.InternalServerError(c, "Failed to fetch analysis")
	}

	return response.Success(c, analysis)
}
