package video

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// PresignRequest represents phase one of the upload protocol
type PresignRequest struct {
	StudentID uint   `json:"student_id" validate:"required,min=1"`
	Filename  string `json:"filename" validate:"required,min=1,max=255"`
	FileSize  int64  `json:"file_size" validate:"required,min=1"`
}

// PresignUpload handles POST /uploads/presign
func (h *VideoHandler) PresignUpload(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.service.Presign(c.Context(), coach.ID, req.StudentID, req.Filename, req.FileSize)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return response.Success(c, result)
}

// CompleteUploadRequest represents phase three of the upload protocol
type CompleteUploadRequest struct {
	StorageKey string            `json:"storage_key" validate:"required,min=1,max=512"`
	StudentID  uint              `json:"student_id" validate:"required,min=1"`
	FileSize   int64             `json:"file_size" validate:"required,min=1"`
	Title      string            `json:"title" validate:"omitempty,max=200"`
	StrokeType *model.StrokeType `json:"stroke_type" validate:"omitempty,oneof=serve forehand backhand volley overhead slice match_play"`
	Notes      string            `json:"notes" validate:"omitempty,max=2000"`
}

// CompleteUpload handles POST /uploads/complete
func (h *VideoHandler) CompleteUpload(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CompleteUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	video, err := h.service.Complete(c.Context(), coach.ID, services.CompleteRequest{
		StorageKey: req.StorageKey,
		StudentID:  req.StudentID,
		FileSize:   req.FileSize,
		Title:      validation.SanitizeString(req.Title),
		StrokeType: req.StrokeType,
		Notes:      validation.SanitizeString(req.Notes),
	})
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return response.Created(c, video)
}

// mapServiceError translates video service errors to HTTP responses
func (h *VideoHandler) mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		return response.BadRequest(c, "Storage quota exceeded")
	case errors.Is(err, services.ErrAnalysisQuotaExceeded):
		return response.BadRequest(c, "Analysis quota exceeded")
	case errors.Is(err, services.ErrKeyNotOwned):
		return response.Forbidden(c, "Storage key was not issued to you")
	case errors.Is(err, services.ErrStudentNotOwned):
		return response.NotFound(c, "Student not found")
	case errors.Is(err, services.ErrAlreadyCompleted):
		return response.Conflict(c, "Upload already completed for this key")
	case errors.Is(err, services.ErrAnalysisExists):
		return response.Conflict(c, "Video already has an analysis")
	case errors.Is(err, services.ErrFileTooLarge):
		return response.BadRequest(c, "Declared file size exceeds the maximum upload size")
	case errors.Is(err, services.ErrObjectMissing):
		return response.BadRequest(c, "No uploaded object found for this storage key")
	default:
		return response.InternalServerError(c, "Request failed")
	}
}
