package progression

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/services"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// ProgressionHandler handles the curriculum hierarchy endpoints
type ProgressionHandler struct {
	db        *gorm.DB
	service   *services.ProgressionService
	validator *validation.Validator
}

// NewProgressionHandler creates a new progression handler
func NewProgressionHandler(db *gorm.DB, service *services.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{
		db:        db,
		service:   service,
		validator: validation.NewValidator(),
	}
}

// mapServiceError translates progression service errors to responses
func mapServiceError(c *fiber.Ctx, err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, services.ErrSystemPathImmutable):
		return response.Forbidden(c, "System paths cannot be modified")
	case errors.Is(err, services.ErrPathHasStudents):
		return response.BadRequest(c, "Path has assigned students and cannot be deleted")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return response.NotFound(c, notFoundMsg)
	default:
		return response.InternalServerError(c, "")
	}
}

// pathListItem is a list row with its student assignment count
type pathListItem struct {
	model.ProgressionPath
	StudentCount int64 `json:"student_count"`
}

// ListPaths handles GET /progression/paths
func (h *ProgressionHandler) ListPaths(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	paths, counts, err := h.service.ListPaths(coach.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch paths")
	}

	items := make([]pathListItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, pathListItem{ProgressionPath: p, StudentCount: counts[p.ID]})
	}

	pagination := response.CalculatePagination(page, limit, int64(len(items)))
	offset := (pagination.CurrentPage - 1) * pagination.PerPage
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + pagination.PerPage
	if end > len(items) {
		end = len(items)
	}

	return response.Paginated(c, items[offset:end], pagination)
}

// CreatePathRequest represents the request body for creating a path
type CreatePathRequest struct {
	Name           string               `json:"name" validate:"required,min=2,max=150"`
	Description    string               `json:"description" validate:"omitempty,max=2000"`
	PlayerCategory model.PlayerCategory `json:"player_category" validate:"required,oneof=junior_red junior_orange junior_green junior_yellow adult performance"`
}

// CreatePath handles POST /progression/paths
func (h *ProgressionHandler) CreatePath(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreatePathRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	path, err := h.service.CreatePath(c.Context(), coach.ID,
		validation.SanitizeString(req.Name),
		validation.SanitizeString(req.Description),
		req.PlayerCategory)
	if err != nil {
		return response.InternalServerError(c, "Failed to create path")
	}

	return response.Created(c, path)
}

// GetPath handles GET /progression/paths/:id, the full nested tree
func (h *ProgressionHandler) GetPath(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid path ID")
	}

	tree, err := h.service.GetTree(c.Context(), coach.ID, uint(id))
	if err != nil {
		return mapServiceError(c, err, "Path not found")
	}

	return response.Success(c, tree)
}

// UpdatePathRequest represents the partial patch for a path
type UpdatePathRequest struct {
	Name           *string               `json:"name" validate:"omitempty,min=2,max=150"`
	Description    *string               `json:"description" validate:"omitempty,max=2000"`
	PlayerCategory *model.PlayerCategory `json:"player_category" validate:"omitempty,oneof=junior_red junior_orange junior_green junior_yellow adult performance"`
}

// UpdatePath handles PATCH /progression/paths/:id
func (h *ProgressionHandler) UpdatePath(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid path ID")
	}

	var req UpdatePathRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	path, err := h.service.UpdatePath(c.Context(), coach.ID, uint(id), services.PathUpdate{
		Name:           req.Name,
		Description:    req.Description,
		PlayerCategory: req.PlayerCategory,
	})
	if err != nil {
		return mapServiceError(c, err, "Path not found")
	}

	return response.Success(c, path)
}

// DeletePath handles DELETE /progression/paths/:id
func (h *ProgressionHandler) DeletePath(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid path ID")
	}

	if err := h.service.DeletePath(c.Context(), coach.ID, uint(id)); err != nil {
		return mapServiceError(c, err, "Path not found")
	}

	return response.SuccessWithMessage(c, "Path deleted", nil)
}

// CreateLevelRequest represents the request body for adding a level
type CreateLevelRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=150"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Order       int    `json:"order" validate:"gte=0"`
}

// CreateLevel handles POST /progression/paths/:id/levels
func (h *ProgressionHandler) CreateLevel(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	pathID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid path ID")
	}

	var req CreateLevelRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	level, err := h.service.CreateLevel(c.Context(), coach.ID, uint(pathID),
		validation.SanitizeString(req.Name),
		validation.SanitizeString(req.Description),
		req.Order)
	if err != nil {
		return mapServiceError(c, err, "Path not found")
	}

	return response.Created(c, level)
}

// UpdateNodeRequest is the shared partial patch for levels, skills and milestones
type UpdateNodeRequest struct {
	Name          *string              `json:"name" validate:"omitempty,min=2,max=150"`
	Description   *string              `json:"description" validate:"omitempty,max=2000"`
	Order         *int                 `json:"order" validate:"omitempty,gte=0"`
	Category      *model.SkillCategory `json:"category" validate:"omitempty,oneof=technique tactics fitness mental"`
	TargetMetrics datatypes.JSON       `json:"target_metrics"`
}

func (r UpdateNodeRequest) toUpdate() services.NodeUpdate {
	return services.NodeUpdate{
		Name:          r.Name,
		Description:   r.Description,
		Order:         r.Order,
		Category:      r.Category,
		TargetMetrics: r.TargetMetrics,
	}
}

// UpdateLevel handles PATCH /progression/levels/:id
func (h *ProgressionHandler) UpdateLevel(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid level ID")
	}

	var req UpdateNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	level, err := h.service.UpdateLevel(c.Context(), coach.ID, uint(id), req.toUpdate())
	if err != nil {
		return mapServiceError(c, err, "Level not found")
	}

	return response.Success(c, level)
}

// DeleteLevel handles DELETE /progression/levels/:id
func (h *ProgressionHandler) DeleteLevel(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid level ID")
	}

	if err := h.service.DeleteLevel(c.Context(), coach.ID, uint(id)); err != nil {
		return mapServiceError(c, err, "Level not found")
	}

	return response.SuccessWithMessage(c, "Level deleted", nil)
}

// CreateSkillRequest represents the request body for adding a skill
type CreateSkillRequest struct {
	Name        string              `json:"name" validate:"required,min=2,max=150"`
	Description string              `json:"description" validate:"omitempty,max=2000"`
	Category    model.SkillCategory `json:"category" validate:"omitempty,oneof=technique tactics fitness mental"`
	Order       int                 `json:"order" validate:"gte=0"`
}

// CreateSkill handles POST /progression/levels/:id/skills
func (h *ProgressionHandler) CreateSkill(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	levelID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid level ID")
	}

	var req CreateSkillRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	category := req.Category
	if category == "" {
		category = model.SkillCategoryTechnique
	}

	skill, err := h.service.CreateSkill(c.Context(), coach.ID, uint(levelID),
		validation.SanitizeString(req.Name),
		validation.SanitizeString(req.Description),
		category, req.Order)
	if err != nil {
		return mapServiceError(c, err, "Level not found")
	}

	return response.Created(c, skill)
}

// UpdateSkill handles PATCH /progression/skills/:id
func (h *ProgressionHandler) UpdateSkill(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid skill ID")
	}

	var req UpdateNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	skill, err := h.service.UpdateSkill(c.Context(), coach.ID, uint(id), req.toUpdate())
	if err != nil {
		return mapServiceError(c, err, "Skill not found")
	}

	return response.Success(c, skill)
}

// DeleteSkill handles DELETE /progression/skills/:id
func (h *ProgressionHandler) DeleteSkill(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid skill ID")
	}

	if err := h.service.DeleteSkill(c.Context(), coach.ID, uint(id)); err != nil {
		return mapServiceError(c, err, "Skill not found")
	}

	return response.SuccessWithMessage(c, "Skill deleted", nil)
}

// CreateMilestoneRequest represents the request body for adding a milestone
type CreateMilestoneRequest struct {
	Title         string         `json:"title" validate:"required,min=2,max=150"`
	Description   string         `json:"description" validate:"omitempty,max=2000"`
	Order         int            `json:"order" validate:"gte=0"`
	TargetMetrics datatypes.JSON `json:"target_metrics"`
}

// CreateMilestone handles POST /progression/skills/:id/milestones
func (h *ProgressionHandler) CreateMilestone(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	skillID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid skill ID")
	}

	var req CreateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	milestone, err := h.service.CreateMilestone(c.Context(), coach.ID, uint(skillID),
		validation.SanitizeString(req.Title),
		validation.SanitizeString(req.Description),
		req.Order, req.TargetMetrics)
	if err != nil {
		return mapServiceError(c, err, "Skill not found")
	}

	return response.Created(c, milestone)
}

// UpdateMilestone handles PATCH /progression/milestones/:id
func (h *ProgressionHandler) UpdateMilestone(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid milestone ID")
	}

	var req UpdateNodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	milestone, err := h.service.UpdateMilestone(c.Context(), coach.ID, uint(id), req.toUpdate())
	if err != nil {
		return mapServiceError(c, err, "Milestone not found")
	}

	return response.Success(c, milestone)
}

// DeleteMilestone handles DELETE /progression/milestones/:id
func (h *ProgressionHandler) DeleteMilestone(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid milestone ID")
	}

	if err := h.service.DeleteMilestone(c.Context(), coach.ID, uint(id)); err != nil {
		return mapServiceError(c, err, "Milestone not found")
	}

	return response.SuccessWithMessage(c, "Milestone deleted", nil)
}

// AssignStudentRequest represents the request body for a path assignment
type AssignStudentRequest struct {
	PathID  uint  `json:"path_id" validate:"required,min=1"`
	LevelID *uint `json:"level_id" validate:"omitempty,min=1"`
}

// AssignStudent handles POST /students/:id/progression
func (h *ProgressionHandler) AssignStudent(c *fiber.Ctx) error {
	coach, ok := middleware.GetCoach(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	studentID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid student ID")
	}

	var req AssignStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	student, err := h.service.AssignStudent(c.Context(), coach.ID, uint(studentID), req.PathID, req.LevelID)
	if err != nil {
		return mapServiceError(c, err, "Student or path not found")
	}

	return response.Success(c, student)
}
