package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/auth"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// AuthHandler handles registration, login and token refresh for both
// coach and student principals
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *auth.JWTManager
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *auth.JWTManager, bfp *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		bruteForceProtection: bfp,
		validator:            validation.NewValidator(),
	}
}

// RegisterCoachRequest represents a coach signup request
type RegisterCoachRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Slug     string `json:"slug" validate:"omitempty,min=3,max=50"`
}

// TokenResponse is returned on login/register/refresh
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int         `json:"expires_in"` // in seconds
	Role         string      `json:"role"`
	Principal    interface{} `json:"principal"`
}

// slugify derives a URL-safe slug from a display name
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// RegisterCoach handles POST /auth/register
func (h *AuthHandler) RegisterCoach(c *fiber.Ctx) error {
	var req RegisterCoachRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Email = strings.ToLower(validation.SanitizeString(req.Email))

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}
	if ok, msg := validation.ValidateSlug(slug); !ok {
		return response.BadRequest(c, msg)
	}

	// Check for existing email or slug
	var existing model.Coach
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "An account with this email already exists")
	}
	if err := h.db.Where("slug = ?", slug).First(&existing).Error; err == nil {
		return response.Conflict(c, "This slug is already taken")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	studentLimit, storageLimit, analysisLimit := model.TierLimits(model.TierFree)
	coach := model.Coach{
		Email:         req.Email,
		PasswordHash:  hash,
		Name:          req.Name,
		Slug:          slug,
		Tier:          model.TierFree,
		StudentLimit:  studentLimit,
		StorageLimit:  storageLimit,
		AnalysisLimit: analysisLimit,
	}

	if err := h.db.Create(&coach).Error; err != nil {
		return response.InternalServerError(c, "Failed to create account")
	}

	return h.respondWithTokens(c, coach.ID, coach.Email, auth.RoleCoach, coach.TokenVersion, coach, true)
}

// LoginRequest represents a login request for either principal type
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginCoach handles POST /auth/login
func (h *AuthHandler) LoginCoach(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	var coach model.Coach
	if err := h.db.Where("email = ?", strings.ToLower(req.Email)).First(&coach).Error; err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := auth.VerifyPassword(coach.PasswordHash, req.Password); err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	h.clearFailures(c, ip)
	return h.respondWithTokens(c, coach.ID, coach.Email, auth.RoleCoach, coach.TokenVersion, coach, false)
}

// LoginStudent handles POST /auth/students/login
func (h *AuthHandler) LoginStudent(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	var student model.Student
	if err := h.db.Where("email = ?", strings.ToLower(req.Email)).First(&student).Error; err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if student.Status == model.StudentStatusArchived {
		return response.Unauthorized(c, "Account is archived")
	}

	if err := auth.VerifyPassword(student.PasswordHash, req.Password); err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	h.clearFailures(c, ip)
	return h.respondWithTokens(c, student.ID, student.Email, auth.RoleStudent, student.TokenVersion, student, false)
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid refresh token")
	}

	// Verify the principal still exists and the token generation is current
	var tokenVersion int
	switch claims.Role {
	case auth.RoleCoach:
		var coach model.Coach
		if err := h.db.First(&coach, claims.PrincipalID).Error; err != nil {
			return response.Unauthorized(c, "Account not found")
		}
		tokenVersion = coach.TokenVersion
	case auth.RoleStudent:
		var student model.Student
		if err := h.db.First(&student, claims.PrincipalID).Error; err != nil {
			return response.Unauthorized(c, "Account not found")
		}
		tokenVersion = student.TokenVersion
	default:
		return response.Unauthorized(c, "Invalid refresh token")
	}

	if tokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(claims.PrincipalID, claims.Email, claims.Role, tokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	return response.Success(c, TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   24 * 60 * 60,
		Role:        claims.Role,
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	role, ok := middleware.GetRole(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	switch role {
	case auth.RoleCoach:
		if coach, ok := middleware.GetCoach(c); ok {
			return response.Success(c, fiber.Map{"role": role, "principal": coach})
		}
	case auth.RoleStudent:
		if student, ok := middleware.GetStudent(c); ok {
			return response.Success(c, fiber.Map{"role": role, "principal": student})
		}
	}
	return response.Unauthorized(c, "")
}

func (h *AuthHandler) respondWithTokens(c *fiber.Ctx, id uint, email, role string, tokenVersion int, principal interface{}, created bool) error {
	accessToken, _, err := h.jwtManager.GenerateAccessToken(id, email, role, tokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate access token")
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(id, email, role, tokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate refresh token")
	}

	res := TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60,
		Role:         role,
		Principal:    principal,
	}

	if created {
		return response.Created(c, res)
	}
	return response.Success(c, res)
}

func (h *AuthHandler) recordFailure(c *fiber.Ctx, ip string) {
	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordFailedAttempt(c, ip)
	}
}

func (h *AuthHandler) clearFailures(c *fiber.Ctx, ip string) {
	if h.bruteForceProtection != nil {
		h.bruteForceProtection.ClearAttempts(c, ip)
	}
}
