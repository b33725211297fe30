package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/auth"
	"github.com/courtline/courtline-api/utils/response"
)

// AuthMiddleware handles JWT authentication for coach and student principals
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	db         *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		db:         db,
	}
}

// Required is middleware that requires a valid JWT access token. It
// resolves the principal (coach or student) from the database and
// stores it in Locals for handlers.
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Unauthorized(c, "Invalid authorization format")
		}

		claims, err := m.jwtManager.ValidateToken(parts[1])
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		if claims.TokenType != "access" {
			return response.Unauthorized(c, "Invalid token type")
		}

		// Load the principal and verify token version
		switch claims.Role {
		case auth.RoleCoach:
			var coach model.Coach
			if err := m.db.First(&coach, claims.PrincipalID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return response.Unauthorized(c, "Account not found")
				}
				return response.InternalServerError(c, "Failed to load account")
			}
			if coach.TokenVersion != claims.TokenVersion {
				return response.Unauthorized(c, "Token has been invalidated")
			}
			c.Locals("coach", &coach)

		case auth.RoleStudent:
			var student model.Student
			if err := m.db.First(&student, claims.PrincipalID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return response.Unauthorized(c, "Account not found")
				}
				return response.InternalServerError(c, "Failed to load account")
			}
			if student.TokenVersion != claims.TokenVersion {
				return response.Unauthorized(c, "Token has been invalidated")
			}
			c.Locals("student", &student)

		default:
			return response.Unauthorized(c, "Invalid token")
		}

		c.Locals("principal_id", claims.PrincipalID)
		c.Locals("principal_role", claims.Role)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// RequireCoach rejects requests whose principal is not a coach
func (m *AuthMiddleware) RequireCoach() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetCoach(c); !ok {
			return response.Forbidden(c, "Coach access required")
		}
		return c.Next()
	}
}

// RequireStudent rejects requests whose principal is not a student
func (m *AuthMiddleware) RequireStudent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetStudent(c); !ok {
			return response.Forbidden(c, "Student access required")
		}
		return c.Next()
	}
}

// GetCoach extracts the authenticated coach from context
func GetCoach(c *fiber.Ctx) (*model.Coach, bool) {
	coach, ok := c.Locals("coach").(*model.Coach)
	return coach, ok && coach != nil
}

// GetStudent extracts the authenticated student from context
func GetStudent(c *fiber.Ctx) (*model.Student, bool) {
	student, ok := c.Locals("student").(*model.Student)
	return student, ok && student != nil
}

// GetRole extracts the principal role from context
func GetRole(c *fiber.Ctx) (string, bool) {
	role, ok := c.Locals("principal_role").(string)
	return role, ok
}
