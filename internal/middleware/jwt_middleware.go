package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/apperror"
	"caffemacao/pkg/response"
)

// Keys of the values AuthRequired stores in the fiber context.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
	LocalToken  = "token"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Error(c, fiber.StatusUnauthorized, "Authorization header is required")
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			return response.Error(c, fiber.StatusUnauthorized, "Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(c.UserContext(), tokenString)
		if err != nil {
			if !apperror.Is(err, apperror.KindUnauthorized) {
				return err
			}
			log.Debug("jwt validation failed", zap.Error(err), zap.String("path", c.Path()))
			return response.Error(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		setCaller(c, claims, tokenString)
		return c.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is sent and lets
// anonymous requests through otherwise.
func OptionalAuth(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			if claims, err := authService.ValidateToken(c.UserContext(), tokenString); err == nil {
				setCaller(c, claims, tokenString)
			}
		}
		return c.Next()
	}
}

// AdminOnly rejects callers without the admin role. It must run after
// AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CallerFrom(c).IsAdmin() {
			return response.Error(c, fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// CallerFrom returns the authenticated caller, or a zero Caller for
// anonymous requests.
func CallerFrom(c *fiber.Ctx) services.Caller {
	userID, _ := c.Locals(LocalUserID).(string)
	role, _ := c.Locals(LocalRole).(models.Role)
	return services.Caller{UserID: userID, Role: role}
}

// TokenFrom returns the raw bearer token of an authenticated request.
func TokenFrom(c *fiber.Ctx) string {
	token, _ := c.Locals(LocalToken).(string)
	return token
}

func bearerToken(header string) (string, bool) {
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setCaller(c *fiber.Ctx, claims *services.Claims, token string) {
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalRole, claims.Role)
	c.Locals(LocalToken, token)
}
