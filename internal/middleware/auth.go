package middleware

import (
	"strings"

	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequireAuth rejects requests without a valid access token and stashes
// the verified claims for downstream handlers.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := bearerClaims(c)
		if err != nil {
			return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
		}

		c.Locals("claims", claims)
		c.Locals("userID", claims.UserID.String())
		c.Locals("userRole", string(claims.Role))
		return c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present but never
// rejects. Endpoints that behave differently for signed-in users use this.
func OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims, err := bearerClaims(c); err == nil {
			c.Locals("claims", claims)
			c.Locals("userID", claims.UserID.String())
			c.Locals("userRole", string(claims.Role))
		}
		return c.Next()
	}
}

// AdminOnly gates a route to the admin role. Denials are audited: a voter
// probing admin endpoints is exactly what the suspicious feed exists for.
func AdminOnly(audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetClaims(c)
		if claims == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
		}
		if claims.Role != models.UserRoleAdmin {
			audit.LogAsync(services.AuditEntry{
				UserID:       &claims.UserID,
				Action:       models.ActionPermissionDeny,
				ResourceType: "route",
				Details: map[string]interface{}{
					"path":          c.Path(),
					"method":        c.Method(),
					"required_role": string(models.UserRoleAdmin),
					"actual_role":   string(claims.Role),
				},
				IPAddress: c.IP(),
				RequestID: RequestID(c),
			})
			return utils.Error(c, fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// GetClaims returns the verified token claims, or nil outside RequireAuth.
func GetClaims(c *fiber.Ctx) *utils.Claims {
	if claims, ok := c.Locals("claims").(*utils.Claims); ok {
		return claims
	}
	return nil
}

// GetCurrentUser loads the authenticated user's current database row.
// Claims can be minutes stale; role changes and lockouts must be read
// fresh when they matter.
func GetCurrentUser(c *fiber.Ctx, db *gorm.DB) (*models.User, error) {
	claims := GetClaims(c)
	if claims == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "account not found")
	}
	return &user, nil
}

// Origin builds the audit origin for the current request.
func Origin(c *fiber.Ctx) services.Origin {
	return services.Origin{IP: c.IP(), RequestID: RequestID(c)}
}

func bearerClaims(c *fiber.Ctx) (*utils.Claims, error) {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, fiber.ErrUnauthorized
	}
	return utils.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
}
