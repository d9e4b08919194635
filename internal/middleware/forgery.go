package middleware

import (
	"strings"

	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/security"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// ForgeryTokenHeader carries the single-use anti-forgery token on
// state-changing requests.
const ForgeryTokenHeader = "X-CSRF-Token"

// ForgeryGuard enforces single-use anti-forgery tokens on state-changing
// methods. Requests authenticated with a bearer token are exempt: a header
// the browser never attaches automatically is its own forgery proof.
// Violations are rejected with 403 and audited.
func ForgeryGuard(store security.ForgeryTokenStore, audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		if strings.HasPrefix(c.Get("Authorization"), "Bearer ") {
			if _, err := bearerClaims(c); err == nil {
				return c.Next()
			}
		}

		token := c.Get(ForgeryTokenHeader)
		if store.Validate(token) {
			return c.Next()
		}

		userID := claimsUserID(c)
		audit.LogAsync(services.AuditEntry{
			UserID:       userID,
			Action:       models.ActionCSRFViolation,
			ResourceType: "route",
			Details: map[string]interface{}{
				"path":          c.Path(),
				"method":        c.Method(),
				"token_present": token != "",
			},
			IPAddress: c.IP(),
			RequestID: RequestID(c),
		})
		return utils.Error(c, fiber.StatusForbidden, "invalid or missing anti-forgery token")
	}
}
