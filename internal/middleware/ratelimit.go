package middleware

import (
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// AuthRateLimit throttles the credential-guessing surface per client IP.
// This is a complement to the account lockout, not a replacement: lockout
// protects one account from many IPs, this protects many accounts from
// one IP.
func AuthRateLimit(audit *services.AuditService, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 20
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			audit.LogAsync(services.AuditEntry{
				Action:       models.ActionRateLimited,
				ResourceType: "route",
				Details: map[string]interface{}{
					"path":   c.Path(),
					"method": c.Method(),
				},
				IPAddress: c.IP(),
				RequestID: RequestID(c),
			})
			return utils.Error(c, fiber.StatusTooManyRequests, "too many requests, slow down")
		},
	})
}
