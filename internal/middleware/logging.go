package middleware

import (
	"time"

	"github.com/ballotbox/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestLogger assigns every request an ID, echoes it in the response and
// emits one structured line per request with method, path, status and
// duration. Bodies are summarized with sensitive fields redacted.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Locals("requestID", requestID)
		c.Set("X-Request-ID", requestID)

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		details := map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": duration.Milliseconds(),
			"ip":          c.IP(),
			"request_id":  requestID,
		}

		if userID := logger.GetUserIDFromContext(c); userID != nil {
			logger.InfoWithUser(*userID, "http_request", details)
		} else {
			logger.Info("http_request", details)
		}

		return err
	}
}

// SecurityLogger adds request-body context on auth surfaces, where the
// shape of a failed request matters for incident review.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if status < 400 {
			return err
		}

		logger.Warn("security_endpoint_rejection", map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"ip":         c.IP(),
			"request_id": RequestID(c),
			"body":       logger.GetRequestBodySummary(c),
		})

		return err
	}
}

// RequestID returns the ID assigned by RequestLogger, or empty.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}

func claimsUserID(c *fiber.Ctx) *uuid.UUID {
	if claims := GetClaims(c); claims != nil {
		id := claims.UserID
		return &id
	}
	return nil
}
