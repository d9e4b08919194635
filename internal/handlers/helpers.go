package handlers

import (
	"time"

	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.Error(c, fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseTimeQuery(c *fiber.Ctx, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// respondAuthError maps the login state machine's sentinel errors onto
// HTTP statuses. Unknown errors become an opaque 500; internals never
// leak into authentication responses.
func respondAuthError(c *fiber.Ctx, err error) error {
	switch err {
	case services.ErrInvalidCredentials:
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	case services.ErrAccountLocked:
		return utils.Error(c, fiber.StatusLocked, err.Error())
	case services.ErrEmailUnverified:
		return utils.Error(c, fiber.StatusForbidden, err.Error())
	case services.ErrInvalidChallenge:
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	case services.ErrInvalidSecondFactorCode:
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	case services.ErrSecondFactorConflict:
		return utils.Error(c, fiber.StatusConflict, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
}
