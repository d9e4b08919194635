package handlers

import (
	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MFAHandler struct {
	DB  *gorm.DB
	MFA *services.MFAService
}

func NewMFAHandler(db *gorm.DB, mfa *services.MFAService) *MFAHandler {
	return &MFAHandler{DB: db, MFA: mfa}
}

// Setup begins enrollment: a fresh secret and provisioning URL. The factor
// stays off until Enable confirms a live code.
func (h *MFAHandler) Setup(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	setup, err := h.MFA.Setup(user, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, setup)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *MFAHandler) Enable(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req mfaCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code is required")
	}

	codes, err := h.MFA.Enable(user, req.Code, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}

	// Only moment the plaintext recovery codes ever leave the server.
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"enabled":       true,
		"recoveryCodes": codes,
	})
}

type mfaDisableRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *MFAHandler) Disable(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req mfaDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" && req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code or password is required")
	}

	if err := h.MFA.Disable(user, req.Code, req.Password, middleware.Origin(c)); err != nil {
		return respondAuthError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"enabled": false})
}

func (h *MFAHandler) RegenerateRecoveryCodes(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req mfaCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code is required")
	}

	codes, err := h.MFA.RegenerateRecoveryCodes(user, req.Code, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"recoveryCodes": codes})
}

func (h *MFAHandler) Status(c *fiber.Ctx) error {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	status, err := h.MFA.Status(claims.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load status")
	}
	return utils.Success(c, fiber.StatusOK, status)
}
