package handlers

import (
	"strings"

	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, auth *services.AuthService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Auth: auth, Audit: audit}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return utils.Error(c, fiber.StatusBadRequest, "valid email is required")
	}
	if len(req.Username) < 3 {
		return utils.Error(c, fiber.StatusBadRequest, "username must be at least 3 characters")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	var count int64
	h.DB.Model(&models.User{}).
		Where("email = ? OR username = ?", req.Email, req.Username).
		Count(&count)
	if count > 0 {
		return utils.Error(c, fiber.StatusConflict, "email or username already in use")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create account")
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         models.UserRoleVoter,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create account")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionUserRegistered,
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details:      map[string]interface{}{"email": user.Email, "username": user.Username},
		IPAddress:    c.IP(),
		RequestID:    middleware.RequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login runs the password stage. When a second factor is enabled the
// response carries mfaRequired plus a short-lived challenge token and no
// session tokens at all.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	result, err := h.Auth.Authenticate(req.Email, req.Password, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}

	if result.SecondFactorRequired {
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"mfaRequired": true,
			"mfaToken":    result.ChallengeToken,
			"methods":     result.Methods,
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

type secondFactorRequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code"`
}

func (h *AuthHandler) VerifySecondFactor(c *fiber.Ctx) error {
	var req secondFactorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.MFAToken == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "mfaToken and code are required")
	}

	result, err := h.Auth.VerifySecondFactor(req.MFAToken, req.Code, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

func (h *AuthHandler) VerifyRecoveryCode(c *fiber.Ctx) error {
	var req secondFactorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.MFAToken == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "mfaToken and code are required")
	}

	result, err := h.Auth.VerifyRecoveryCode(req.MFAToken, req.Code, middleware.Origin(c))
	if err != nil {
		return respondAuthError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return utils.Error(c, fiber.StatusBadRequest, "refreshToken is required")
	}

	result, err := h.Auth.Refresh(req.RefreshToken)
	if err != nil {
		return respondAuthError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"tokens": result.Tokens,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	if !utils.CheckPassword(req.OldPassword, user.PasswordHash) {
		return utils.Error(c, fiber.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update password")
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update password")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       models.ActionPasswordChanged,
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    c.IP(),
		RequestID:    middleware.RequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}
