package handlers

import (
	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserHandler is the admin-facing account surface. All routes sit behind
// AdminOnly.
type UserHandler struct {
	DB    *gorm.DB
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewUserHandler(db *gorm.DB, auth *services.AuthService, audit *services.AuditService) *UserHandler {
	return &UserHandler{DB: db, Auth: auth, Audit: audit}
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	query := h.DB.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR username LIKE ?", like, like)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list users")
	}

	p := utils.ParsePagination(c)
	var users []models.User
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

// UpdateRole changes an account's role, recording old and new values so
// privilege escalations are reconstructable from the audit log alone.
func (h *UserHandler) UpdateRole(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	switch req.Role {
	case models.UserRoleAdmin, models.UserRoleOrganizer, models.UserRoleVoter:
	default:
		return utils.Error(c, fiber.StatusBadRequest, "invalid role")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	oldRole := user.Role
	if err := h.DB.Model(&user).Update("role", req.Role).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update role")
	}

	actor := middleware.GetClaims(c)
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.UserID,
		Action:       models.ActionRoleChanged,
		ResourceType: "user",
		ResourceID:   &user.ID,
		OldValues:    map[string]interface{}{"role": string(oldRole)},
		NewValues:    map[string]interface{}{"role": string(req.Role)},
		IPAddress:    c.IP(),
		RequestID:    middleware.RequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, user)
}

// VerifyEmail marks an account's address as verified. Verification mail
// delivery lives outside this service; admins confirm out-of-band.
func (h *UserHandler) VerifyEmail(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.Auth.MarkEmailVerified(id, middleware.Origin(c)); err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed to verify email")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"emailVerified": true})
}

// Unlock clears an account's failed-login state ahead of the timer. The
// audit trail still shows the original ACCOUNT_LOCKED event.
func (h *UserHandler) Unlock(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	result := h.DB.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
	})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to unlock account")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"unlocked": true})
}
