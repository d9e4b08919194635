package handlers

import (
	"strings"

	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type OrganizationHandler struct {
	DB *gorm.DB
}

func NewOrganizationHandler(db *gorm.DB) *OrganizationHandler {
	return &OrganizationHandler{DB: db}
}

type organizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *OrganizationHandler) Create(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	if user.Role == models.UserRoleVoter {
		return utils.Error(c, fiber.StatusForbidden, "organizer role required")
	}

	var req organizationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	org := models.Organization{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     user.ID,
	}
	if err := h.DB.Create(&org).Error; err != nil {
		return utils.Error(c, fiber.StatusConflict, "organization name already in use")
	}

	// The creator joins their own organization.
	h.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("organization_id", org.ID)

	return utils.Success(c, fiber.StatusCreated, org)
}

func (h *OrganizationHandler) List(c *fiber.Ctx) error {
	query := h.DB.Model(&models.Organization{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list organizations")
	}

	p := utils.ParsePagination(c)
	var orgs []models.Organization
	if err := utils.ApplyPagination(query.Order("name ASC"), p).Find(&orgs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list organizations")
	}

	return utils.Paginated(c, orgs, p.Page, p.Limit, total)
}

func (h *OrganizationHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var org models.Organization
	if err := h.DB.First(&org, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "organization not found")
	}
	return utils.Success(c, fiber.StatusOK, org)
}

func (h *OrganizationHandler) Update(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var org models.Organization
	if err := h.DB.First(&org, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "organization not found")
	}
	if org.OwnerID != user.ID && user.Role != models.UserRoleAdmin {
		return utils.Error(c, fiber.StatusForbidden, "only the owner can update this organization")
	}

	var req organizationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&org).Updates(updates).Error; err != nil {
			return utils.Error(c, fiber.StatusConflict, "organization name already in use")
		}
	}

	return utils.Success(c, fiber.StatusOK, org)
}
