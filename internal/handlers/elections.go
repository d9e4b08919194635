package handlers

import (
	"strings"
	"time"

	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ElectionHandler struct {
	DB *gorm.DB
}

func NewElectionHandler(db *gorm.DB) *ElectionHandler {
	return &ElectionHandler{DB: db}
}

// electionView decorates an election with its derived status.
type electionView struct {
	models.Election
	Status models.ElectionStatus `json:"status"`
}

func viewOf(e models.Election, now time.Time) electionView {
	return electionView{Election: e, Status: e.Status(now)}
}

type electionRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
}

func (r *electionRequest) validate() string {
	if strings.TrimSpace(r.Title) == "" {
		return "title is required"
	}
	if r.StartAt.IsZero() || r.EndAt.IsZero() {
		return "startAt and endAt are required"
	}
	if !r.StartAt.Before(r.EndAt) {
		return "startAt must be before endAt"
	}
	return ""
}

func (h *ElectionHandler) Create(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	if user.Role == models.UserRoleVoter {
		return utils.Error(c, fiber.StatusForbidden, "organizer role required")
	}
	if user.OrganizationID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "join an organization before creating elections")
	}

	var req electionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	election := models.Election{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		OrganizationID: *user.OrganizationID,
		CreatedByID:    user.ID,
		StartAt:        req.StartAt.UTC(),
		EndAt:          req.EndAt.UTC(),
	}
	if err := h.DB.Create(&election).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create election")
	}

	return utils.Success(c, fiber.StatusCreated, viewOf(election, time.Now().UTC()))
}

func (h *ElectionHandler) List(c *fiber.Ctx) error {
	query := h.DB.Model(&models.Election{})
	if raw := c.Query("organizationID"); raw != "" {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid organizationID")
		}
		query = query.Where("organization_id = ?", orgID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list elections")
	}

	p := utils.ParsePagination(c)
	var elections []models.Election
	if err := utils.ApplyPagination(query.Order("start_at DESC"), p).Find(&elections).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to list elections")
	}

	now := time.Now().UTC()
	views := make([]electionView, 0, len(elections))
	for _, e := range elections {
		views = append(views, viewOf(e, now))
	}

	return utils.Paginated(c, views, p.Page, p.Limit, total)
}

func (h *ElectionHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var election models.Election
	if err := h.DB.First(&election, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "election not found")
	}
	return utils.Success(c, fiber.StatusOK, viewOf(election, time.Now().UTC()))
}

// Update only permits edits while the election is still scheduled. An
// open or closed vote is immutable.
func (h *ElectionHandler) Update(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c, h.DB)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var election models.Election
	if err := h.DB.First(&election, "id = ?", id).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "election not found")
	}
	if election.CreatedByID != user.ID && user.Role != models.UserRoleAdmin {
		return utils.Error(c, fiber.StatusForbidden, "only the creator can update this election")
	}

	now := time.Now().UTC()
	if election.Status(now) != models.ElectionStatusScheduled {
		return utils.Error(c, fiber.StatusConflict, "election has already started")
	}

	var req electionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	updates := map[string]interface{}{
		"title":       strings.TrimSpace(req.Title),
		"description": req.Description,
		"start_at":    req.StartAt.UTC(),
		"end_at":      req.EndAt.UTC(),
	}
	if err := h.DB.Model(&election).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update election")
	}

	return utils.Success(c, fiber.StatusOK, viewOf(election, now))
}
