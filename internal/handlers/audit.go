package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuditHandler exposes the read side of the audit log. Every route here
// sits behind AdminOnly; the log itself is append-only and there is no
// write surface at all.
type AuditHandler struct {
	Audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{Audit: audit}
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	filters := services.AuditFilters{
		Action:       c.Query("action"),
		ResourceType: c.Query("resourceType"),
		From:         parseTimeQuery(c, "from"),
		To:           parseTimeQuery(c, "to"),
	}
	if raw := c.Query("userID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid userID")
		}
		filters.UserID = &id
	}

	p := utils.ParsePagination(c)
	logs, total, err := h.Audit.Query(filters, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to query audit log")
	}

	return utils.Paginated(c, logs, p.Page, p.Limit, total)
}

func (h *AuditHandler) SecurityFeed(c *fiber.Ctx) error {
	logs, err := h.Audit.SecurityFeed(c.QueryInt("limit"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load feed")
	}
	return utils.Success(c, fiber.StatusOK, logs)
}

func (h *AuditHandler) SuspiciousFeed(c *fiber.Ctx) error {
	logs, err := h.Audit.SuspiciousFeed(c.QueryInt("limit"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load feed")
	}
	return utils.Success(c, fiber.StatusOK, logs)
}

// MyActivity returns the caller's own audit trail, paginated, or as an
// NDJSON download with ?format=ndjson.
func (h *AuditHandler) MyActivity(c *fiber.Ctx) error {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	filters := services.AuditFilters{
		UserID: &claims.UserID,
		From:   parseTimeQuery(c, "from"),
		To:     parseTimeQuery(c, "to"),
	}

	if c.Query("format") == "ndjson" {
		return h.sendNDJSON(c, filters)
	}

	p := utils.ParsePagination(c)
	logs, total, err := h.Audit.Query(filters, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to query audit log")
	}
	return utils.Paginated(c, logs, p.Page, p.Limit, total)
}

// Export downloads one filtered window as NDJSON, same filters as List.
func (h *AuditHandler) Export(c *fiber.Ctx) error {
	filters := services.AuditFilters{
		Action:       c.Query("action"),
		ResourceType: c.Query("resourceType"),
		From:         parseTimeQuery(c, "from"),
		To:           parseTimeQuery(c, "to"),
	}
	if raw := c.Query("userID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid userID")
		}
		filters.UserID = &id
	}
	return h.sendNDJSON(c, filters)
}

func (h *AuditHandler) sendNDJSON(c *fiber.Ctx, filters services.AuditFilters) error {
	logs, _, err := h.Audit.Query(filters, utils.PaginationParams{Page: 1, Limit: 10000})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to query audit log")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range logs {
		if err := enc.Encode(row); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to encode export")
		}
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="audit-export.ndjson"`)
	return c.Send(buf.Bytes())
}

// Report summarizes one time window. Defaults to the trailing 24 hours.
func (h *AuditHandler) Report(c *fiber.Ctx) error {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	if t := parseTimeQuery(c, "start"); t != nil {
		start = *t
	}
	if t := parseTimeQuery(c, "end"); t != nil {
		end = *t
	}
	if !start.Before(end) {
		return utils.Error(c, fiber.StatusBadRequest, "start must be before end")
	}

	report, err := h.Audit.Report(start, end)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to build report")
	}
	return utils.Success(c, fiber.StatusOK, report)
}
