package handlers

import (
	"time"

	"github.com/ballotbox/backend/internal/security"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type CSRFHandler struct {
	Store security.ForgeryTokenStore
	TTL   time.Duration
}

func NewCSRFHandler(store security.ForgeryTokenStore, ttl time.Duration) *CSRFHandler {
	return &CSRFHandler{Store: store, TTL: ttl}
}

// Token issues a fresh single-use anti-forgery token. Clients fetch one
// before each state-changing request; a token spends itself on first use.
func (h *CSRFHandler) Token(c *fiber.Ctx) error {
	token, err := h.Store.Issue()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to issue token")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":     token,
		"expiresIn": int(h.TTL.Seconds()),
	})
}
