package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func setupOrganizer(t *testing.T) (*fiber.App, string) {
	t.Helper()
	app, db := setupTestApp(t)
	createUser(t, db, "org@example.com", "correct-horse-42", models.UserRoleOrganizer)
	access, _ := loginTokens(t, app, "org@example.com", "correct-horse-42")

	resp := performJSON(t, app, http.MethodPost, "/api/organizations/",
		map[string]string{"name": "Civic League"}, bearer(access))
	assertStatus(t, resp, http.StatusCreated)

	return app, access
}

func TestElectionCreateValidatesWindow(t *testing.T) {
	app, access := setupOrganizer(t)

	start := time.Now().Add(24 * time.Hour).UTC()
	end := start.Add(-time.Hour)
	resp := performJSON(t, app, http.MethodPost, "/api/elections/", map[string]interface{}{
		"title":   "Board Vote",
		"startAt": start,
		"endAt":   end,
	}, bearer(access))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSON(t, app, http.MethodPost, "/api/elections/", map[string]interface{}{
		"title":   "Board Vote",
		"startAt": start,
		"endAt":   start.Add(48 * time.Hour),
	}, bearer(access))
	assertStatus(t, resp, http.StatusCreated)
	data := dataOf(t, resp)
	if data["status"] != string(models.ElectionStatusScheduled) {
		t.Fatalf("expected scheduled status, got %v", data["status"])
	}
}

func TestElectionStatusDerivation(t *testing.T) {
	now := time.Now().UTC()
	e := models.Election{StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)}

	if got := e.Status(now); got != models.ElectionStatusOpen {
		t.Fatalf("expected open, got %s", got)
	}
	if got := e.Status(now.Add(-2 * time.Hour)); got != models.ElectionStatusScheduled {
		t.Fatalf("expected scheduled, got %s", got)
	}
	if got := e.Status(now.Add(2 * time.Hour)); got != models.ElectionStatusClosed {
		t.Fatalf("expected closed, got %s", got)
	}
}

func TestElectionUpdateLockedAfterStart(t *testing.T) {
	app, access := setupOrganizer(t)

	start := time.Now().Add(-time.Hour).UTC()
	resp := performJSON(t, app, http.MethodPost, "/api/elections/", map[string]interface{}{
		"title":   "Running Vote",
		"startAt": start,
		"endAt":   start.Add(48 * time.Hour),
	}, bearer(access))
	assertStatus(t, resp, http.StatusCreated)
	id, _ := dataOf(t, resp)["id"].(string)

	resp = performJSON(t, app, http.MethodPut, "/api/elections/"+id, map[string]interface{}{
		"title":   "Renamed Vote",
		"startAt": start,
		"endAt":   start.Add(72 * time.Hour),
	}, bearer(access))
	assertStatus(t, resp, http.StatusConflict)
}

func TestVoterCannotCreateElection(t *testing.T) {
	app, db := setupTestApp(t)
	createUser(t, db, "voter@example.com", "correct-horse-42", models.UserRoleVoter)
	access, _ := loginTokens(t, app, "voter@example.com", "correct-horse-42")

	start := time.Now().Add(24 * time.Hour).UTC()
	resp := performJSON(t, app, http.MethodPost, "/api/elections/", map[string]interface{}{
		"title":   "Sneaky Vote",
		"startAt": start,
		"endAt":   start.Add(time.Hour),
	}, bearer(access))
	assertStatus(t, resp, http.StatusForbidden)
}
