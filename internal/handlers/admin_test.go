package handlers

import (
	"net/http"
	"testing"

	"github.com/ballotbox/backend/internal/models"
)

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app, db := setupTestApp(t)
	createUser(t, db, "voter@example.com", "correct-horse-42", models.UserRoleVoter)
	access, _ := loginTokens(t, app, "voter@example.com", "correct-horse-42")

	resp := performJSON(t, app, http.MethodGet, "/api/admin/audit", nil, bearer(access))
	assertStatus(t, resp, http.StatusForbidden)

	// The probe itself lands in the audit log.
	waitForAudit(t, db, models.ActionPermissionDeny, 1)

	resp = performJSON(t, app, http.MethodGet, "/api/admin/audit", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestAuditEndpoints(t *testing.T) {
	app, db := setupTestApp(t)
	createUser(t, db, "admin@example.com", "correct-horse-42", models.UserRoleAdmin)
	createUser(t, db, "voter@example.com", "correct-horse-42", models.UserRoleVoter)

	// Generate some activity: one success, two failures.
	access, _ := loginTokens(t, app, "admin@example.com", "correct-horse-42")
	assertStatus(t, postLogin(t, app, "voter@example.com", "wrong"), http.StatusUnauthorized)
	assertStatus(t, postLogin(t, app, "voter@example.com", "wrong"), http.StatusUnauthorized)
	waitForAudit(t, db, models.ActionLoginFailed, 2)

	resp := performJSON(t, app, http.MethodGet, "/api/admin/audit?action=LOGIN_FAILED", nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)
	body := decodeMap(t, resp)
	rows, _ := body["data"].([]interface{})
	if len(rows) != 2 {
		t.Fatalf("expected 2 failure rows, got %d", len(rows))
	}

	resp = performJSON(t, app, http.MethodGet, "/api/admin/audit/suspicious", nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)
	feed, _ := decodeMap(t, resp)["data"].([]interface{})
	if len(feed) != 2 {
		t.Fatalf("expected 2 suspicious entries, got %d", len(feed))
	}

	resp = performJSON(t, app, http.MethodGet, "/api/admin/audit/report", nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)
	report := dataOf(t, resp)
	if report["totalActivities"].(float64) < 3 {
		t.Fatalf("expected at least 3 activities, got %v", report["totalActivities"])
	}

	resp = performJSON(t, app, http.MethodGet,
		"/api/admin/audit/report?start=2026-01-02T00:00:00Z&end=2026-01-01T00:00:00Z", nil, bearer(access))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSON(t, app, http.MethodGet, "/api/admin/audit/export?action=LOGIN_FAILED", nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("expected ndjson export, got %q", ct)
	}
}

func TestAdminUserManagement(t *testing.T) {
	app, db := setupTestApp(t)
	createUser(t, db, "admin@example.com", "correct-horse-42", models.UserRoleAdmin)
	target := createUser(t, db, "voter@example.com", "correct-horse-42", models.UserRoleVoter)
	db.Model(target).Update("email_verified", false)

	access, _ := loginTokens(t, app, "admin@example.com", "correct-horse-42")

	resp := performJSON(t, app, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role",
		map[string]string{"role": "organizer"}, bearer(access))
	assertStatus(t, resp, http.StatusOK)

	resp = performJSON(t, app, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role",
		map[string]string{"role": "superuser"}, bearer(access))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSON(t, app, http.MethodPost, "/api/admin/users/"+target.ID.String()+"/verify-email",
		nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)

	var fresh models.User
	if err := db.First(&fresh, "id = ?", target.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if fresh.Role != models.UserRoleOrganizer || !fresh.EmailVerified {
		t.Fatalf("updates not applied: role=%s verified=%v", fresh.Role, fresh.EmailVerified)
	}

	waitForAudit(t, db, models.ActionRoleChanged, 1)
	waitForAudit(t, db, models.ActionEmailVerified, 1)
}

func TestAdminUnlock(t *testing.T) {
	app, db := setupTestApp(t)
	createUser(t, db, "admin@example.com", "correct-horse-42", models.UserRoleAdmin)
	target := createUser(t, db, "locked@example.com", "correct-horse-42", models.UserRoleVoter)

	for i := 0; i < 5; i++ {
		assertStatus(t, postLogin(t, app, "locked@example.com", "wrong"), http.StatusUnauthorized)
	}
	assertStatus(t, postLogin(t, app, "locked@example.com", "correct-horse-42"), http.StatusLocked)

	access, _ := loginTokens(t, app, "admin@example.com", "correct-horse-42")
	resp := performJSON(t, app, http.MethodPost, "/api/admin/users/"+target.ID.String()+"/unlock",
		nil, bearer(access))
	assertStatus(t, resp, http.StatusOK)

	loginTokens(t, app, "locked@example.com", "correct-horse-42")
}
