package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/ballotbox/backend/internal/config"
	"github.com/ballotbox/backend/internal/database"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/security"
	"github.com/ballotbox/backend/internal/services"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	utils.ConfigureJWT("test-secret", 15*time.Minute, 168*time.Hour)
	utils.ConfigureEncryption("test-secret")
	os.Exit(m.Run())
}

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection, or each pooled connection gets its own :memory: DB.
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	audit := services.NewAuditService(db, nil, 256)
	policy := config.LoginPolicy{
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		TOTPIssuer:       "BallotBox",
	}
	auth := services.NewAuthService(db, audit, policy)
	mfa := services.NewMFAService(db, audit, policy.TOTPIssuer)
	forgery := security.NewMemoryForgeryStore(15 * time.Minute)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return utils.Error(c, code, err.Error())
		},
	})
	Register(app, Deps{
		DB:           db,
		Auth:         auth,
		MFA:          mfa,
		Audit:        audit,
		ForgeryStore: forgery,
		ForgeryTTL:   15 * time.Minute,
	})

	return app, db
}

func performJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeMap(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func dataOf(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := decodeMap(t, resp)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

// csrfToken fetches a fresh single-use anti-forgery token. Every
// unauthenticated state-changing request needs one.
func csrfToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := performJSON(t, app, http.MethodGet, "/api/csrf-token", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	token, _ := dataOf(t, resp)["token"].(string)
	if token == "" {
		t.Fatal("empty csrf token")
	}
	return token
}

var userSeq int

// createUser inserts a verified account directly, bypassing the HTTP
// registration flow.
func createUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	userSeq++
	user := models.User{
		Email:         email,
		Username:      fmt.Sprintf("user%d", userSeq),
		PasswordHash:  hash,
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		EmailVerified: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &user
}

func loginBody(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func postLogin(t *testing.T, app *fiber.App, email, password string) *http.Response {
	t.Helper()
	return performJSON(t, app, http.MethodPost, "/api/auth/login", loginBody(email, password), map[string]string{
		"X-CSRF-Token": csrfToken(t, app),
	})
}

// loginTokens runs a full password login and returns the token pair.
func loginTokens(t *testing.T, app *fiber.App, email, password string) (string, string) {
	t.Helper()
	resp := postLogin(t, app, email, password)
	assertStatus(t, resp, http.StatusOK)
	data := dataOf(t, resp)
	tokens, ok := data["tokens"].(map[string]interface{})
	if !ok {
		t.Fatalf("login response has no tokens: %v", data)
	}
	access, _ := tokens["accessToken"].(string)
	refresh, _ := tokens["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatal("incomplete token pair")
	}
	return access, refresh
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// waitForAudit polls until the recorder has flushed the expected number of
// rows for an action. Recording is asynchronous.
func waitForAudit(t *testing.T, db *gorm.DB, action string, want int64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		if err := db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error; err != nil {
			t.Fatalf("failed to count audit rows: %v", err)
		}
		if count >= want {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if count != want {
		t.Fatalf("expected %d %s audit rows, got %d", want, action, count)
	}
}
