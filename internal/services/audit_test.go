package services

import (
	"testing"
	"time"

	"github.com/ballotbox/backend/internal/database"
	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustLog(t *testing.T, db *gorm.DB, userID *uuid.UUID, action string, at time.Time) {
	t.Helper()
	row := models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: "user",
		IPAddress:    "127.0.0.1",
		CreatedAt:    at,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to insert audit row: %v", err)
	}
}

func TestReportRollup(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db, nil, 16)

	alice := uuid.New()
	bob := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// A short incident: Alice signs in twice, Bob fails twice, gets locked
	// and later signs in once.
	mustLog(t, db, &alice, models.ActionLoginSuccess, base)
	mustLog(t, db, &alice, models.ActionLoginSuccess, base.Add(1*time.Minute))
	mustLog(t, db, &bob, models.ActionLoginFailed, base.Add(2*time.Minute))
	mustLog(t, db, &bob, models.ActionLoginFailed, base.Add(3*time.Minute))
	mustLog(t, db, &bob, models.ActionAccountLocked, base.Add(3*time.Minute))
	mustLog(t, db, &bob, models.ActionLoginSuccess, base.Add(30*time.Minute))

	// Outside the window, must not count.
	mustLog(t, db, &alice, models.ActionLoginFailed, base.Add(-2*time.Hour))

	report, err := svc.Report(base.Add(-1*time.Minute), base.Add(1*time.Hour))
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if report.TotalActivities != 6 {
		t.Fatalf("expected 6 total activities, got %d", report.TotalActivities)
	}
	// Successful logins are not security events: two failures plus the lock.
	if report.SecurityEvents != 3 {
		t.Fatalf("expected 3 security events, got %d", report.SecurityEvents)
	}
	if report.SuspiciousEvents != 3 {
		t.Fatalf("expected 3 suspicious events, got %d", report.SuspiciousEvents)
	}
	if report.UniqueUsers != 2 {
		t.Fatalf("expected 2 unique users, got %d", report.UniqueUsers)
	}

	if len(report.TopActions) == 0 || report.TopActions[0].Action != models.ActionLoginSuccess {
		t.Fatalf("expected LOGIN_SUCCESS as top action, got %v", report.TopActions)
	}
	if len(report.TopActors) == 0 || report.TopActors[0].UserID != bob {
		t.Fatalf("expected bob as top actor, got %v", report.TopActors)
	}
}

func TestFeedsFilterByVocabulary(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db, nil, 16)

	user := uuid.New()
	now := time.Now().UTC()
	mustLog(t, db, &user, models.ActionLoginSuccess, now.Add(-3*time.Minute))
	mustLog(t, db, &user, models.ActionLoginFailed, now.Add(-2*time.Minute))
	mustLog(t, db, &user, models.Action2FAEnabled, now.Add(-1*time.Minute))

	security, err := svc.SecurityFeed(50)
	if err != nil {
		t.Fatalf("security feed failed: %v", err)
	}
	if len(security) != 2 {
		t.Fatalf("expected 2 security entries, got %d", len(security))
	}
	// Newest first.
	if security[0].Action != models.Action2FAEnabled {
		t.Fatalf("expected newest entry first, got %s", security[0].Action)
	}

	suspicious, err := svc.SuspiciousFeed(50)
	if err != nil {
		t.Fatalf("suspicious feed failed: %v", err)
	}
	if len(suspicious) != 1 || suspicious[0].Action != models.ActionLoginFailed {
		t.Fatalf("expected only the failure, got %v", suspicious)
	}
}

func TestQueryFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db, nil, 16)

	alice := uuid.New()
	bob := uuid.New()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		mustLog(t, db, &alice, models.ActionLoginFailed, now.Add(time.Duration(-i)*time.Minute))
	}
	mustLog(t, db, &bob, models.ActionLoginSuccess, now)

	p := utils.PaginationParams{Page: 1, Limit: 3, Offset: 0}
	logs, total, err := svc.Query(AuditFilters{UserID: &alice}, p)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 matches, got %d", total)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 rows on page, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].CreatedAt.After(logs[i-1].CreatedAt) {
			t.Fatal("expected newest-first ordering")
		}
	}

	from := now.Add(-90 * time.Second)
	logs, total, err = svc.Query(AuditFilters{Action: models.ActionLoginFailed, From: &from}, p)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 recent failures, got %d", total)
	}
	_ = logs
}

func TestLogAsyncPersists(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditService(db, nil, 16)

	user := uuid.New()
	svc.LogAsync(AuditEntry{
		UserID:       &user,
		Action:       models.ActionLoginSuccess,
		ResourceType: "user",
		Details:      map[string]interface{}{"method": "password"},
		IPAddress:    "10.0.0.1",
	})

	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		if err := db.Model(&models.AuditLog{}).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if count != 1 {
		t.Fatalf("expected 1 persisted row, got %d", count)
	}

	var row models.AuditLog
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("failed to load row: %v", err)
	}
	if row.ID == uuid.Nil {
		t.Fatal("expected generated row ID")
	}
	if row.Details["method"] != "password" {
		t.Fatalf("details not round-tripped: %v", row.Details)
	}
}
