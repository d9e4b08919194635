package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ballotbox/backend/internal/models"
	"github.com/ballotbox/backend/internal/storage"
	"github.com/ballotbox/backend/pkg/logger"
	"github.com/ballotbox/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	OldValues    map[string]interface{}
	NewValues    map[string]interface{}
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// AuditService appends security events and answers the read-side feed and
// report queries. Recording is best-effort: a failure here is logged and
// swallowed, never propagated into the operation being audited.
type AuditService struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	queue   chan models.AuditLog
}

func NewAuditService(db *gorm.DB, storageClient *storage.MinIOClient, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AuditService{
		DB:      db,
		Storage: storageClient,
		queue:   make(chan models.AuditLog, queueSize),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		OldValues:    entry.OldValues,
		NewValues:    entry.NewValues,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

type AuditFilters struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
}

// Query returns matching entries newest-first plus the total match count.
func (s *AuditService) Query(f AuditFilters, p utils.PaginationParams) ([]models.AuditLog, int64, error) {
	query := s.DB.Model(&models.AuditLog{})

	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		query = query.Where("resource_type = ?", f.ResourceType)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// SecurityFeed returns the most recent security-relevant entries.
func (s *AuditService) SecurityFeed(limit int) ([]models.AuditLog, error) {
	return s.feed(models.SecurityActions, limit)
}

// SuspiciousFeed returns only failures, denials and violations — the
// "things to investigate" view.
func (s *AuditService) SuspiciousFeed(limit int) ([]models.AuditLog, error) {
	return s.feed(models.SuspiciousActions, limit)
}

func (s *AuditService) feed(actions []string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var logs []models.AuditLog
	err := s.DB.Where("action IN ?", actions).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

type ActorCount struct {
	UserID uuid.UUID `json:"userID"`
	Count  int64     `json:"count"`
}

type AuditReport struct {
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	TotalActivities  int64         `json:"totalActivities"`
	SecurityEvents   int64         `json:"securityEvents"`
	SuspiciousEvents int64         `json:"suspiciousEvents"`
	UniqueUsers      int64         `json:"uniqueUsers"`
	TopActions       []ActionCount `json:"topActions"`
	TopActors        []ActorCount  `json:"topActors"`
}

// Report is a read-only rollup over the append-only log for one window.
func (s *AuditService) Report(start, end time.Time) (*AuditReport, error) {
	report := &AuditReport{Start: start, End: end}
	window := s.DB.Model(&models.AuditLog{}).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Session(&gorm.Session{})

	if err := window.Count(&report.TotalActivities).Error; err != nil {
		return nil, err
	}

	if err := window.Where("action IN ?", models.SecurityActions).
		Count(&report.SecurityEvents).Error; err != nil {
		return nil, err
	}

	if err := window.Where("action IN ?", models.SuspiciousActions).
		Count(&report.SuspiciousEvents).Error; err != nil {
		return nil, err
	}

	if err := window.Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&report.UniqueUsers).Error; err != nil {
		return nil, err
	}

	if err := window.Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC").
		Limit(10).
		Scan(&report.TopActions).Error; err != nil {
		return nil, err
	}

	if err := window.Select("user_id, COUNT(*) AS count").
		Where("user_id IS NOT NULL").
		Group("user_id").
		Order("count DESC").
		Limit(10).
		Scan(&report.TopActors).Error; err != nil {
		return nil, err
	}

	return report, nil
}

// StartExporter runs a background goroutine that periodically exports new
// audit rows to object storage as NDJSON files.
func (s *AuditService) StartExporter(interval time.Duration) {
	if s.Storage == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.export()
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

func (s *AuditService) export() {
	var cursor models.AuditExportCursor
	err := s.DB.First(&cursor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			cursor = models.AuditExportCursor{
				LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			if createErr := s.DB.Create(&cursor).Error; createErr != nil {
				logger.Error("audit_export_cursor_create_failed", createErr, nil)
				return
			}
		} else {
			logger.Error("audit_export_cursor_load_failed", err, nil)
			return
		}
	}

	var logs []models.AuditLog
	if err := s.DB.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		logger.Error("audit_export_query_failed", err, nil)
		return
	}

	if len(logs) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range logs {
		if err := enc.Encode(row); err != nil {
			logger.Error("audit_export_encode_failed", err, map[string]interface{}{
				"log_id": row.ID.String(),
			})
			continue
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05"),
	)

	if err := s.Storage.Upload(
		context.Background(),
		objectName,
		&buf,
		int64(buf.Len()),
		"application/x-ndjson",
	); err != nil {
		logger.Error("audit_export_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"count":       len(logs),
		})
		return
	}

	lastCreatedAt := logs[len(logs)-1].CreatedAt
	s.DB.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	})

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
}
