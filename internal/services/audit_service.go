package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/driveguard/driveguard/internal/database"
)

// AuditService appends immutable before/after change records. The append-only
// contract is a correctness invariant: this service exposes no update or
// delete operation and none should be added.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditService
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Append records one change. Before and after may each be nil (creation has
// no before, deactivation keeps both).
func (s *AuditService) Append(action database.AuditAction, actor, targetCollection, targetID string, before, after database.JSONB) (*database.AuditRecord, error) {
	if actor == "" {
		return nil, errors.New("actor is required")
	}
	if targetCollection == "" || targetID == "" {
		return nil, errors.New("target collection and id are required")
	}

	record := &database.AuditRecord{
		Action:           action,
		Actor:            actor,
		TargetCollection: targetCollection,
		TargetID:         targetID,
		Before:           before,
		After:            after,
		Timestamp:        time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}
	return record, nil
}

// ListRecent returns the newest records
func (s *AuditService) ListRecent(limit int) ([]database.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []database.AuditRecord
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

// ListByAction filters by action
func (s *AuditService) ListByAction(action database.AuditAction) ([]database.AuditRecord, error) {
	var records []database.AuditRecord
	if err := s.db.Where("action = ?", action).Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit records by action: %w", err)
	}
	return records, nil
}

// ListByTarget filters by target collection and id
func (s *AuditService) ListByTarget(collection, targetID string) ([]database.AuditRecord, error) {
	var records []database.AuditRecord
	if err := s.db.Where("target_collection = ? AND target_id = ?", collection, targetID).
		Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit records by target: %w", err)
	}
	return records, nil
}

// ListByActor filters by actor
func (s *AuditService) ListByActor(actor string) ([]database.AuditRecord, error) {
	var records []database.AuditRecord
	if err := s.db.Where("actor = ?", actor).Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list audit records by actor: %w", err)
	}
	return records, nil
}
