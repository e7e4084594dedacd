package database

import "time"

// AuditAction identifies what kind of change an audit record describes
type AuditAction string

const (
	AuditActionCreate      AuditAction = "create"
	AuditActionUpdate      AuditAction = "update"
	AuditActionResolve     AuditAction = "resolve"
	AuditActionAcknowledge AuditAction = "acknowledge"
	AuditActionDeactivate  AuditAction = "deactivate"
)

// AuditRecord is an immutable before/after change record.
//
// Records are append-only: no update or delete surface exists for this
// table, and none should be added.
type AuditRecord struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	Action           AuditAction `gorm:"type:varchar(20);not null;index" json:"action"`
	Actor            string      `gorm:"size:255;not null;index" json:"actor"`
	TargetCollection string      `gorm:"size:64;not null;index:idx_audit_target" json:"target_collection"`
	TargetID         string      `gorm:"size:64;not null;index:idx_audit_target" json:"target_id"`
	Before           JSONB       `gorm:"type:jsonb" json:"before"`
	After            JSONB       `gorm:"type:jsonb" json:"after"`
	Timestamp        time.Time   `gorm:"not null;index" json:"timestamp"`
	CreatedAt        time.Time   `json:"created_at"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}
