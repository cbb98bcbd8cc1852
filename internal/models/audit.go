package models

import (
	"time"
)

// AuditLog records who composed, reconciled or edited billing data
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Action    string    `gorm:"size:50;not null" json:"action"` // COMPOSE, RECONCILE, PROGRESS
	Entity    string    `gorm:"size:50;not null" json:"entity"` // Statement, LineItem, AmendmentInvoiceLine
	EntityID  uint      `json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit actions
const (
	AuditActionCompose   = "COMPOSE"
	AuditActionReconcile = "RECONCILE"
	AuditActionProgress  = "PROGRESS"
)
