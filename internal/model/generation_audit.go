package model

import "time"

// GenerationAudit records the outcome of one AI generation attempt. Rows are
// appended by the audit worker; they never feed back into suggestions.
type GenerationAudit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	EntryNumber int       `gorm:"not null" json:"entry_number"`
	Action      string    `gorm:"size:16;not null" json:"action"`
	Model       string    `gorm:"size:64" json:"model"`
	Status      string    `gorm:"size:16;not null" json:"status"`
	Detail      string    `gorm:"type:text" json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"

	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
)
