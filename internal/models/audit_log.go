package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog captures security-relevant events. Rows are append-only and are
// removed only by the retention sweep.
type AuditLog struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Action       string         `gorm:"type:text;not null;index" json:"action"`
	UserID       *uuid.UUID     `gorm:"type:uuid;index" json:"userId,omitempty"`
	ResourceType string         `gorm:"type:text;index" json:"resourceType,omitempty"`
	ResourceID   *string        `gorm:"type:text" json:"resourceId,omitempty"`
	Details      datatypes.JSON `json:"details,omitempty"`
	IP           string         `gorm:"type:text" json:"ip,omitempty"`
	UserAgent    string         `gorm:"type:text" json:"userAgent,omitempty"`
	Success      bool           `gorm:"not null;default:true" json:"success"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}
