package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteCode is a single-use capability token gating platform access beyond
// basic authentication. Once UsedByID is set it is never cleared; a code is
// redeemable iff UsedByID is null.
type InviteCode struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string     `gorm:"type:text;uniqueIndex;not null" json:"code"`
	CreatedByID uuid.UUID  `gorm:"type:uuid;not null;index" json:"createdBy"`
	UsedByID    *uuid.UUID `gorm:"type:uuid;index" json:"usedBy,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`

	CreatedBy *User `gorm:"foreignKey:CreatedByID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	UsedBy    *User `gorm:"foreignKey:UsedByID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
}

func (c *InviteCode) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
