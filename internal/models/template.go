package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Template is an uploaded base image users compose memes on. FileName is
// always server-generated; client input never reaches the filesystem.
type Template struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	FileName  string    `gorm:"type:text;not null" json:"fileName"`
	Width     int       `gorm:"not null" json:"width"`
	Height    int       `gorm:"not null" json:"height"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"ownerId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Owner *User `gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (t *Template) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
