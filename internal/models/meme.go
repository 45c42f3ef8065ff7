package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Meme is a derived artifact: a template plus a serialized text-overlay
// layout produced by the editor, optionally with a client-rendered output
// image. Memes start private; only public memes appear in the gallery and
// accept votes.
type Meme struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID uuid.UUID      `gorm:"type:uuid;not null;index" json:"templateId"`
	OwnerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"ownerId"`
	Layout     datatypes.JSON `json:"layout"`
	OutputFile string         `gorm:"type:text" json:"outputFile,omitempty"`
	Public     bool           `gorm:"not null;default:false;index" json:"public"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"createdAt"`

	// No FK constraint on the template: deleting a template leaves memes
	// holding their template_id snapshot.
	Template *Template `gorm:"foreignKey:TemplateID;references:ID;constraint:-" json:"-"`
	Owner    *User     `gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (m *Meme) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
