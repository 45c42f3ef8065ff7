package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote values.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Vote records one user's opinion on one meme. The composite unique index on
// (meme_id, user_id) is load-bearing: it is what guarantees at most one row
// per pair under concurrent casts, not application-level checks.
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MemeID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_meme_user" json:"memeId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_meme_user" json:"userId"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Meme *Meme `gorm:"foreignKey:MemeID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
