package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role values assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an end user of the possumbly platform. Users are created on
// the first successful identity-provider callback and are never deleted.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          *string   `gorm:"type:text;uniqueIndex" json:"email,omitempty"`
	DisplayName    string    `gorm:"type:text" json:"displayName"`
	AvatarURL      string    `gorm:"type:text" json:"avatarUrl,omitempty"`
	Provider       string    `gorm:"type:text;not null;uniqueIndex:idx_users_provider_identity" json:"provider"`
	ProviderUserID string    `gorm:"type:text;not null;uniqueIndex:idx_users_provider_identity" json:"-"`
	Role           string    `gorm:"type:text;not null;default:user" json:"role"`
	InviteRedeemed bool      `gorm:"not null;default:false" json:"inviteRedeemed"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// BeforeCreate assigns the primary key client-side so the schema works on both
// the postgres and sqlite dialects.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// CanAccess reports whether the user has passed the invite gate.
func (u *User) CanAccess() bool { return u.InviteRedeemed || u.IsAdmin() }
