package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/models"
)

// Resolver maps external identities onto local user records.
type Resolver struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewResolver builds a resolver over the given store.
func NewResolver(db *gorm.DB, rec *audit.Recorder) *Resolver {
	return &Resolver{db: db, rec: rec}
}

// Resolve finds the user for an external identity, creating one on first
// sight. The (provider, provider user id) pair is the identity key; email
// and profile fields are display data refreshed on each login.
func (r *Resolver) Resolve(ctx context.Context, ident Identity) (*models.User, error) {
	if ident.Provider == "" || ident.ProviderUserID == "" {
		return nil, errors.New("incomplete identity")
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", ident.Provider, ident.ProviderUserID).
		First(&user).Error
	if err == nil {
		updates := map[string]any{}
		if ident.DisplayName != "" && ident.DisplayName != user.DisplayName {
			updates["display_name"] = ident.DisplayName
		}
		if ident.AvatarURL != "" && ident.AvatarURL != user.AvatarURL {
			updates["avatar_url"] = ident.AvatarURL
		}
		if len(updates) > 0 {
			if err := r.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		Provider:       ident.Provider,
		ProviderUserID: ident.ProviderUserID,
		DisplayName:    displayName(ident),
		AvatarURL:      ident.AvatarURL,
		Role:           models.RoleUser,
	}
	if email := strings.TrimSpace(strings.ToLower(ident.Email)); email != "" {
		user.Email = &email
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if user.Email == nil {
			return nil, err
		}
		// The email may already belong to an account from another provider;
		// the provider pair stays the identity key, so create without it.
		user.ID = uuid.Nil
		user.Email = nil
		if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
	}

	r.rec.Record(audit.Entry{
		Action:       audit.ActionUserCreated,
		UserID:       &user.ID,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Details:      map[string]any{"provider": ident.Provider},
		Success:      true,
	})

	return &user, nil
}

func displayName(ident Identity) string {
	if name := strings.TrimSpace(ident.DisplayName); name != "" {
		return name
	}
	if at := strings.IndexByte(ident.Email, '@'); at > 0 {
		return ident.Email[:at]
	}
	return "anonymous"
}
