// Package invites implements the single-use invite code ledger.
package invites

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/models"
)

var (
	// ErrInvalidCode covers bad format, unknown codes, and already-used
	// codes with a single message. Distinguishing "not found" from
	// "already used" would let an attacker enumerate valid-but-used codes.
	ErrInvalidCode = errors.New("Invalid invite code")
	// ErrAlreadyRedeemed rejects callers who already passed the invite gate.
	ErrAlreadyRedeemed = errors.New("Invite already redeemed")
	// ErrNotFound is returned when deleting an unknown invite.
	ErrNotFound = errors.New("invite not found")
	// ErrAlreadyUsed is returned when deleting a redeemed invite.
	ErrAlreadyUsed = errors.New("invite already used")
)

// codePattern matches a normalized invite code: 12 uppercase hex characters.
var codePattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

// Service is the invite ledger.
type Service struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewService builds the ledger over the given store.
func NewService(db *gorm.DB, rec *audit.Recorder) *Service {
	return &Service{db: db, rec: rec}
}

// generateCode renders 6 cryptographically random bytes as 12 uppercase hex
// characters. crypto/rand is required here: guessability is security-relevant.
func generateCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Create mints a new invite code on behalf of an admin.
func (s *Service) Create(ctx context.Context, adminID uuid.UUID) (*models.InviteCode, error) {
	var invite *models.InviteCode
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var code string
		code, err = generateCode()
		if err != nil {
			return nil, err
		}
		candidate := &models.InviteCode{Code: code, CreatedByID: adminID}
		if err = s.db.WithContext(ctx).Create(candidate).Error; err == nil {
			invite = candidate
			break
		}
		// Collision on the unique code index is the only retryable case.
	}
	if invite == nil {
		return nil, err
	}

	s.rec.Record(audit.Entry{
		Action:       audit.ActionInviteCreated,
		UserID:       &adminID,
		ResourceType: "invite",
		ResourceID:   invite.ID.String(),
		Success:      true,
	})
	return invite, nil
}

// Redeem marks a code used by the given user and flips the user's
// invite-redeemed flag, atomically. The guarded UPDATE (used_by_id IS NULL)
// is the linearization point; two concurrent redemptions of the same code
// cannot both see an affected row.
func (s *Service) Redeem(ctx context.Context, user *models.User, raw string) error {
	if user.CanAccess() {
		return ErrAlreadyRedeemed
	}

	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		s.recordRedeemFailure(user, "format")
		return ErrInvalidCode
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InviteCode{}).
			Where("code = ? AND used_by_id IS NULL", code).
			Updates(map[string]any{"used_by_id": user.ID, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidCode
		}
		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("invite_redeemed", true).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			s.recordRedeemFailure(user, "invalid")
		}
		return err
	}

	user.InviteRedeemed = true
	s.rec.Record(audit.Entry{
		Action:       audit.ActionInviteRedeemed,
		UserID:       &user.ID,
		ResourceType: "invite",
		Success:      true,
	})
	return nil
}

func (s *Service) recordRedeemFailure(user *models.User, reason string) {
	s.rec.Record(audit.Entry{
		Action:       audit.ActionInviteRedeemFail,
		UserID:       &user.ID,
		ResourceType: "invite",
		Details:      map[string]any{"reason": reason},
		Success:      false,
	})
}

// Delete removes an invite. Redeemed invites are part of the historical
// record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, adminID, inviteID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.InviteCode
		if err := tx.First(&invite, "id = ?", inviteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if invite.UsedByID != nil {
			return ErrAlreadyUsed
		}
		res := tx.Where("id = ? AND used_by_id IS NULL", inviteID).Delete(&models.InviteCode{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUsed
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.rec.Record(audit.Entry{
		Action:       audit.ActionInviteDeleted,
		UserID:       &adminID,
		ResourceType: "invite",
		ResourceID:   inviteID.String(),
		Success:      true,
	})
	return nil
}

// View is the display projection of an invite: the stored row enriched with
// human-readable creator and redeemer names.
type View struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	CreatedBy string     `json:"createdBy"`
	UsedBy    *string    `json:"usedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// List returns all invites, newest first.
func (s *Service) List(ctx context.Context) ([]View, error) {
	var invites []models.InviteCode
	if err := s.db.WithContext(ctx).
		Preload("CreatedBy").Preload("UsedBy").
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, err
	}

	views := make([]View, 0, len(invites))
	for _, inv := range invites {
		v := View{
			ID:        inv.ID,
			Code:      inv.Code,
			CreatedAt: inv.CreatedAt,
			UsedAt:    inv.UsedAt,
		}
		if inv.CreatedBy != nil {
			v.CreatedBy = inv.CreatedBy.DisplayName
		}
		if inv.UsedBy != nil {
			name := inv.UsedBy.DisplayName
			v.UsedBy = &name
		}
		views = append(views, v)
	}
	return views, nil
}
