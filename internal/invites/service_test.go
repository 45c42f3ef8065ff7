package invites

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/db"
	"github.com/petejm/possumbly/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := db.Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	rec := audit.NewRecorder(gdb)
	t.Cleanup(rec.Close)
	return NewService(gdb, rec), gdb
}

func createUser(t *testing.T, gdb *gorm.DB, role string, redeemed bool) *models.User {
	t.Helper()
	user := &models.User{
		Provider:       "github",
		ProviderUserID: uuid.NewString(),
		DisplayName:    "user-" + uuid.NewString()[:8],
		Role:           role,
		InviteRedeemed: redeemed,
	}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

func TestCreateGeneratesHexCode(t *testing.T) {
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)

	invite, err := svc.Create(context.Background(), admin.ID)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[0-9A-F]{12}$`), invite.Code)
	require.Equal(t, admin.ID, invite.CreatedByID)
	require.Nil(t, invite.UsedByID)
}

func TestRedeemNormalizesInput(t *testing.T) {
	// Lowercase input with stray whitespace still matches the stored code.
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)
	user := createUser(t, gdb, models.RoleUser, false)

	invite := &models.InviteCode{Code: "A1B2C3D4E5F6", CreatedByID: admin.ID}
	require.NoError(t, gdb.Create(invite).Error)

	require.NoError(t, svc.Redeem(context.Background(), user, "  a1b2c3d4e5f6 "))
	require.True(t, user.InviteRedeemed)

	var stored models.InviteCode
	require.NoError(t, gdb.First(&stored, "id = ?", invite.ID).Error)
	require.NotNil(t, stored.UsedByID)
	require.Equal(t, user.ID, *stored.UsedByID)
	require.NotNil(t, stored.UsedAt)

	var fresh models.User
	require.NoError(t, gdb.First(&fresh, "id = ?", user.ID).Error)
	require.True(t, fresh.InviteRedeemed)
}

func TestRedeemSecondUserGetsGenericError(t *testing.T) {
	// A used code must be indistinguishable from an unknown one, and the
	// first redemption must be untouched.
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)
	first := createUser(t, gdb, models.RoleUser, false)
	second := createUser(t, gdb, models.RoleUser, false)

	invite := &models.InviteCode{Code: "A1B2C3D4E5F6", CreatedByID: admin.ID}
	require.NoError(t, gdb.Create(invite).Error)

	require.NoError(t, svc.Redeem(context.Background(), first, "A1B2C3D4E5F6"))
	require.ErrorIs(t, svc.Redeem(context.Background(), second, "A1B2C3D4E5F6"), ErrInvalidCode)

	var stored models.InviteCode
	require.NoError(t, gdb.First(&stored, "id = ?", invite.ID).Error)
	require.Equal(t, first.ID, *stored.UsedByID)

	var fresh models.User
	require.NoError(t, gdb.First(&fresh, "id = ?", second.ID).Error)
	require.False(t, fresh.InviteRedeemed)
}

func TestRedeemCollapsesFailureModes(t *testing.T) {
	svc, gdb := newTestService(t)
	user := createUser(t, gdb, models.RoleUser, false)

	tests := []struct {
		name string
		code string
	}{
		{"bad format", "nope"},
		{"wrong length", "A1B2C3"},
		{"non-hex characters", "ZZZZZZZZZZZZ"},
		{"well-formed but unknown", "0123456789AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, svc.Redeem(context.Background(), user, tt.code), ErrInvalidCode)
		})
	}
}

func TestRedeemRejectsAlreadyInvited(t *testing.T) {
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)
	redeemed := createUser(t, gdb, models.RoleUser, true)

	invite := &models.InviteCode{Code: "AAAABBBBCCCC", CreatedByID: admin.ID}
	require.NoError(t, gdb.Create(invite).Error)

	require.ErrorIs(t, svc.Redeem(context.Background(), redeemed, "AAAABBBBCCCC"), ErrAlreadyRedeemed)
	require.ErrorIs(t, svc.Redeem(context.Background(), admin, "AAAABBBBCCCC"), ErrAlreadyRedeemed)

	// The code is still unredeemed.
	var stored models.InviteCode
	require.NoError(t, gdb.First(&stored, "id = ?", invite.ID).Error)
	require.Nil(t, stored.UsedByID)
}

func TestDelete(t *testing.T) {
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)
	user := createUser(t, gdb, models.RoleUser, false)

	unused, err := svc.Create(context.Background(), admin.ID)
	require.NoError(t, err)
	used, err := svc.Create(context.Background(), admin.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Redeem(context.Background(), user, used.Code))

	require.ErrorIs(t, svc.Delete(context.Background(), admin.ID, uuid.New()), ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), admin.ID, used.ID), ErrAlreadyUsed)
	require.NoError(t, svc.Delete(context.Background(), admin.ID, unused.ID))

	var count int64
	require.NoError(t, gdb.Model(&models.InviteCode{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestListNewestFirstWithNames(t *testing.T) {
	svc, gdb := newTestService(t)
	admin := createUser(t, gdb, models.RoleAdmin, false)
	user := createUser(t, gdb, models.RoleUser, false)

	older, err := svc.Create(context.Background(), admin.ID)
	require.NoError(t, err)
	require.NoError(t, gdb.Model(older).Update("created_at", older.CreatedAt.Add(-time.Hour)).Error)
	newer, err := svc.Create(context.Background(), admin.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Redeem(context.Background(), user, newer.Code))

	views, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, newer.ID, views[0].ID)
	require.Equal(t, admin.DisplayName, views[0].CreatedBy)
	require.NotNil(t, views[0].UsedBy)
	require.Equal(t, user.DisplayName, *views[0].UsedBy)
	require.Nil(t, views[1].UsedBy)
}
