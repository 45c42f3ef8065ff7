package gallery

import (
	"context"
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

func createUser(t *testing.T, gdb *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Provider:       "github",
		ProviderUserID: uuid.NewString(),
		DisplayName:    "voter",
		Role:           models.RoleUser,
		InviteRedeemed: true,
	}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

func createMeme(t *testing.T, gdb *gorm.DB, owner *models.User, public bool, createdAt time.Time) *models.Meme {
	t.Helper()
	template := &models.Template{
		Name: "blank", FileName: uuid.NewString() + ".png",
		Width: 100, Height: 100, OwnerID: owner.ID,
	}
	require.NoError(t, gdb.Create(template).Error)

	meme := &models.Meme{
		TemplateID: template.ID,
		OwnerID:    owner.ID,
		Layout:     []byte(`{"texts":[]}`),
		Public:     public,
	}
	require.NoError(t, gdb.Create(meme).Error)
	if !createdAt.IsZero() {
		require.NoError(t, gdb.Model(meme).Update("created_at", createdAt).Error)
		meme.CreatedAt = createdAt
	}
	return meme
}

func TestCastInsertsAndCounts(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	counts, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts.Upvotes)
	require.EqualValues(t, 0, counts.Downvotes)
	require.EqualValues(t, 1, counts.Score)
	require.NotNil(t, counts.UserVote)
	require.Equal(t, models.VoteUp, *counts.UserVote)
}

func TestCastIdempotent(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	first, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	second, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var rows int64
	require.NoError(t, gdb.Model(&models.Vote{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestCastOppositeOverwritesInPlace(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	_, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)
	counts, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteDown)
	require.NoError(t, err)

	require.EqualValues(t, 0, counts.Upvotes)
	require.EqualValues(t, 1, counts.Downvotes)
	require.EqualValues(t, -1, counts.Score)

	var rows int64
	require.NoError(t, gdb.Model(&models.Vote{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestCastUpsertsExistingRow(t *testing.T) {
	// A vote row that already exists when the upsert runs must be updated
	// in place through the conflict arm, never duplicated or errored.
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	existing := &models.Vote{MemeID: meme.ID, UserID: voter.ID, Value: models.VoteUp}
	require.NoError(t, gdb.Create(existing).Error)

	counts, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteDown)
	require.NoError(t, err)
	require.EqualValues(t, -1, counts.Score)

	var rows []models.Vote
	require.NoError(t, gdb.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, models.VoteDown, rows[0].Value)
}

func TestCountsUnknownMeme(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Counts(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCastRejectsPrivateMeme(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	private := createMeme(t, gdb, owner, false, time.Time{})

	_, err := svc.Cast(context.Background(), private.ID, voter.ID, models.VoteUp)
	require.ErrorIs(t, err, ErrNotPublic)

	var rows int64
	require.NoError(t, gdb.Model(&models.Vote{}).Count(&rows).Error)
	require.EqualValues(t, 0, rows)
}

func TestCastRejectsUnknownMemeAndBadValue(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	_, err := svc.Cast(context.Background(), uuid.New(), owner.ID, models.VoteUp)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Cast(context.Background(), meme.ID, owner.ID, 2)
	require.ErrorIs(t, err, ErrBadVote)
	_, err = svc.Cast(context.Background(), meme.ID, owner.ID, 0)
	require.ErrorIs(t, err, ErrBadVote)
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	voter := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	_, err := svc.Cast(context.Background(), meme.ID, voter.ID, models.VoteUp)
	require.NoError(t, err)

	counts, err := svc.Remove(context.Background(), meme.ID, voter.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, counts.Score)
	require.Nil(t, counts.UserVote)

	// Removing again is a silent no-op.
	counts, err = svc.Remove(context.Background(), meme.ID, voter.ID)
	require.NoError(t, err)
	require.Nil(t, counts.UserVote)
}

func TestListFiltersPublicAndRanksHot(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	base := time.Unix(rankEpoch, 0).UTC()

	older := createMeme(t, gdb, owner, true, base)
	newer := createMeme(t, gdb, owner, true, base.Add(45000*time.Second))
	createMeme(t, gdb, owner, false, base) // private, never listed

	// Give both score 2 so only age separates them.
	for _, m := range []*models.Meme{older, newer} {
		for i := 0; i < 2; i++ {
			v := createUser(t, gdb)
			_, err := svc.Cast(context.Background(), m.ID, v.ID, models.VoteUp)
			require.NoError(t, err)
		}
	}

	page, err := svc.List(context.Background(), uuid.Nil, ListOptions{Period: "all", Sort: SortHot, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, newer.ID, page.Items[0].ID)
	require.Equal(t, older.ID, page.Items[1].ID)
	require.EqualValues(t, 2, page.Items[0].Score)
}

func TestListSortTopAndNew(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	base := time.Now().UTC().Add(-time.Hour)

	low := createMeme(t, gdb, owner, true, base.Add(time.Minute))
	high := createMeme(t, gdb, owner, true, base)

	for i := 0; i < 3; i++ {
		v := createUser(t, gdb)
		_, err := svc.Cast(context.Background(), high.ID, v.ID, models.VoteUp)
		require.NoError(t, err)
	}

	top, err := svc.List(context.Background(), uuid.Nil, ListOptions{Sort: SortTop, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, high.ID, top.Items[0].ID)

	newest, err := svc.List(context.Background(), uuid.Nil, ListOptions{Sort: SortNew, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, low.ID, newest.Items[0].ID)
}

func TestListPeriodWindow(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)

	recent := createMeme(t, gdb, owner, true, time.Now().UTC().Add(-24*time.Hour))
	createMeme(t, gdb, owner, true, time.Now().UTC().Add(-10*24*time.Hour))

	page, err := svc.List(context.Background(), uuid.Nil, ListOptions{Period: "7d", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, recent.ID, page.Items[0].ID)

	page, err = svc.List(context.Background(), uuid.Nil, ListOptions{Period: "all", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
}

func TestListClampsPagination(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	for i := 0; i < 3; i++ {
		createMeme(t, gdb, owner, true, time.Time{})
	}

	page, err := svc.List(context.Background(), uuid.Nil, ListOptions{Limit: 1000, Page: 1})
	require.NoError(t, err)
	require.Equal(t, MaxLimit, page.Pagination.Limit)

	page, err = svc.List(context.Background(), uuid.Nil, ListOptions{Limit: 0, Page: 0})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Limit)
	require.Equal(t, 1, page.Pagination.Page)
	require.Len(t, page.Items, 1)
	require.EqualValues(t, 3, page.Pagination.Total)
	require.Equal(t, 3, page.Pagination.TotalPages)
	require.True(t, page.Pagination.HasNext)
	require.False(t, page.Pagination.HasPrev)

	page, err = svc.List(context.Background(), uuid.Nil, ListOptions{Limit: -5, Page: 99})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Limit)
	require.Empty(t, page.Items)
	require.False(t, page.Pagination.HasNext)
	require.True(t, page.Pagination.HasPrev)
}

func TestListViewerVote(t *testing.T) {
	svc, gdb := newTestService(t)
	owner := createUser(t, gdb)
	viewer := createUser(t, gdb)
	meme := createMeme(t, gdb, owner, true, time.Time{})

	_, err := svc.Cast(context.Background(), meme.ID, viewer.ID, models.VoteDown)
	require.NoError(t, err)

	page, err := svc.List(context.Background(), viewer.ID, ListOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].UserVote)
	require.Equal(t, models.VoteDown, *page.Items[0].UserVote)
}
