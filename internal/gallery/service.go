// Package gallery implements the vote engine and the ranked public gallery.
package gallery

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/models"
)

var (
	// ErrNotFound is returned for votes against an absent meme.
	ErrNotFound = errors.New("meme not found")
	// ErrNotPublic rejects votes on private memes.
	ErrNotPublic = errors.New("Can only vote on public memes")
	// ErrBadVote rejects vote values other than +1 and -1.
	ErrBadVote = errors.New("vote must be 1 or -1")
)

// VoteCounts is the aggregate returned after every vote operation. Counts
// are always recomputed from live vote rows, never cached.
type VoteCounts struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Score     int64 `json:"score"`
	UserVote  *int  `json:"userVote"`
}

// Service drives voting and gallery ranking.
type Service struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewService builds the vote engine over the given store.
func NewService(db *gorm.DB, rec *audit.Recorder) *Service {
	return &Service{db: db, rec: rec}
}

// Cast records a vote. Re-casting the same value is a no-op; casting the
// opposite value overwrites the row in place. The write is a single atomic
// upsert keyed on the unique (meme_id, user_id) index, so concurrent casts
// resolve to last-writer-wins on every dialect.
func (s *Service) Cast(ctx context.Context, memeID, userID uuid.UUID, value int) (VoteCounts, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return VoteCounts{}, ErrBadVote
	}

	var meme models.Meme
	if err := s.db.WithContext(ctx).First(&meme, "id = ?", memeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VoteCounts{}, ErrNotFound
		}
		return VoteCounts{}, err
	}
	if !meme.Public {
		return VoteCounts{}, ErrNotPublic
	}

	vote := models.Vote{MemeID: memeID, UserID: userID, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meme_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"value": value}),
	}).Create(&vote).Error
	if err != nil {
		return VoteCounts{}, err
	}

	s.rec.Record(audit.Entry{
		Action:       audit.ActionVoteCast,
		UserID:       &userID,
		ResourceType: "meme",
		ResourceID:   memeID.String(),
		Details:      map[string]any{"value": value},
		Success:      true,
	})
	return s.Counts(ctx, memeID, &userID)
}

// Remove deletes the caller's vote if present; absent votes are a silent
// no-op. The returned counts always carry a nil UserVote.
func (s *Service) Remove(ctx context.Context, memeID, userID uuid.UUID) (VoteCounts, error) {
	var meme models.Meme
	if err := s.db.WithContext(ctx).First(&meme, "id = ?", memeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VoteCounts{}, ErrNotFound
		}
		return VoteCounts{}, err
	}

	res := s.db.WithContext(ctx).
		Where("meme_id = ? AND user_id = ?", memeID, userID).
		Delete(&models.Vote{})
	if res.Error != nil {
		return VoteCounts{}, res.Error
	}
	if res.RowsAffected > 0 {
		s.rec.Record(audit.Entry{
			Action:       audit.ActionVoteRemoved,
			UserID:       &userID,
			ResourceType: "meme",
			ResourceID:   memeID.String(),
			Success:      true,
		})
	}

	counts, err := s.Counts(ctx, memeID, nil)
	if err != nil {
		return VoteCounts{}, err
	}
	counts.UserVote = nil
	return counts, nil
}

// Counts recomputes the aggregate for one meme, including the viewer's own
// vote when a viewer is given. Unknown memes return ErrNotFound rather than
// an empty aggregate.
func (s *Service) Counts(ctx context.Context, memeID uuid.UUID, viewerID *uuid.UUID) (VoteCounts, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Meme{}).Where("id = ?", memeID).Count(&exists).Error; err != nil {
		return VoteCounts{}, err
	}
	if exists == 0 {
		return VoteCounts{}, ErrNotFound
	}

	var counts VoteCounts
	q := s.db.WithContext(ctx).Model(&models.Vote{}).Where("meme_id = ?", memeID)

	if err := q.Session(&gorm.Session{}).Where("value > 0").Count(&counts.Upvotes).Error; err != nil {
		return VoteCounts{}, err
	}
	if err := q.Session(&gorm.Session{}).Where("value < 0").Count(&counts.Downvotes).Error; err != nil {
		return VoteCounts{}, err
	}
	counts.Score = counts.Upvotes - counts.Downvotes

	if viewerID != nil {
		var vote models.Vote
		err := s.db.WithContext(ctx).
			Where("meme_id = ? AND user_id = ?", memeID, *viewerID).
			First(&vote).Error
		switch {
		case err == nil:
			v := vote.Value
			counts.UserVote = &v
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return VoteCounts{}, err
		}
	}
	return counts, nil
}

// Sort orders for the gallery.
const (
	SortHot = "hot"
	SortTop = "top"
	SortNew = "new"
)

// Gallery pagination bounds.
const (
	MinLimit = 1
	MaxLimit = 50
)

var periodWindows = map[string]time.Duration{
	"7d":   7 * 24 * time.Hour,
	"30d":  30 * 24 * time.Hour,
	"year": 365 * 24 * time.Hour,
	"all":  0,
}

// ListOptions select and page the gallery. Unknown periods fall back to
// "all", unknown sorts to "hot"; page and limit are clamped, not rejected.
type ListOptions struct {
	Period string
	Sort   string
	Page   int
	Limit  int
}

// Item is one gallery entry: the public meme plus its live vote aggregate
// and the viewer's own vote.
type Item struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"templateId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	OwnerName  string    `json:"ownerName,omitempty"`
	OutputFile string    `json:"outputFile,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Upvotes    int64     `json:"upvotes"`
	Downvotes  int64     `json:"downvotes"`
	Score      int64     `json:"score"`
	UserVote   *int      `json:"userVote"`

	hot float64
}

// Pagination describes the returned page.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Page is one page of ranked gallery items.
type Page struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// List returns the ranked public gallery. All sorts are total orders with a
// deterministic tie-break (created_at, then id) so paging is reproducible.
func (s *Service) List(ctx context.Context, viewerID uuid.UUID, opts ListOptions) (*Page, error) {
	window, ok := periodWindows[opts.Period]
	if !ok {
		window = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Meme{}).Where("public = ?", true)
	if window > 0 {
		q = q.Where("created_at >= ?", time.Now().UTC().Add(-window))
	}

	var memes []models.Meme
	if err := q.Preload("Owner").Find(&memes).Error; err != nil {
		return nil, err
	}

	upByMeme, downByMeme, err := s.voteTotals(ctx)
	if err != nil {
		return nil, err
	}
	viewerVotes, err := s.viewerVotes(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(memes))
	for _, m := range memes {
		item := Item{
			ID:         m.ID,
			TemplateID: m.TemplateID,
			OwnerID:    m.OwnerID,
			OutputFile: m.OutputFile,
			CreatedAt:  m.CreatedAt,
			Upvotes:    upByMeme[m.ID],
			Downvotes:  downByMeme[m.ID],
		}
		item.Score = item.Upvotes - item.Downvotes
		item.hot = HotScore(item.Score, m.CreatedAt)
		if m.Owner != nil {
			item.OwnerName = m.Owner.DisplayName
		}
		if v, ok := viewerVotes[m.ID]; ok {
			vote := v
			item.UserVote = &vote
		}
		items = append(items, item)
	}

	sortItems(items, opts.Sort)

	limit := opts.Limit
	if limit < MinLimit {
		limit = MinLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	total := int64(len(items))
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	return &Page{
		Items: items[start:end],
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1 && total > 0,
		},
	}, nil
}

func sortItems(items []Item, order string) {
	var less func(a, b Item) bool
	switch order {
	case SortTop:
		less = func(a, b Item) bool { return a.Score > b.Score }
	case SortNew:
		less = func(a, b Item) bool { return a.CreatedAt.After(b.CreatedAt) }
	default: // SortHot
		less = func(a, b Item) bool { return a.hot > b.hot }
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

type voteTotal struct {
	MemeID uuid.UUID
	Total  int64
}

func (s *Service) voteTotals(ctx context.Context) (up, down map[uuid.UUID]int64, err error) {
	up = make(map[uuid.UUID]int64)
	down = make(map[uuid.UUID]int64)

	var ups []voteTotal
	if err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("meme_id, COUNT(*) AS total").
		Where("value > 0").
		Group("meme_id").
		Scan(&ups).Error; err != nil {
		return nil, nil, err
	}
	for _, t := range ups {
		up[t.MemeID] = t.Total
	}

	var downs []voteTotal
	if err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("meme_id, COUNT(*) AS total").
		Where("value < 0").
		Group("meme_id").
		Scan(&downs).Error; err != nil {
		return nil, nil, err
	}
	for _, t := range downs {
		down[t.MemeID] = t.Total
	}
	return up, down, nil
}

func (s *Service) viewerVotes(ctx context.Context, viewerID uuid.UUID) (map[uuid.UUID]int, error) {
	votes := make(map[uuid.UUID]int)
	if viewerID == uuid.Nil {
		return votes, nil
	}

	var rows []models.Vote
	if err := s.db.WithContext(ctx).Where("user_id = ?", viewerID).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		votes[v.MemeID] = v.Value
	}
	return votes, nil
}
