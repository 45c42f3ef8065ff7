// Package audit maintains the append-only record of security-relevant
// events. Writes are buffered and batched in the background; an entry that
// cannot be queued is dropped rather than blocking the request path.
package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/models"
)

const (
	maxUserAgentLen = 500

	queueDepth    = 1024
	batchSize     = 64
	flushInterval = 2 * time.Second
)

// Entry is one security-relevant event to record.
type Entry struct {
	Action       Action
	UserID       *uuid.UUID
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IP           string
	UserAgent    string
	Success      bool
}

// Recorder batches audit entries into the store.
type Recorder struct {
	db      *gorm.DB
	queue   chan models.AuditLog
	done    chan struct{}
	wg      sync.WaitGroup
	dropped uint64
	mu      sync.Mutex
}

// NewRecorder starts the background writer goroutine. Callers own the
// recorder's lifecycle and must Close it on shutdown to drain the queue.
func NewRecorder(db *gorm.DB) *Recorder {
	r := &Recorder{
		db:    db,
		queue: make(chan models.AuditLog, queueDepth),
		done:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record queues an entry. It never blocks: when the queue is full the entry
// is dropped and counted. Audit durability is best-effort, not transactional
// with the action it describes.
func (r *Recorder) Record(e Entry) {
	row := models.AuditLog{
		Action:       string(e.Action),
		UserID:       e.UserID,
		ResourceType: e.ResourceType,
		IP:           e.IP,
		UserAgent:    truncate(e.UserAgent, maxUserAgentLen),
		Success:      e.Success,
		CreatedAt:    time.Now().UTC(),
	}
	if e.ResourceID != "" {
		id := e.ResourceID
		row.ResourceID = &id
	}
	if len(e.Details) > 0 {
		if data, err := json.Marshal(e.Details); err == nil {
			row.Details = data
		}
	}

	select {
	case r.queue <- row:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops the writer after draining any queued entries.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]models.AuditLog, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.db.CreateInBatches(batch, batchSize).Error; err != nil {
			log.Error().Err(err).Int("entries", len(batch)).Msg("audit flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-r.queue:
			batch = append(batch, row)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case row := <-r.queue:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Sweep deletes entries older than the retention window and returns the
// number of rows removed.
func Sweep(ctx context.Context, db *gorm.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return res.RowsAffected, res.Error
}

// Filter narrows an audit query. Zero values mean "any".
type Filter struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	Limit        int
}

// Query returns matching entries, newest first.
func Query(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{}).Order("created_at DESC, id DESC")
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []models.AuditLog
	if err := q.Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ClientIP extracts the caller address: first X-Forwarded-For hop when
// present, else the direct connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// truncate bounds s to at most n bytes, backing up so a multi-byte rune is
// never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
