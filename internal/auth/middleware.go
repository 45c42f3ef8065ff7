package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/models"
)

// Guard provides the authorization middleware chain. Access levels are
// strictly ordered: unauthenticated < authenticated < invite-redeemed <
// admin. Each guard fully rejects before the next guard or the handler runs,
// so no partial authorization state is observable downstream.
type Guard struct {
	db     *gorm.DB
	secret string
	rec    *audit.Recorder
}

// NewGuard builds the guard chain over the given store and signing secret.
func NewGuard(db *gorm.DB, secret string, rec *audit.Recorder) *Guard {
	return &Guard{db: db, secret: secret, rec: rec}
}

// RequireUser resolves the session to a live user record and injects it into
// the request context. Requests without a valid session get 401.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			unauthorized(w)
			return
		}

		userID, err := ParseSessionToken(g.secret, token)
		if err != nil {
			unauthorized(w)
			return
		}

		var user models.User
		if err := g.db.WithContext(r.Context()).First(&user, "id = ?", userID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error().Err(err).Msg("session user lookup failed")
			}
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
	})
}

// RequireInvite rejects authenticated users who have not redeemed an invite
// code. Admins pass implicitly.
func (g *Guard) RequireInvite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil {
			unauthorized(w)
			return
		}
		if !user.CanAccess() {
			g.deny(r, user, "invite")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Invite code required","code":"INVITE_REQUIRED"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin users.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil {
			unauthorized(w)
			return
		}
		if !user.IsAdmin() {
			g.deny(r, user, "admin")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) deny(r *http.Request, user *models.User, gate string) {
	g.rec.Record(audit.Entry{
		Action:    audit.ActionAccessDenied,
		UserID:    &user.ID,
		Details:   map[string]any{"gate": gate, "path": r.URL.Path},
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   false,
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`))
}
