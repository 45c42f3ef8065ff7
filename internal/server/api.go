// Package server wires the HTTP surface: routing, rate-limit groups, and
// the per-resource handlers.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/config"
	"github.com/petejm/possumbly/internal/gallery"
	"github.com/petejm/possumbly/internal/imaging"
	"github.com/petejm/possumbly/internal/invites"
)

// API wires dependencies and configuration for the HTTP handlers.
type API struct {
	db        *gorm.DB
	cfg       config.Config
	guard     *auth.Guard
	resolver  *auth.Resolver
	providers map[string]auth.IdentityProvider
	invites   *invites.Service
	gallery   *gallery.Service
	audits    *audit.Recorder
	inspector imaging.Inspector
}

// New initialises the API layer. Providers may be empty; login routes then
// reject with 404 until one is registered.
func New(db *gorm.DB, cfg config.Config, rec *audit.Recorder, providers []auth.IdentityProvider) (*API, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if rec == nil {
		return nil, errors.New("audit recorder is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is required")
	}

	byName := make(map[string]auth.IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &API{
		db:        db,
		cfg:       cfg,
		guard:     auth.NewGuard(db, cfg.SessionSecret, rec),
		resolver:  auth.NewResolver(db, rec),
		providers: byName,
		invites:   invites.NewService(db, rec),
		gallery:   gallery.NewService(db, rec),
		audits:    rec,
		inspector: imaging.StdInspector{},
	}, nil
}

// Routes constructs the chi router containing all endpoints. Every route
// passes its rate-limit group before the guard chain before the handler.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Use(a.limit(a.cfg.RateLimits.Global))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.limit(a.cfg.RateLimits.Auth))
			r.Get("/auth/providers", a.handleListProviders)
			r.Get("/auth/{provider}", a.handleBeginAuth)
			r.Get("/auth/{provider}/callback", a.handleAuthCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.guard.RequireUser)
			r.Get("/auth/me", a.handleMe)
			r.Post("/auth/logout", a.handleLogout)
			r.Post("/admin/bootstrap", a.handleBootstrap)

			r.With(a.limit(a.cfg.RateLimits.InviteRedeem)).
				Post("/invites/redeem", a.handleRedeemInvite)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.guard.RequireUser, a.guard.RequireInvite)

			r.With(a.limit(a.cfg.RateLimits.Upload)).Post("/templates", a.handleUploadTemplate)
			r.Get("/templates", a.handleListTemplates)
			r.Get("/templates/{id}/file", a.handleTemplateFile)
			r.With(a.limit(a.cfg.RateLimits.Delete)).Delete("/templates/{id}", a.handleDeleteTemplate)

			r.Post("/memes", a.handleCreateMeme)
			r.Get("/memes", a.handleListMemes)
			r.Get("/memes/{id}", a.handleGetMeme)
			r.Put("/memes/{id}", a.handleUpdateMeme)
			r.Get("/memes/{id}/file", a.handleMemeFile)
			r.Post("/memes/{id}/visibility", a.handleMemeVisibility)
			r.With(a.limit(a.cfg.RateLimits.Render)).Post("/memes/{id}/render", a.handleMemeRender)
			r.With(a.limit(a.cfg.RateLimits.Delete)).Delete("/memes/{id}", a.handleDeleteMeme)

			r.Group(func(r chi.Router) {
				r.Use(a.limit(a.cfg.RateLimits.Vote))
				r.Get("/votes/{memeId}", a.handleGetVotes)
				r.Post("/votes/{memeId}", a.handleCastVote)
				r.Delete("/votes/{memeId}", a.handleRemoveVote)
			})

			r.With(a.limit(a.cfg.RateLimits.Gallery)).Get("/gallery", a.handleGallery)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.guard.RequireUser, a.guard.RequireAdmin)
			r.Post("/invites", a.handleCreateInvite)
			r.Get("/admin/invites", a.handleListInvites)
			r.With(a.limit(a.cfg.RateLimits.Delete)).Delete("/invites/{id}", a.handleDeleteInvite)
			r.Get("/admin/users", a.handleListUsers)
			r.Post("/admin/users/{id}/role", a.handleChangeRole)
			r.Get("/admin/audit", a.handleQueryAudit)
		})
	})

	return r
}

// limit builds a per-IP fixed-window limiter for one endpoint group.
// Rejections return 429 with a Retry-After hint and consume no quota.
func (a *API) limit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 60
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rateLimitedTotal.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("db unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
