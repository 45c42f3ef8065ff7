package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/auth"
)

const stateCookie = "possumbly_oauth_state"

func (a *API) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	respondJSON(w, http.StatusOK, map[string]any{"providers": names})
}

func (a *API) handleBeginAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.providers[chi.URLParam(r, "provider")]
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("unknown provider"))
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		internalError(w, r, err)
		return
	}
	state := hex.EncodeToString(buf)

	redirectURL, err := provider.BeginAuth(state)
	if err != nil {
		internalError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (a *API) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.providers[chi.URLParam(r, "provider")]
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("unknown provider"))
		return
	}

	params := r.URL.Query()
	if c, err := r.Cookie(stateCookie); err != nil || c.Value == "" || c.Value != params.Get("state") {
		a.recordLoginFailure(r, provider.Name(), "state mismatch")
		respondError(w, http.StatusBadRequest, errors.New("invalid login attempt"))
		return
	}

	ident, err := provider.CompleteAuth(r.Context(), params)
	if err != nil {
		a.recordLoginFailure(r, provider.Name(), "exchange failed")
		respondError(w, http.StatusBadRequest, errors.New("invalid login attempt"))
		return
	}

	user, err := a.resolver.Resolve(r.Context(), ident)
	if err != nil {
		internalError(w, r, err)
		return
	}

	token, err := auth.NewSessionToken(a.cfg.SessionSecret, user.ID, a.cfg.SessionTTL)
	if err != nil {
		internalError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	a.audits.Record(audit.Entry{
		Action:    audit.ActionLogin,
		UserID:    &user.ID,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Details:   map[string]any{"provider": provider.Name()},
		Success:   true,
	})

	http.Redirect(w, r, a.cfg.BaseURL, http.StatusFound)
}

func (a *API) recordLoginFailure(r *http.Request, provider, reason string) {
	a.audits.Record(audit.Entry{
		Action:    audit.ActionLoginFailed,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Details:   map[string]any{"provider": provider, "reason": reason},
		Success:   false,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": auth.UserFrom(r.Context())})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	a.audits.Record(audit.Entry{
		Action:  audit.ActionLogout,
		UserID:  &user.ID,
		IP:      audit.ClientIP(r),
		Success: true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
