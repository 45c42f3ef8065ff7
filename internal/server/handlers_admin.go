package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/models"
)

// handleBootstrap promotes the caller to admin, but only while no admin
// exists. The count-and-promote runs in one transaction so concurrent calls
// cannot both succeed.
func (a *API) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var admins int64
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return errAdminExists
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"role": models.RoleAdmin, "invite_redeemed": true}).Error
	})
	switch {
	case err == nil:
		a.audits.Record(audit.Entry{
			Action:    audit.ActionAdminBootstrap,
			UserID:    &user.ID,
			IP:        audit.ClientIP(r),
			UserAgent: r.UserAgent(),
			Success:   true,
		})
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "You are now an admin"})
	case errors.Is(err, errAdminExists):
		a.audits.Record(audit.Entry{
			Action:    audit.ActionAdminBootstrap,
			UserID:    &user.ID,
			IP:        audit.ClientIP(r),
			UserAgent: r.UserAgent(),
			Success:   false,
		})
		respondError(w, http.StatusForbidden, err)
	default:
		internalError(w, r, err)
	}
}

var errAdminExists = errors.New("Admin already exists")

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := a.db.WithContext(r.Context()).Order("created_at ASC").Find(&users).Error; err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		respondError(w, http.StatusBadRequest, errors.New("role must be user or admin"))
		return
	}
	if id == admin.ID && req.Role != models.RoleAdmin {
		respondError(w, http.StatusBadRequest, errors.New("cannot demote yourself"))
		return
	}

	var target models.User
	if err := a.db.WithContext(r.Context()).First(&target, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("user not found"))
			return
		}
		internalError(w, r, err)
		return
	}

	if err := a.db.WithContext(r.Context()).Model(&target).Update("role", req.Role).Error; err != nil {
		internalError(w, r, err)
		return
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionRoleChanged,
		UserID:       &admin.ID,
		ResourceType: "user",
		ResourceID:   target.ID.String(),
		Details:      map[string]any{"role": req.Role},
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"user": target})
}

func (a *API) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resourceType"),
		Limit:        intParam(q.Get("limit"), 100),
	}
	if raw := q.Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errBadID)
			return
		}
		filter.UserID = &id
	}

	entries, err := audit.Query(r.Context(), a.db, filter)
	if err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
