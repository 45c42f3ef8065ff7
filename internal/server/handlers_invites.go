package server

import (
	"errors"
	"net/http"

	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/invites"
)

func (a *API) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFrom(r.Context())

	invite, err := a.invites.Create(r.Context(), admin.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        invite.ID,
		"code":      invite.Code,
		"createdAt": invite.CreatedAt,
	})
}

func (a *API) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("code is required"))
		return
	}

	err := a.invites.Redeem(r.Context(), user, req.Code)
	switch {
	case err == nil:
		invitesRedeemedTotal.Inc()
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Invite redeemed"})
	case errors.Is(err, invites.ErrAlreadyRedeemed):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, invites.ErrInvalidCode):
		respondError(w, http.StatusBadRequest, err)
	default:
		internalError(w, r, err)
	}
}

func (a *API) handleDeleteInvite(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	err = a.invites.Delete(r.Context(), admin.ID, id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, invites.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, invites.ErrAlreadyUsed):
		respondError(w, http.StatusBadRequest, err)
	default:
		internalError(w, r, err)
	}
}

func (a *API) handleListInvites(w http.ResponseWriter, r *http.Request) {
	views, err := a.invites.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invites": views})
}
