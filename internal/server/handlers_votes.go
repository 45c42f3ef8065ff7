package server

import (
	"errors"
	"net/http"

	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/gallery"
)

func (a *API) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	memeID, err := pathID(r, "memeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	counts, err := a.gallery.Counts(r.Context(), memeID, &user.ID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, counts)
	case errors.Is(err, gallery.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	default:
		internalError(w, r, err)
	}
}

func (a *API) handleCastVote(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	memeID, err := pathID(r, "memeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Vote int `json:"vote"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("vote is required"))
		return
	}

	counts, err := a.gallery.Cast(r.Context(), memeID, user.ID, req.Vote)
	switch {
	case err == nil:
		votesCastTotal.Inc()
		respondJSON(w, http.StatusOK, counts)
	case errors.Is(err, gallery.ErrBadVote):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, gallery.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, gallery.ErrNotPublic):
		respondError(w, http.StatusForbidden, err)
	default:
		internalError(w, r, err)
	}
}

func (a *API) handleRemoveVote(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	memeID, err := pathID(r, "memeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	counts, err := a.gallery.Remove(r.Context(), memeID, user.ID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, counts)
	case errors.Is(err, gallery.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	default:
		internalError(w, r, err)
	}
}

func (a *API) handleGallery(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	q := r.URL.Query()

	opts := gallery.ListOptions{
		Period: q.Get("period"),
		Sort:   q.Get("sort"),
		Page:   intParam(q.Get("page"), 1),
		Limit:  intParam(q.Get("limit"), 20),
	}

	page, err := a.gallery.List(r.Context(), user.ID, opts)
	if err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}
