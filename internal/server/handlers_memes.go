package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/models"
)

const (
	rendersSubdir = "renders"
	maxLayoutLen  = 64 << 10
)

func validLayout(raw json.RawMessage) bool {
	if len(raw) == 0 || len(raw) > maxLayoutLen {
		return false
	}
	return json.Valid(raw)
}

func (a *API) handleCreateMeme(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	var req struct {
		TemplateID string          `json:"templateId"`
		Layout     json.RawMessage `json:"layout"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		respondError(w, http.StatusBadRequest, errBadID)
		return
	}
	if !validLayout(req.Layout) {
		respondError(w, http.StatusBadRequest, errors.New("layout must be valid JSON under 64KB"))
		return
	}

	var template models.Template
	if err := a.db.WithContext(r.Context()).First(&template, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("template not found"))
			return
		}
		internalError(w, r, err)
		return
	}

	meme := models.Meme{
		TemplateID: template.ID,
		OwnerID:    user.ID,
		Layout:     []byte(req.Layout),
	}
	if err := a.db.WithContext(r.Context()).Create(&meme).Error; err != nil {
		internalError(w, r, err)
		return
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionMemeCreated,
		UserID:       &user.ID,
		ResourceType: "meme",
		ResourceID:   meme.ID.String(),
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"meme": meme})
}

func (a *API) handleListMemes(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	q := a.db.WithContext(r.Context()).Model(&models.Meme{}).Order("created_at DESC")
	if !(user.IsAdmin() && r.URL.Query().Get("all") == "1") {
		q = q.Where("owner_id = ?", user.ID)
	}

	var memes []models.Meme
	if err := q.Find(&memes).Error; err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memes": memes})
}

// loadMemeForWrite fetches a meme and enforces the ownership policy:
// creator or admin, else 403.
func (a *API) loadMemeForWrite(w http.ResponseWriter, r *http.Request) (*models.Meme, *models.User, bool) {
	user := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return nil, nil, false
	}

	var meme models.Meme
	if err := a.db.WithContext(r.Context()).First(&meme, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("meme not found"))
			return nil, nil, false
		}
		internalError(w, r, err)
		return nil, nil, false
	}

	if meme.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, errors.New("Forbidden"))
		return nil, nil, false
	}
	return &meme, user, true
}

func (a *API) handleGetMeme(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var meme models.Meme
	if err := a.db.WithContext(r.Context()).First(&meme, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("meme not found"))
			return
		}
		internalError(w, r, err)
		return
	}

	// Private memes are visible only to their creator and admins.
	if !meme.Public && meme.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusNotFound, errors.New("meme not found"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"meme": meme})
}

func (a *API) handleUpdateMeme(w http.ResponseWriter, r *http.Request) {
	meme, user, ok := a.loadMemeForWrite(w, r)
	if !ok {
		return
	}

	var req struct {
		Layout json.RawMessage `json:"layout"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !validLayout(req.Layout) {
		respondError(w, http.StatusBadRequest, errors.New("layout must be valid JSON under 64KB"))
		return
	}

	if err := a.db.WithContext(r.Context()).Model(meme).Update("layout", []byte(req.Layout)).Error; err != nil {
		internalError(w, r, err)
		return
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionMemeUpdated,
		UserID:       &user.ID,
		ResourceType: "meme",
		ResourceID:   meme.ID.String(),
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"meme": meme})
}

func (a *API) handleMemeRender(w http.ResponseWriter, r *http.Request) {
	meme, user, ok := a.loadMemeForWrite(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.cfg.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("upload too large or malformed"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("image file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("upload too large or malformed"))
		return
	}

	info, err := a.inspector.Inspect(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid image"))
		return
	}

	fileName := meme.ID.String() + "." + info.Format
	dir := filepath.Join(a.cfg.DataDir, rendersSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		internalError(w, r, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		internalError(w, r, err)
		return
	}

	if err := a.db.WithContext(r.Context()).Model(meme).Update("output_file", fileName).Error; err != nil {
		internalError(w, r, err)
		return
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionMemeUpdated,
		UserID:       &user.ID,
		ResourceType: "meme",
		ResourceID:   meme.ID.String(),
		Details:      map[string]any{"rendered": true},
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"meme": meme})
}

func (a *API) handleMemeFile(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var meme models.Meme
	if err := a.db.WithContext(r.Context()).First(&meme, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("meme not found"))
			return
		}
		internalError(w, r, err)
		return
	}
	if !meme.Public && meme.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusNotFound, errors.New("meme not found"))
		return
	}
	if meme.OutputFile == "" {
		respondError(w, http.StatusNotFound, errors.New("meme has no rendered output"))
		return
	}

	http.ServeFile(w, r, filepath.Join(a.cfg.DataDir, rendersSubdir, meme.OutputFile))
}

func (a *API) handleMemeVisibility(w http.ResponseWriter, r *http.Request) {
	meme, user, ok := a.loadMemeForWrite(w, r)
	if !ok {
		return
	}

	var req struct {
		Public bool `json:"public"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.db.WithContext(r.Context()).Model(meme).Update("public", req.Public).Error; err != nil {
		internalError(w, r, err)
		return
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionVisibilityChanged,
		UserID:       &user.ID,
		ResourceType: "meme",
		ResourceID:   meme.ID.String(),
		Details:      map[string]any{"public": req.Public},
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"meme": meme})
}

func (a *API) handleDeleteMeme(w http.ResponseWriter, r *http.Request) {
	meme, user, ok := a.loadMemeForWrite(w, r)
	if !ok {
		return
	}

	// Votes cascade with their meme inside one transaction.
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meme_id = ?", meme.ID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(meme).Error
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	if meme.OutputFile != "" {
		_ = os.Remove(filepath.Join(a.cfg.DataDir, rendersSubdir, meme.OutputFile))
	}

	a.audits.Record(audit.Entry{
		Action:       audit.ActionMemeDeleted,
		UserID:       &user.ID,
		ResourceType: "meme",
		ResourceID:   meme.ID.String(),
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
