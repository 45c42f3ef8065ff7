package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petejm/possumbly/internal/audit"
	"github.com/petejm/possumbly/internal/auth"
	"github.com/petejm/possumbly/internal/imaging"
	"github.com/petejm/possumbly/internal/models"
)

const templatesSubdir = "templates"

func (a *API) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

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
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		respondError(w, http.StatusBadRequest, fmt.Errorf("image dimensions exceed %dx%d", imaging.MaxDimension, imaging.MaxDimension))
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, errors.New("invalid image"))
		return
	}

	name := sanitizeName(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	// The stored filename is server-generated; client input never touches
	// the filesystem path.
	fileName := uuid.NewString() + "." + info.Format
	dir := filepath.Join(a.cfg.DataDir, templatesSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		internalError(w, r, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		internalError(w, r, err)
		return
	}

	template := models.Template{
		Name:     name,
		FileName: fileName,
		Width:    info.Width,
		Height:   info.Height,
		OwnerID:  user.ID,
	}
	if err := a.db.WithContext(r.Context()).Create(&template).Error; err != nil {
		_ = os.Remove(filepath.Join(dir, fileName))
		internalError(w, r, err)
		return
	}

	templateUploadsTotal.Inc()
	a.audits.Record(audit.Entry{
		Action:       audit.ActionTemplateCreated,
		UserID:       &user.ID,
		ResourceType: "template",
		ResourceID:   template.ID.String(),
		Details:      map[string]any{"width": info.Width, "height": info.Height, "format": info.Format},
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"template": template})
}

func (a *API) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	var templates []models.Template
	if err := a.db.WithContext(r.Context()).Order("created_at DESC").Find(&templates).Error; err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (a *API) handleTemplateFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var template models.Template
	if err := a.db.WithContext(r.Context()).First(&template, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("template not found"))
			return
		}
		internalError(w, r, err)
		return
	}

	http.ServeFile(w, r, filepath.Join(a.cfg.DataDir, templatesSubdir, template.FileName))
}

func (a *API) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var template models.Template
	if err := a.db.WithContext(r.Context()).First(&template, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, errors.New("template not found"))
			return
		}
		internalError(w, r, err)
		return
	}

	if template.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, errors.New("Forbidden"))
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&template).Error; err != nil {
		internalError(w, r, err)
		return
	}
	_ = os.Remove(filepath.Join(a.cfg.DataDir, templatesSubdir, template.FileName))

	a.audits.Record(audit.Entry{
		Action:       audit.ActionTemplateDeleted,
		UserID:       &user.ID,
		ResourceType: "template",
		ResourceID:   template.ID.String(),
		IP:           audit.ClientIP(r),
		Success:      true,
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
