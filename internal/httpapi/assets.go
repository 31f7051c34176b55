package httpapi

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/egress-lab/evacsim/pkg/assets"
	"github.com/egress-lab/evacsim/pkg/security"
	"github.com/go-chi/chi/v5"
)

// multipart bodies carry headers beyond the file itself
const uploadOverhead = 1 << 20

// ListImages returns the usable filenames of both collections
func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	crowd, err := a.assets.List(assets.Crowd)
	if err != nil {
		slog.Error("list_images_failed", "category", assets.Crowd, "error", err)
		a.error(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	facility, err := a.assets.List(assets.Facility)
	if err != nil {
		slog.Error("list_images_failed", "category", assets.Facility, "error", err)
		a.error(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	a.json(w, http.StatusOK, map[string][]string{
		"crowd":    crowd,
		"facility": facility,
	})
}

// ServeImage streams one asset with long-lived cache headers
func (a *App) ServeImage(w http.ResponseWriter, r *http.Request) {
	c, err := assets.ParseCategory(chi.URLParam(r, "type"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Invalid type", "")
		return
	}
	name := chi.URLParam(r, "filename")

	f, info, err := a.assets.Open(c, name)
	switch {
	case errors.Is(err, security.ErrInvalidFilename):
		a.error(w, http.StatusBadRequest, "Invalid filename", "")
		return
	case errors.Is(err, fs.ErrNotExist):
		a.error(w, http.StatusNotFound, "Image not found", "")
		return
	case err != nil:
		slog.Error("serve_image_failed", "category", c, "filename", name, "error", err)
		a.error(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", assets.MediaType(name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("serve_image_interrupted", "category", c, "filename", name, "error", err)
	}
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	FileName string `json:"fileName"`
	Type     string `json:"type"`
}

// Upload stores a multipart file in the collection named by the type field
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if limit := a.assets.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+uploadOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusBadRequest, "File too large", "")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	c, err := assets.ParseCategory(r.FormValue("type"))
	if err != nil {
		a.error(w, http.StatusBadRequest, `Invalid type. Must be "crowd" or "facility"`, "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "missing file", err.Error())
		return
	}
	defer file.Close()

	stored, err := a.assets.Save(c, header.Filename, file)
	switch {
	case errors.Is(err, security.ErrInvalidFilename):
		a.error(w, http.StatusBadRequest, "Invalid filename", "")
		return
	case errors.Is(err, security.ErrFileTooLarge):
		a.error(w, http.StatusBadRequest, "File too large", "")
		return
	case err != nil:
		slog.Error("upload_failed", "category", c, "filename", header.Filename, "error", err)
		a.error(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	a.json(w, http.StatusOK, uploadResponse{Success: true, FileName: stored, Type: string(c)})
}
