package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
	"github.com/kozaktomas/face-matcher/internal/web/middleware"
)

// errNoFilename marks a file part submitted without a usable filename.
var errNoFilename = errors.New("no filename")

// IndexHandler serves the upload form and renders match results.
type IndexHandler struct {
	uploadDir string
	flashes   *middleware.FlashStore
	embedder  fingerprint.Embedder
	matcher   facematch.Matcher
	templates *template.Template
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(uploadDir string, flashes *middleware.FlashStore, embedder fingerprint.Embedder,
	matcher facematch.Matcher, templates *template.Template) *IndexHandler {
	return &IndexHandler{
		uploadDir: uploadDir,
		flashes:   flashes,
		embedder:  embedder,
		matcher:   matcher,
		templates: templates,
	}
}

// indexPage is the data rendered by index.html.
type indexPage struct {
	Flashes       []string
	UploadedImage string
	Match         facematch.Match
	DisplayName   string
}

// Form renders the upload form with any pending notices.
func (h *IndexHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, indexPage{Flashes: h.flashes.Pop(r)})
}

// Upload saves the posted image, matches it against the reference database
// and renders the result. Requests without a usable file are redirected back
// with a notice and nothing is written.
func (h *IndexHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	file, header, err := uploadedFile(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, errNoFilename):
			h.redirectWithFlash(w, r, constants.FlashNoSelectedFile)
		default:
			h.redirectWithFlash(w, r, constants.FlashNoFilePart)
		}
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	data, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Error("failed to read upload")
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	if err := saveUpload(h.uploadDir, name, data); err != nil {
		log.WithError(err).WithField("file", sanitizeForLog(name)).Error("failed to save upload")
		http.Error(w, "failed to save upload", http.StatusInternalServerError)
		return
	}

	match, err := matchImage(r, h.embedder, h.matcher, data)
	if err != nil {
		log.WithError(err).WithField("file", sanitizeForLog(name)).Error("matching failed")
		http.Error(w, "failed to match image", http.StatusInternalServerError)
		return
	}

	log.WithFields(log.Fields{
		"file":       sanitizeForLog(name),
		"label":      match.Label,
		"similarity": match.Similarity,
	}).Info("matched upload")

	h.render(w, http.StatusOK, indexPage{
		Flashes:       h.flashes.Pop(r),
		UploadedImage: constants.UploadURLPrefix + url.PathEscape(name),
		Match:         match,
		DisplayName:   facematch.DisplayName(match.Label),
	})
}

func (h *IndexHandler) redirectWithFlash(w http.ResponseWriter, r *http.Request, message string) {
	h.flashes.Add(w, r, message)
	http.Redirect(w, r, r.URL.String(), http.StatusFound)
}

func (h *IndexHandler) render(w http.ResponseWriter, status int, page indexPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "index.html", page); err != nil {
		log.WithError(err).Error("failed to render index page")
	}
}

// uploadedFile returns the file part of the upload form. Browsers submit a
// part with an empty filename when no file was chosen; multipart stores that
// as a plain value, which is reported as errNoFilename.
func uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, nil, err
	}

	file, header, err := r.FormFile(constants.UploadFormField)
	if errors.Is(err, http.ErrMissingFile) {
		if _, ok := r.MultipartForm.Value[constants.UploadFormField]; ok {
			return nil, nil, errNoFilename
		}
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	switch filepath.Base(header.Filename) {
	case "", ".", "..", string(filepath.Separator):
		file.Close()
		return nil, nil, errNoFilename
	}
	return file, header, nil
}

// saveUpload writes data to dir/name, creating dir when needed.
func saveUpload(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // filename sanitized via filepath.Base
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// matchImage embeds data and finds the closest reference identity.
func matchImage(r *http.Request, embedder fingerprint.Embedder, matcher facematch.Matcher, data []byte) (facematch.Match, error) {
	embedding, err := embedder.Embed(r.Context(), data)
	if err != nil {
		return facematch.Match{}, fmt.Errorf("computing embedding: %w", err)
	}
	match, err := matcher.FindMatch(embedding)
	if err != nil {
		return facematch.Match{}, fmt.Errorf("finding match: %w", err)
	}
	return match, nil
}
