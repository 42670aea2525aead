package handlers

import (
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
)

// MatchHandler exposes matching as a JSON API. Uploads are not stored.
type MatchHandler struct {
	embedder fingerprint.Embedder
	matcher  facematch.Matcher
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(embedder fingerprint.Embedder, matcher facematch.Matcher) *MatchHandler {
	return &MatchHandler{
		embedder: embedder,
		matcher:  matcher,
	}
}

// MatchResponse is the JSON body returned by Match.
type MatchResponse struct {
	Matched     bool    `json:"matched"`
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	Similarity  float64 `json:"similarity"`
}

// Match handles POST /api/v1/match.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	file, header, err := uploadedFile(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	match, err := matchImage(r, h.embedder, h.matcher, data)
	if err != nil {
		log.WithError(err).WithField("file", sanitizeForLog(header.Filename)).Error("matching failed")
		if errors.Is(err, fingerprint.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face detected")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to match image")
		return
	}

	respondJSON(w, http.StatusOK, MatchResponse{
		Matched:     match.Found,
		Label:       match.Label,
		DisplayName: facematch.DisplayName(match.Label),
		Similarity:  match.Similarity,
	})
}
