package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

// IdentitiesHandler lists the identities of the reference database.
type IdentitiesHandler struct {
	db *database.ReferenceDB
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(db *database.ReferenceDB) *IdentitiesHandler {
	return &IdentitiesHandler{db: db}
}

// IdentityResponse describes one identity.
type IdentityResponse struct {
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
	References  int    `json:"references"`
}

// IdentitiesResponse is the JSON body returned by List.
type IdentitiesResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Dim        int                `json:"dim"`
	Count      int                `json:"count"`
}

// List handles GET /api/v1/identities. The optional q parameter filters by
// label, ignoring case, diacritics and separators.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := facematch.NormalizeLabel(r.URL.Query().Get("q"))

	result := []IdentityResponse{}
	for _, ident := range h.db.Identities() {
		if query != "" && !strings.Contains(facematch.NormalizeLabel(ident.Label), query) {
			continue
		}
		result = append(result, IdentityResponse{
			Label:       ident.Label,
			DisplayName: facematch.DisplayName(ident.Label),
			References:  len(ident.Embeddings),
		})
	}

	respondJSON(w, http.StatusOK, IdentitiesResponse{
		Identities: result,
		Dim:        h.db.Dim(),
		Count:      len(result),
	})
}
