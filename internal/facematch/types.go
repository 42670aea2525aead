// Package facematch finds the reference identity closest to a query embedding.
// It is shared between the CLI and the web handlers and has no web dependencies.
package facematch

// NoMatchSimilarity is the score reported when no reference was examined.
// Cosine similarity is bounded by [-1, 1], so no real match scores lower.
const NoMatchSimilarity = -1.0

// Match is the outcome of matching one query embedding.
type Match struct {
	Label      string  `json:"label"`
	Found      bool    `json:"matched"`
	Similarity float64 `json:"similarity"`
}

// noMatch is the result for an empty reference database.
func noMatch() Match {
	return Match{Similarity: NoMatchSimilarity}
}
