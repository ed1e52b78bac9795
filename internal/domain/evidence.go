// Package domain holds the request-scoped types that flow through the
// retrieval-to-synthesis pipeline. Nothing in this package performs I/O;
// every value is constructed fresh per query and discarded after the
// response is written.
package domain

// Candidate is a raw record returned by a vector index before normalization.
// Score is nil when the index omitted a relevance value, and Attributes is the
// opaque metadata map stored alongside the vector.
type Candidate struct {
	ID         string
	Score      *float64
	Attributes map[string]any
}

// Evidence is one normalized, text-bearing passage used as grounding for
// synthesis. The JSON field names match the wire contract consumed by the
// presentation layer.
type Evidence struct {
	// ID is unique within a response. It falls back to a positional
	// placeholder when the source record had none.
	ID string `json:"id"`

	// Text is the extracted passage. It is never empty in a working set.
	Text string `json:"text"`

	// Attributes carries open-ended provenance such as document and dataset
	// identifiers, dates, OCR quality and origin URLs.
	Attributes map[string]any `json:"metadata"`

	// Relevance is the similarity score reported by the index. It is not
	// clamped and defaults to 0 when the index omitted it.
	Relevance float64 `json:"score"`

	// PrevChunk and NextChunk hold neighbouring passage text when the index
	// stores it.
	PrevChunk string `json:"prevChunk,omitempty"`
	NextChunk string `json:"nextChunk,omitempty"`
}

// AsCandidate converts the evidence back into a raw candidate. Normalizing
// the result yields the same id and text.
func (e Evidence) AsCandidate() Candidate {
	score := e.Relevance
	return Candidate{
		ID:         e.ID,
		Score:      &score,
		Attributes: e.Attributes,
	}
}
