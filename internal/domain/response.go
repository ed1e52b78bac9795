package domain

import (
	"encoding/json"
	"fmt"
)

// Confidence is a three-level label summarizing retrieval strength.
// It describes the evidence, not the model's certainty.
type Confidence int

const (
	// ConfidenceLow is the zero value so an unscored response is never
	// reported as stronger than it is.
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the wire label for the confidence level.
func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "High"
	case ConfidenceMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// ParseConfidence converts a wire label into a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "High":
		return ConfidenceHigh, nil
	case "Medium":
		return ConfidenceMedium, nil
	case "Low":
		return ConfidenceLow, nil
	default:
		return ConfidenceLow, fmt.Errorf("unknown confidence level %q", s)
	}
}

// MarshalJSON encodes the confidence as its wire label.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a wire label.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseConfidence(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SynthesisResult is the validated output of the synthesis model.
// All four fields are always present; the slices are never nil once a
// result has been accepted.
type SynthesisResult struct {
	SummaryMarkdown  string   `json:"summary_markdown"`
	KeyFindings      []string `json:"key_findings"`
	Caveats          []string `json:"caveats"`
	RelatedQuestions []string `json:"related_questions"`
}

// QueryRequest is the inbound query contract.
type QueryRequest struct {
	Question string `json:"question" validate:"required,max=1000"`
}

// QueryResponse is the final answer returned to the caller. Sources are the
// normalized evidence set in retrieval order.
type QueryResponse struct {
	SynthesisResult
	Sources    []Evidence `json:"sources"`
	Confidence Confidence `json:"confidence"`
}

// IndexStats describes the backing vector index.
type IndexStats struct {
	TotalRecordCount int    `json:"totalRecordCount"`
	Namespace        string `json:"namespace,omitempty"`
	IndexName        string `json:"indexName"`
}

// Admission is the rate limiter's verdict for one request.
// RetryAfterSeconds is only meaningful when Allowed is false.
type Admission struct {
	Allowed           bool
	RetryAfterSeconds int
}
