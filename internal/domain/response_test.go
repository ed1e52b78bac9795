package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidence_String(t *testing.T) {
	assert.Equal(t, "High", ConfidenceHigh.String())
	assert.Equal(t, "Medium", ConfidenceMedium.String())
	assert.Equal(t, "Low", ConfidenceLow.String())
	assert.Equal(t, "Low", Confidence(42).String(), "unknown values render as Low")
}

func TestParseConfidence(t *testing.T) {
	for _, label := range []string{"High", "Medium", "Low"} {
		c, err := ParseConfidence(label)
		require.NoError(t, err)
		assert.Equal(t, label, c.String())
	}

	_, err := ParseConfidence("high")
	assert.Error(t, err, "labels are case sensitive on the wire")
}

func TestQueryResponse_WireShape(t *testing.T) {
	resp := QueryResponse{
		SynthesisResult: SynthesisResult{
			SummaryMarkdown:  "The documents mention a flight on **1 May**.",
			KeyFindings:      []string{"A manifest lists the flight."},
			Caveats:          []string{},
			RelatedQuestions: []string{"Who else was on the flight?"},
		},
		Sources: []Evidence{{
			ID:         "EFTA-0001",
			Text:       "passenger manifest",
			Attributes: map[string]any{"ocr_quality": "good"},
			Relevance:  0.81,
		}},
		Confidence: ConfidenceMedium,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Medium", decoded["confidence"])
	assert.Equal(t, "The documents mention a flight on **1 May**.", decoded["summary_markdown"])
	assert.Contains(t, decoded, "key_findings")
	assert.Contains(t, decoded, "caveats")
	assert.Contains(t, decoded, "related_questions")

	sources, ok := decoded["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 1)
	source := sources[0].(map[string]any)
	assert.Equal(t, "EFTA-0001", source["id"])
	assert.Equal(t, 0.81, source["score"])
	assert.Contains(t, source, "metadata")
	assert.NotContains(t, source, "prevChunk", "empty neighbours are omitted")

	var roundTrip QueryResponse
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.Equal(t, ConfidenceMedium, roundTrip.Confidence)
}

func TestEvidence_AsCandidate(t *testing.T) {
	ev := Evidence{ID: "doc-1", Text: "x", Attributes: map[string]any{"text": "x"}, Relevance: 0.5}
	c := ev.AsCandidate()

	assert.Equal(t, "doc-1", c.ID)
	require.NotNil(t, c.Score)
	assert.Equal(t, 0.5, *c.Score)
	assert.Equal(t, ev.Attributes, c.Attributes)
}
