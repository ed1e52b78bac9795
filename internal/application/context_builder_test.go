package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-dossier/internal/domain"
)

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name     string
		evidence []domain.Evidence
		want     string
	}{
		{
			name: "full provenance",
			evidence: []domain.Evidence{{
				Text: "The witness stated...",
				Attributes: map[string]any{
					"bates_number":   "EFTA00001234",
					"dataset_number": "8",
					"page_count":     float64(3),
					"doj_url":        "https://example.gov/a.pdf",
				},
			}},
			want: "---\n**Document:** `EFTA00001234` - [View Original PDF](https://example.gov/a.pdf)\n" +
				"**Dataset:** 8 | **Pages:** 3\n**Relevant Extract:**\n> The witness stated...\n---",
		},
		{
			name: "fallbacks",
			evidence: []domain.Evidence{
				{Text: "first", Attributes: map[string]any{"document_id": "DOC-1"}},
				{Text: "second", Attributes: map[string]any{}},
			},
			want: "---\n**Document:** `DOC-1`\n**Dataset:** Unknown\n**Relevant Extract:**\n> first\n---" +
				"\n\n" +
				"---\n**Document:** `Source-2`\n**Dataset:** Unknown\n**Relevant Extract:**\n> second\n---",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildContext(tt.evidence))
		})
	}
}

func TestBuildContext_Stable(t *testing.T) {
	ev := []domain.Evidence{
		{Text: "a", Attributes: map[string]any{"dataset": "1", "pages": "4"}},
		{Text: "b", Attributes: map[string]any{"id": "x"}},
	}
	assert.Equal(t, BuildContext(ev), BuildContext(ev))
	assert.Less(t, strings.Index(BuildContext(ev), "> a"), strings.Index(BuildContext(ev), "> b"))
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Who signed the lease?", "CTX")

	assert.True(t, strings.HasPrefix(prompt, "Question: Who signed the lease?\n\nSource Documents:\nCTX\n\n"))
	assert.True(t, strings.HasSuffix(prompt,
		"Remember: key_findings and caveats must be arrays of strings, not markdown text."))
}

func TestSystemInstruction(t *testing.T) {
	for _, field := range []string{"summary_markdown", "key_findings", "caveats", "related_questions"} {
		assert.Contains(t, SystemInstruction, field)
	}
	assert.Contains(t, SystemInstruction, "3 to 5")
	assert.Contains(t, SystemInstruction, "OCR")
	assert.Contains(t, SystemInstruction, "redacted")
}
