package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
	"github.com/ahrav/go-dossier/internal/testutils"
)

func sampleEvidence() []domain.Evidence {
	return []domain.Evidence{
		{ID: "a", Text: "The memo is dated 2004.", Relevance: 0.9,
			Attributes: map[string]any{"bates_number": "EFTA-1", "dataset_number": "3"}},
	}
}

func TestSynthesizer_Synthesize(t *testing.T) {
	client := testutils.NewMockLLMClient("gpt-4o-mini")
	s := NewSynthesizer(client, SynthesisOptions{MaxTokens: 1024}, nil)

	got, err := s.Synthesize(context.Background(), "When was the memo written?", sampleEvidence())
	require.NoError(t, err)
	assert.Equal(t, "The documents describe the requested event.", got.SummaryMarkdown)
	assert.Len(t, got.RelatedQuestions, 3)

	require.Equal(t, 1, client.CallCount())
	call := client.Calls()[0]
	assert.Contains(t, call.Prompt, "Question: When was the memo written?")
	assert.Contains(t, call.Prompt, "`EFTA-1`")
	assert.Equal(t, SystemInstruction, call.Options["system"])
	assert.Equal(t, DefaultSynthesisTemperature, call.Options["temperature"])
	assert.Equal(t, "json_object", call.Options["response_format"])
	assert.Equal(t, 1024, call.Options["max_tokens"])
}

func TestSynthesizer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testutils.MockLLMClient)
		checkErr func(t *testing.T, err error)
	}{
		{
			name: "provider error is wrapped",
			setup: func(c *testutils.MockLLMClient) {
				c.SetError(ports.NewLLMError("gpt-4o-mini", "Complete", ports.ErrServiceUnavailable))
			},
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
				var llmErr *ports.LLMError
				assert.True(t, errors.As(err, &llmErr))
			},
		},
		{
			name: "empty completion",
			setup: func(c *testutils.MockLLMClient) {
				c.AddResponse(testutils.MockResponse{Response: ""})
			},
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrSynthesisFormat)
			},
		},
		{
			name: "unrepairable prose",
			setup: func(c *testutils.MockLLMClient) {
				c.AddResponse(testutils.MockResponse{Response: "Sorry, I cannot help with that."})
			},
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrSynthesisFormat)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewMockLLMClient("gpt-4o-mini")
			tt.setup(client)
			s := NewSynthesizer(client, SynthesisOptions{Temperature: 0.2}, nil)

			_, err := s.Synthesize(context.Background(), "q", sampleEvidence())
			require.Error(t, err)
			tt.checkErr(t, err)
			assert.Equal(t, 1, client.CallCount(), "exactly one attempt")
		})
	}
}
