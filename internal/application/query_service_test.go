package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
	"github.com/ahrav/go-dossier/internal/testutils"
)

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	stages   []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]float64{}}
}

func (r *recordingMetrics) RecordLatency(op string, _ time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, labels["stage"])
}

func (r *recordingMetrics) RecordCounter(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric+"/"+labels["outcome"]] += v
}

func (r *recordingMetrics) RecordGauge(string, float64, map[string]string)     {}
func (r *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}

type pipeline struct {
	embedder *testutils.MockEmbedder
	index    *testutils.MockVectorIndex
	llm      *testutils.MockLLMClient
	metrics  *recordingMetrics
	svc      *QueryService
}

func newPipeline(t *testing.T, candidates ...domain.Candidate) *pipeline {
	t.Helper()
	p := &pipeline{
		embedder: testutils.NewMockEmbedder(8),
		index:    &testutils.MockVectorIndex{Candidates: candidates},
		llm:      testutils.NewMockLLMClient("gpt-4o-mini"),
		metrics:  newRecordingMetrics(),
	}
	svc, err := NewQueryService(QueryServiceConfig{
		Embedder:    p.embedder,
		Index:       p.index,
		Synthesizer: NewSynthesizer(p.llm, SynthesisOptions{}, nil),
		TopK:        10,
		Namespace:   "default",
		Metrics:     p.metrics,
	})
	require.NoError(t, err)
	p.svc = svc
	return p
}

func TestQueryService_Answered(t *testing.T) {
	p := newPipeline(t,
		testutils.TextCandidate("a", "Flight log entry", 0.92, map[string]any{"ocr_quality": "high"}),
		domain.Candidate{ID: "b", Attributes: map[string]any{"title": "scan without text"}},
		testutils.TextCandidate("c", "Deposition extract", 0.88, map[string]any{"ocr_quality": "good"}),
	)

	resp, err := p.svc.Ask(context.Background(), "Who is on the flight log?")
	require.NoError(t, err)

	assert.Equal(t, "The documents describe the requested event.", resp.SummaryMarkdown)
	require.Len(t, resp.Sources, 2, "sources are the normalized set")
	assert.Equal(t, "a", resp.Sources[0].ID)
	assert.Equal(t, "c", resp.Sources[1].ID)
	// 2 sources (5) + avg 0.90 (35) + top 0.92 (25) + all marked (10) = 75.
	assert.Equal(t, domain.ConfidenceHigh, resp.Confidence)

	assert.Equal(t, 1, p.embedder.CallCount())
	assert.Equal(t, []testutils.SearchCall{{TopK: 10, Namespace: "default"}}, p.index.Searches())
	assert.Equal(t, 1, p.llm.CallCount())
	assert.Equal(t, 1.0, p.metrics.counters[ports.MetricQueryTotal+"/"+OutcomeAnswered])
	assert.Equal(t, []string{stageEmbed, stageSearch, stageNormalize, stageSynthesize}, p.metrics.stages)
}

func TestQueryService_EarlyExits(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.Candidate
		want       domain.QueryResponse
		outcome    string
	}{
		{
			name:    "no candidates",
			want:    EmptyResultResponse(),
			outcome: OutcomeEmpty,
		},
		{
			name: "no extractable text",
			candidates: []domain.Candidate{
				{ID: "x", Attributes: map[string]any{"text": "   "}},
				{ID: "y", Attributes: map[string]any{"bates_number": "EFTA-2"}},
			},
			want:    NoTextResponse(),
			outcome: OutcomeNoText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.candidates...)

			resp, err := p.svc.Ask(context.Background(), "anything?")
			require.NoError(t, err)

			assert.Equal(t, tt.want, resp)
			assert.Equal(t, domain.ConfidenceLow, resp.Confidence)
			assert.Empty(t, resp.Sources)
			assert.NotEmpty(t, resp.Caveats)
			assert.Len(t, resp.RelatedQuestions, 3)

			assert.Equal(t, 1, p.embedder.CallCount())
			assert.Len(t, p.index.Searches(), 1)
			assert.Zero(t, p.llm.CallCount(), "synthesis must not be called")
			assert.Equal(t, 1.0, p.metrics.counters[ports.MetricQueryTotal+"/"+tt.outcome])
		})
	}
}

func TestQueryService_CannedResponsesDiffer(t *testing.T) {
	assert.NotEqual(t, EmptyResultResponse().SummaryMarkdown, NoTextResponse().SummaryMarkdown)
}

func TestQueryService_Validation(t *testing.T) {
	tests := []struct {
		name     string
		question string
		sentinel error
		message  string
	}{
		{name: "empty", question: "", sentinel: domain.ErrEmptyQuestion, message: "Question cannot be empty"},
		{name: "blank", question: " \t\n", sentinel: domain.ErrEmptyQuestion, message: "Question cannot be empty"},
		{name: "too long", question: strings.Repeat("q", 1001), sentinel: domain.ErrQuestionTooLong, message: "Question too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, testutils.TextCandidate("a", "text", 0.9, nil))

			_, err := p.svc.Ask(context.Background(), tt.question)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, []string{tt.message}, verr.Errors)

			assert.Zero(t, p.embedder.CallCount(), "no pipeline execution")
			assert.Equal(t, 1.0, p.metrics.counters[ports.MetricQueryTotal+"/"+OutcomeInvalid])
		})
	}

	t.Run("exactly 1000 runes is accepted", func(t *testing.T) {
		p := newPipeline(t)
		assert.NoError(t, p.svc.ValidateQuestion(strings.Repeat("é", 1000)))
	})
}

func TestQueryService_ProviderFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("embedding failure", func(t *testing.T) {
		p := newPipeline(t, testutils.TextCandidate("a", "text", 0.9, nil))
		p.embedder.Err = ports.NewLLMError("text-embedding-3-large", "Embed", boom)

		_, err := p.svc.Ask(context.Background(), "q?")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, p.index.Searches())
		assert.Zero(t, p.llm.CallCount())
	})

	t.Run("search failure", func(t *testing.T) {
		p := newPipeline(t)
		p.index.Err = ports.NewIndexError("efta", "Search", 503, ports.ErrServiceUnavailable)

		_, err := p.svc.Ask(context.Background(), "q?")
		assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
		assert.Zero(t, p.llm.CallCount())
	})

	t.Run("synthesis format failure returns no partial response", func(t *testing.T) {
		p := newPipeline(t, testutils.TextCandidate("a", "text", 0.9, nil))
		p.llm.AddResponse(testutils.MockResponse{Response: "not json and no headings"})

		resp, err := p.svc.Ask(context.Background(), "q?")
		assert.ErrorIs(t, err, domain.ErrSynthesisFormat)
		assert.Equal(t, domain.QueryResponse{}, resp)
		assert.Equal(t, 1, p.llm.CallCount(), "no retry")
		assert.Equal(t, 1.0, p.metrics.counters[ports.MetricQueryTotal+"/"+OutcomeFailed])
	})
}

func TestQueryService_Stats(t *testing.T) {
	p := newPipeline(t)
	p.index.Stat = domain.IndexStats{TotalRecordCount: 4200, Namespace: "default", IndexName: "efta-docs"}

	stats, err := p.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.index.Stat, stats)

	p.index.Err = errors.New("down")
	_, err = p.svc.Stats(context.Background())
	assert.Error(t, err)
}

func TestNewQueryService_RequiresCollaborators(t *testing.T) {
	_, err := NewQueryService(QueryServiceConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
