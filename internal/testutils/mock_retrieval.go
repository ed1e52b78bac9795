package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

// MockEmbedder returns a fixed vector and counts calls.
type MockEmbedder struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	texts  []string
}

// NewMockEmbedder creates an embedder returning a vector of the given size.
func NewMockEmbedder(dims int) *MockEmbedder {
	v := make([]float32, dims)
	for i := range v {
		v[i] = 1 / float32(i+1)
	}
	return &MockEmbedder{Vector: v}
}

// Embed implements ports.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]float32(nil), m.Vector...), nil
}

// Model implements ports.Embedder.
func (m *MockEmbedder) Model() string { return "mock-embedding" }

// CallCount reports how many times Embed was invoked.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// SearchCall captures one Search invocation.
type SearchCall struct {
	TopK      int
	Namespace string
}

// MockVectorIndex returns canned candidates, truncated to topK.
type MockVectorIndex struct {
	mu         sync.Mutex
	Candidates []domain.Candidate
	Stat       domain.IndexStats
	Err        error
	searches   []SearchCall
}

// Search implements ports.VectorIndex.
func (m *MockVectorIndex) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, SearchCall{TopK: topK, Namespace: namespace})
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.Candidates
	if topK < len(out) {
		out = out[:topK]
	}
	return append([]domain.Candidate(nil), out...), nil
}

// Stats implements ports.VectorIndex.
func (m *MockVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	if m.Err != nil {
		return domain.IndexStats{}, m.Err
	}
	return m.Stat, nil
}

// Searches returns a copy of the recorded Search invocations.
func (m *MockVectorIndex) Searches() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SearchCall(nil), m.searches...)
}

// TextCandidate builds a candidate carrying text under the "text" key.
func TextCandidate(id, text string, score float64, extra map[string]any) domain.Candidate {
	attrs := map[string]any{"text": text}
	for k, v := range extra {
		attrs[k] = v
	}
	return domain.Candidate{ID: id, Score: &score, Attributes: attrs}
}

var (
	_ ports.Embedder    = (*MockEmbedder)(nil)
	_ ports.VectorIndex = (*MockVectorIndex)(nil)
)
