package vectorindex

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

// Record is one stored vector of the in-memory index.
type Record struct {
	ID        string         `json:"id"`
	Namespace string         `json:"namespace,omitempty"`
	Values    []float32      `json:"values"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MemoryFile is the on-disk layout read by LoadMemory.
type MemoryFile struct {
	Name    string   `json:"name"`
	Records []Record `json:"records"`
}

// Memory is a read-only, brute-force cosine similarity index. It is safe
// for concurrent use once constructed.
type Memory struct {
	name      string
	namespace string
	records   []Record
}

var _ ports.VectorIndex = (*Memory)(nil)

// NewMemory builds an index over records. Namespace is what Stats reports
// and counts.
func NewMemory(name, namespace string, records []Record) *Memory {
	if name == "" {
		name = "memory"
	}
	return &Memory{name: name, namespace: namespace, records: slices.Clone(records)}
}

// LoadMemory reads a MemoryFile from path.
func LoadMemory(path, namespace string) (*Memory, error) {
	if path == "" {
		return nil, ports.MissingCredential("vector_index.memory.path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ports.NewIndexError(path, "Load", 0, err)
	}
	var file MemoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, ports.NewIndexError(path, "Load", 0,
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}
	for i, r := range file.Records {
		if r.ID == "" {
			return nil, ports.NewIndexError(path, "Load", 0,
				fmt.Errorf("%w: record %d has no id", ports.ErrInvalidResponse, i))
		}
	}
	name := file.Name
	if name == "" {
		name = path
	}
	return NewMemory(name, namespace, file.Records), nil
}

// Search scores every record in namespace by cosine similarity. Ties keep
// file order. Records whose dimension differs from vector are skipped.
func (m *Memory) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.Candidate{}, nil
	}

	type scored struct {
		rec   *Record
		score float64
	}
	hits := make([]scored, 0, len(m.records))
	for i := range m.records {
		r := &m.records[i]
		if !sameNamespace(r.Namespace, namespace) || len(r.Values) != len(vector) {
			continue
		}
		hits = append(hits, scored{rec: r, score: cosine(vector, r.Values)})
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return cmp.Compare(b.score, a.score) })
	hits = hits[:min(topK, len(hits))]

	out := make([]domain.Candidate, 0, len(hits))
	for _, h := range hits {
		attrs := make(map[string]any, len(h.rec.Metadata))
		for k, v := range h.rec.Metadata {
			attrs[k] = v
		}
		out = append(out, domain.Candidate{ID: h.rec.ID, Score: scorePtr(h.score), Attributes: attrs})
	}
	return out, nil
}

// Stats counts the records in the configured namespace.
func (m *Memory) Stats(ctx context.Context) (domain.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexStats{}, err
	}
	n := 0
	for _, r := range m.records {
		if sameNamespace(r.Namespace, m.namespace) {
			n++
		}
	}
	return domain.IndexStats{TotalRecordCount: n, Namespace: m.namespace, IndexName: m.name}, nil
}

func sameNamespace(a, b string) bool {
	if isDefaultNamespace(a) {
		return isDefaultNamespace(b)
	}
	return a == b
}

// cosine returns 0 when either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
