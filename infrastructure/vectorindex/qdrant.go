package vectorindex

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

// QdrantAPIKeyEnv is consulted when no API key is configured. Qdrant
// without authentication is valid, so the key is optional.
const QdrantAPIKeyEnv = "QDRANT_API_KEY"

// NamespaceField is the payload field that partitions a Qdrant collection.
const NamespaceField = "namespace"

// QdrantConfig configures a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	// Namespace is reported by Stats and scopes its count.
	Namespace  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Qdrant implements ports.VectorIndex against the Qdrant REST API. It
// assumes the collection exists; ingestion happens elsewhere.
type Qdrant struct {
	base      string
	namespace string
	rest      *restClient
	logger    *slog.Logger
}

var _ ports.VectorIndex = (*Qdrant)(nil)

// NewQdrant validates cfg.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, ports.MissingCredential("vector_index.qdrant.url")
	}
	if cfg.Collection == "" {
		return nil, ports.MissingCredential("vector_index.qdrant.collection")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(QdrantAPIKeyEnv))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Qdrant{
		base:      strings.TrimRight(cfg.URL, "/") + "/collections/" + url.PathEscape(cfg.Collection),
		namespace: cfg.Namespace,
		rest: &restClient{
			index:   cfg.Collection,
			headers: map[string]string{"api-key": cfg.APIKey},
			client:  client,
		},
		logger: cfg.Logger,
	}, nil
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

func namespaceFilter(namespace string) *qdrantFilter {
	if isDefaultNamespace(namespace) {
		return nil
	}
	cond := qdrantCondition{Key: NamespaceField}
	cond.Match.Value = namespace
	return &qdrantFilter{Must: []qdrantCondition{cond}}
}

type qdrantSearchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      json.RawMessage `json:"id"`
		Score   *float64        `json:"score"`
		Payload map[string]any  `json:"payload"`
	} `json:"result"`
}

// Search runs a nearest-neighbour query. A non-default namespace becomes a
// payload filter on NamespaceField.
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Candidate, error) {
	req := qdrantSearchRequest{
		Vector:      vector,
		Limit:       topK,
		WithPayload: true,
		Filter:      namespaceFilter(namespace),
	}

	var resp qdrantSearchResponse
	if err := q.rest.do(ctx, "Search", http.MethodPost, q.base+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		attrs := r.Payload
		if attrs == nil {
			attrs = map[string]any{}
		}
		candidates = append(candidates, domain.Candidate{
			ID:         pointID(r.ID),
			Score:      r.Score,
			Attributes: attrs,
		})
	}
	q.logger.Debug("qdrant search", "collection", q.rest.index, "namespace", namespace,
		"limit", topK, "results", len(candidates))
	return candidates, nil
}

// Stats counts the points in the collection, restricted to the configured
// namespace when it is not the default.
func (q *Qdrant) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats := domain.IndexStats{Namespace: q.namespace, IndexName: q.rest.index}

	if filter := namespaceFilter(q.namespace); filter != nil {
		var resp struct {
			Result struct {
				Count int `json:"count"`
			} `json:"result"`
		}
		body := map[string]any{"filter": filter, "exact": true}
		if err := q.rest.do(ctx, "Stats", http.MethodPost, q.base+"/points/count", body, &resp); err != nil {
			return domain.IndexStats{}, err
		}
		stats.TotalRecordCount = resp.Result.Count
		return stats, nil
	}

	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := q.rest.do(ctx, "Stats", http.MethodGet, q.base, nil, &resp); err != nil {
		return domain.IndexStats{}, err
	}
	stats.TotalRecordCount = resp.Result.PointsCount
	return stats, nil
}

// pointID renders Qdrant's integer or UUID point ids as strings.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
