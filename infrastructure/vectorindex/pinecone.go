package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/ports"
)

const (
	// DefaultPineconeControlPlane resolves index hosts from index names.
	DefaultPineconeControlPlane = "https://api.pinecone.io"
	// DefaultPineconeAPIVersion is sent as X-Pinecone-API-Version.
	DefaultPineconeAPIVersion = "2025-04"
	// PineconeAPIKeyEnv is consulted when no API key is configured.
	PineconeAPIKeyEnv = "PINECONE_API_KEY"
)

// PineconeConfig configures a Pinecone serverless index.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	// Host is the data plane host. When empty it is looked up once from
	// IndexName through the control plane.
	Host         string
	APIVersion   string
	ControlPlane string
	// Namespace is reported by Stats. Search takes its namespace per call.
	Namespace  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Pinecone implements ports.VectorIndex against the Pinecone REST API.
type Pinecone struct {
	cfg    PineconeConfig
	rest   *restClient
	logger *slog.Logger

	hostMu sync.RWMutex
	host   string
	lookup singleflight.Group
}

var _ ports.VectorIndex = (*Pinecone)(nil)

// NewPinecone validates cfg. The API key falls back to PINECONE_API_KEY;
// when neither is set a ports.ConfigError is returned.
func NewPinecone(cfg PineconeConfig) (*Pinecone, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(PineconeAPIKeyEnv))
	}
	if cfg.APIKey == "" {
		return nil, ports.MissingCredential(PineconeAPIKeyEnv)
	}
	if cfg.IndexName == "" && cfg.Host == "" {
		return nil, ports.MissingCredential("PINECONE_INDEX_NAME")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultPineconeAPIVersion
	}
	if cfg.ControlPlane == "" {
		cfg.ControlPlane = DefaultPineconeControlPlane
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	name := cfg.IndexName
	if name == "" {
		name = cfg.Host
	}

	return &Pinecone{
		cfg: cfg,
		rest: &restClient{
			index: name,
			headers: map[string]string{
				"Api-Key":                cfg.APIKey,
				"X-Pinecone-API-Version": cfg.APIVersion,
			},
			client: client,
		},
		logger: cfg.Logger,
		host:   normalizeHost(cfg.Host),
	}, nil
}

type pineconeQuery struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    *float64       `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// Search queries the index. The "default" namespace maps to Pinecone's
// unnamed namespace.
func (p *Pinecone) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Candidate, error) {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return nil, err
	}

	req := pineconeQuery{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	if !isDefaultNamespace(namespace) {
		req.Namespace = namespace
	}

	var resp pineconeQueryResponse
	if err := p.rest.do(ctx, "Search", http.MethodPost, host+"/query", req, &resp); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		attrs := m.Metadata
		if attrs == nil {
			attrs = map[string]any{}
		}
		candidates = append(candidates, domain.Candidate{ID: m.ID, Score: m.Score, Attributes: attrs})
	}
	p.logger.Debug("pinecone query", "index", p.rest.index, "namespace", req.Namespace,
		"top_k", topK, "matches", len(candidates))
	return candidates, nil
}

// Stats reports the total vector count of the whole index.
func (p *Pinecone) Stats(ctx context.Context) (domain.IndexStats, error) {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}

	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Dimension        int `json:"dimension"`
	}
	if err := p.rest.do(ctx, "Stats", http.MethodPost, host+"/describe_index_stats", struct{}{}, &resp); err != nil {
		return domain.IndexStats{}, err
	}

	return domain.IndexStats{
		TotalRecordCount: resp.TotalVectorCount,
		Namespace:        p.cfg.Namespace,
		IndexName:        p.rest.index,
	}, nil
}

// resolveHost returns the data plane host, describing the index at most
// once even under concurrent first calls.
func (p *Pinecone) resolveHost(ctx context.Context) (string, error) {
	p.hostMu.RLock()
	host := p.host
	p.hostMu.RUnlock()
	if host != "" {
		return host, nil
	}

	v, err, _ := p.lookup.Do(p.cfg.IndexName, func() (any, error) {
		p.hostMu.RLock()
		cached := p.host
		p.hostMu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		var resp struct {
			Host string `json:"host"`
		}
		endpoint := strings.TrimRight(p.cfg.ControlPlane, "/") + "/indexes/" + url.PathEscape(p.cfg.IndexName)
		if err := p.rest.do(ctx, "DescribeIndex", http.MethodGet, endpoint, nil, &resp); err != nil {
			return "", err
		}
		if resp.Host == "" {
			return "", ports.NewIndexError(p.rest.index, "DescribeIndex", 0,
				fmt.Errorf("%w: index has no host", ports.ErrInvalidResponse))
		}

		resolved := normalizeHost(resp.Host)
		p.hostMu.Lock()
		p.host = resolved
		p.hostMu.Unlock()
		p.logger.Info("resolved pinecone host", "index", p.cfg.IndexName, "host", resolved)
		return resolved, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// normalizeHost adds https:// to bare hosts and drops a trailing slash.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
