package llm

import (
	"context"
	"math"

	"google.golang.org/genai"
)

type googleEmbedding struct {
	client          *genai.Client
	dimensions      int
	errorClassifier *ErrorClassifier
}

func newGoogleEmbedding(cfg EmbedderConfig) (embeddingBackend, error) {
	client, err := newGenAIClient(ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &googleEmbedding{
		client:          client,
		dimensions:      cfg.Dimensions,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

func (g *googleEmbedding) embed(ctx context.Context, model, text string) ([]float32, int, error) {
	config := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if g.dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(int32(min(g.dimensions, math.MaxInt32)))
	}

	resp, err := g.client.Models.EmbedContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, 0, classifyGoogleError(g.errorClassifier, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, 0, nil
	}
	// The Gemini API does not report token usage for embeddings.
	return resp.Embeddings[0].Values, 0, nil
}
