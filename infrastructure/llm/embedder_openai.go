package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

type openAIEmbedding struct {
	client          *openai.Client
	dimensions      int
	errorClassifier *ErrorClassifier
}

func newOpenAIEmbedding(cfg EmbedderConfig) (embeddingBackend, error) {
	clientConfig, err := openAIClientConfig(ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &openAIEmbedding{
		client:          openai.NewClientWithConfig(clientConfig),
		dimensions:      cfg.Dimensions,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

func (o *openAIEmbedding) embed(ctx context.Context, model, text string) ([]float32, int, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, 0, classifyOpenAIError(o.errorClassifier, err)
	}
	if len(resp.Data) == 0 {
		return nil, 0, nil
	}
	return resp.Data[0].Embedding, resp.Usage.PromptTokens, nil
}
