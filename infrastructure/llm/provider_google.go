package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM with the Gemini API.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	client, err := newGenAIClient(config)
	if err != nil {
		return nil, err
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: config.Model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// newGenAIClient is shared by the completion provider and the embedder.
func newGenAIClient(config ClientConfig) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: validatedURL}
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	return client, nil
}

// DoRequest sends one GenerateContent call.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, p.buildGenerationConfig(options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, NewProviderError("google", ErrorTypeServerError, 0, "", ErrEmptyResponse)
	}

	var promptTokens, outputTokens int
	if usage := resp.UsageMetadata; usage != nil {
		promptTokens = int(usage.PromptTokenCount)
		outputTokens = int(usage.CandidatesTokenCount)
	}
	tokensIn := p.tokenCounter.GetTokenCount(promptTokens, prompt)
	tokensOut := p.tokenCounter.GetTokenCount(outputTokens, content)

	return content, tokensIn, tokensOut, nil
}

func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(options.MaxTokens, math.MaxInt32)),
	}

	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*options.Temperature))
	}
	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(*options.TopP))
	}

	return config
}

func (p *googleProvider) handleError(err error) error {
	return classifyGoogleError(p.errorClassifier, err)
}

func classifyGoogleError(ec *ErrorClassifier, err error) error {
	if isContextError(err) {
		return ec.ClassifyContextError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyBlock(apiErr.Message) {
			return NewProviderError(ec.Provider, ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}
		return ec.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		if isSafetyBlock(message) {
			return NewProviderError(ec.Provider, ErrorTypeContentPolicy, gErr.Code,
				"request blocked by safety filters", err)
		}
		return ec.ClassifyHTTPError(gErr.Code, message, err)
	}

	return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request failed", err)
}

func isSafetyBlock(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}
