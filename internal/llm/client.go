package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Request describes one generation call.
type Request struct {
	Role         Role
	Prompt       string
	SystemPrompt string
	// JSON requests application/json output from the provider.
	JSON bool
}

// Result is the raw outcome of one generation call.
type Result struct {
	Text string
	// FinishReason is the provider's stop signal, e.g. "STOP" or "MAX_TOKENS".
	FinishReason string
}

// Finish reason values surfaced to callers.
const (
	FinishStop      = "STOP"
	FinishMaxTokens = "MAX_TOKENS"
)

// Client is an abstraction over LLM providers.
type Client interface {
	// Generate performs a single generation call for the request's role.
	Generate(ctx context.Context, req Request) (*Result, error)
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Generate performs a single Gemini call configured for the request's role.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Result, error) {
	cfg := ConfigForRole(req.Role)

	model := c.client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.SetMaxOutputTokens(cfg.MaxTokens)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:         text,
		FinishReason: finishReason(resp),
	}, nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// finishReason maps the first candidate's stop signal to a stable string.
func finishReason(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return "UNKNOWN"
	}
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishMaxTokens
	default:
		return resp.Candidates[0].FinishReason.String()
	}
}
