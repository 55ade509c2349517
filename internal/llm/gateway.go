package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/schemas"
)

// DefaultMaxRetries is the number of additional attempts after the first
// when the model's output fails parsing or schema validation.
const DefaultMaxRetries = 2

// StructuredRequest describes one schema-constrained generation call.
type StructuredRequest struct {
	Role         Role
	Prompt       string
	SystemPrompt string
	// Schema validates the raw response before decoding. Optional; when nil
	// only JSON decoding gates success.
	Schema *schemas.Schema
}

// Generator is the structured-generation contract agents depend on. Gateway
// implements it; tests substitute fakes.
type Generator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest, out any) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxRetries overrides the parse-failure retry budget.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// WithBackoff overrides the network retry schedule.
func WithBackoff(attempts int, base, cap time.Duration) Option {
	return func(g *Gateway) {
		g.networkAttempts = attempts
		g.backoffBase = base
		g.backoffCap = cap
	}
}

// Gateway wraps a Client with schema-constrained structured generation.
// It is stateless per call and safe for concurrent use; callers apply their
// own admission control.
type Gateway struct {
	client          Client
	logger          *zap.Logger
	maxRetries      int
	networkAttempts int
	backoffBase     time.Duration
	backoffCap      time.Duration
}

// NewGateway creates a gateway over the given client.
func NewGateway(client Client, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		client:          client,
		logger:          logger,
		maxRetries:      DefaultMaxRetries,
		networkAttempts: defaultNetworkAttempts,
		backoffBase:     defaultBackoffBase,
		backoffCap:      defaultBackoffCap,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateStructured generates a response constrained to the request's schema
// and decodes it into out. Parse and schema-validation failures are retried
// with fresh calls up to the retry budget; exhaustion returns a
// GenerationExhaustedError carrying the last underlying error. Network
// failures are retried on a separate axis inside each attempt.
func (g *Gateway) GenerateStructured(ctx context.Context, req StructuredRequest, out any) error {
	call := Request{
		Role:         req.Role,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		JSON:         true,
	}

	attempts := g.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := g.callWithNetworkRetry(ctx, call)
		if err != nil {
			return err
		}

		g.observeFinish(req.Role, result)

		payload := []byte(cleanJSONBlock(result.Text))
		if req.Schema != nil {
			if err := req.Schema.Validate(payload); err != nil {
				lastErr = err
				g.logger.Warn("response failed schema validation",
					zap.String("role", string(req.Role)),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
		}

		if err := json.Unmarshal(payload, out); err != nil {
			lastErr = err
			g.logger.Warn("failed to decode response",
				zap.String("role", string(req.Role)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		return nil
	}

	return &GenerationExhaustedError{Role: req.Role, Attempts: attempts, Last: lastErr}
}

// observeFinish logs completion metadata and flags probable truncation, which
// is a content-integrity risk independent of parse success.
func (g *Gateway) observeFinish(role Role, result *Result) {
	switch {
	case result.FinishReason == FinishMaxTokens:
		g.logger.Warn("response truncated at token limit",
			zap.String("role", string(role)),
			zap.Int("response_length", len(result.Text)),
		)
	case result.FinishReason != FinishStop:
		g.logger.Warn("unexpected finish reason",
			zap.String("role", string(role)),
			zap.String("finish_reason", result.FinishReason),
			zap.Int("response_length", len(result.Text)),
		)
	case looksTruncated(result.Text):
		g.logger.Warn("response appears truncated despite normal stop",
			zap.String("role", string(role)),
			zap.Int("response_length", len(result.Text)),
		)
	default:
		g.logger.Debug("generation complete",
			zap.String("role", string(role)),
			zap.Int("response_length", len(result.Text)),
		)
	}
}

// looksTruncated reports whether text ends mid-sentence.
func looksTruncated(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', '"', '\'', ')', ']', '}':
		return false
	}
	return true
}

// cleanJSONBlock removes markdown code block wrappers from JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
