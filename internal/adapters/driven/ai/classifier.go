package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/mentions/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Classifier adapts a chat LLM into the classification engine. Every call
// asks for a single JSON object at temperature 0 and is throttled by a
// shared limiter.
type Classifier struct {
	llm      driven.LLMService
	settings domain.LLMSettings
	limiter  *ratelimit.RateLimiter
}

// NewClassifier wraps llm. requestsPerSecond <= 0 disables throttling.
func NewClassifier(llm driven.LLMService, settings domain.LLMSettings, requestsPerSecond float64) *Classifier {
	return &Classifier{
		llm:      llm,
		settings: settings,
		limiter:  ratelimit.New(ratelimit.Config{RequestsPerSecond: requestsPerSecond}),
	}
}

// Classify sends the system prompt and payload to the model chosen by the
// request strength.
func (c *Classifier) Classify(ctx context.Context, req driven.ClassifyRequest) (driven.ClassifyResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return driven.ClassifyResponse{}, err
	}

	model := c.settings.ModelFor(req.Strength)
	if model == "" {
		model = c.llm.ModelName()
	}

	messages := make([]driven.ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, driven.ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, driven.ChatMessage{Role: "user", Content: req.Prompt})

	content, err := c.llm.Chat(ctx, messages, driven.ChatOptions{
		Model:       model,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		var se *ratelimit.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(se.RetryAfter())
		}
		return driven.ClassifyResponse{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return driven.ClassifyResponse{}, fmt.Errorf("classify: %w: empty response from %s", domain.ErrMalformedResponse, model)
	}
	return driven.ClassifyResponse{Content: content, Model: model}, nil
}
