package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// validationText is embedded once to learn the model's vector size.
const validationText = "проверка"

// ConfigValidator checks provider settings before they are saved. Beyond
// reachability it confirms that the strong model answers and that the
// embedding model returns vectors of the size the index expects.
type ConfigValidator struct {
	newLLM       func(*domain.LLMSettings) (driven.LLMService, error)
	newEmbedding func(*domain.EmbeddingSettings) (driven.EmbeddingService, error)
	timeout      time.Duration
}

// NewConfigValidator creates a validator backed by the provider factories.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		newLLM:       CreateLLMService,
		newEmbedding: CreateEmbeddingService,
		timeout:      pingTimeout,
	}
}

// ValidateLLM pings the provider and, when a separate strong model is set,
// asks it for a one-token reply.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}
	svc, err := v.newLLM(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return err
	}

	strong := config.ModelFor(domain.StrengthStrong)
	if strong == "" || strong == svc.ModelName() {
		return nil
	}
	_, err = svc.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: "ok"}}, driven.ChatOptions{
		Model:     strong,
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("strong model %s: %w", strong, err)
	}
	return nil
}

// ValidateEmbedding pings the provider and checks the returned vector size
// against the model's declared dimensions.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}
	svc, err := v.newEmbedding(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return err
	}

	vec, err := svc.Embed(ctx, validationText)
	if err != nil {
		return fmt.Errorf("embed with %s: %w", svc.ModelName(), err)
	}
	if want := svc.Dimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("%w: %s returned %d dimensions, expected %d",
			domain.ErrMalformedResponse, svc.ModelName(), len(vec), want)
	}
	return nil
}
