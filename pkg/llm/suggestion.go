package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/prompts"
)

// SuggestionConfig tunes the suggestion client.
type SuggestionConfig struct {
	Temperature    float64
	CircuitBreaker CircuitBreakerConfig
}

// DefaultSuggestionConfig returns sensible defaults.
func DefaultSuggestionConfig() SuggestionConfig {
	return SuggestionConfig{
		Temperature:    0.7,
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// SuggestionClient produces per-question suggestions and whole-brief
// summaries on top of any LLMClient. Calls are stateless; a shared circuit
// breaker fails them fast while the provider is down.
type SuggestionClient struct {
	client      LLMClient
	breaker     *CircuitBreaker
	temperature float64
	logger      *zap.Logger
}

// NewSuggestionClient wraps an LLMClient.
func NewSuggestionClient(client LLMClient, cfg SuggestionConfig, logger *zap.Logger) *SuggestionClient {
	return &SuggestionClient{
		client:      client,
		breaker:     NewCircuitBreaker(cfg.CircuitBreaker),
		temperature: cfg.Temperature,
		logger:      logger.Named("suggestions"),
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (s *SuggestionClient) Breaker() *CircuitBreaker {
	return s.breaker
}

// Suggest returns candidate text for one question.
func (s *SuggestionClient) Suggest(ctx context.Context, questionID, promptText string) (string, error) {
	text, err := s.generate(ctx, "suggest", prompts.BuildSuggestionPrompt(questionID, promptText), prompts.SuggestionSystemMessage,
		zap.String("question_id", questionID))
	if err != nil {
		return "", err
	}
	return StripThinking(text), nil
}

// Summarize synthesizes the brief description from every answer.
// The provider's text is returned unmodified unless it carries reasoning blocks.
func (s *SuggestionClient) Summarize(ctx context.Context, answers []models.AnsweredQuestion) (string, error) {
	text, err := s.generate(ctx, "summarize", prompts.BuildSummaryPrompt(answers), prompts.SummarySystemMessage,
		zap.Int("answers", len(answers)))
	if err != nil {
		return "", err
	}
	if strings.Contains(text, "<think>") {
		text = StripThinking(text)
	}
	return text, nil
}

func (s *SuggestionClient) generate(ctx context.Context, op, prompt, system string, field zap.Field) (string, error) {
	if allowed, err := s.breaker.Allow(); !allowed {
		return "", NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}

	start := time.Now()
	result, err := s.client.GenerateResponse(ctx, prompt, system, s.temperature)
	if err != nil {
		s.breaker.RecordFailure()
		classified := ClassifyError(err)
		s.logger.Warn("Provider call failed",
			zap.String("op", op),
			field,
			zap.String("error_type", string(classified.Type)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified))
		return "", classified
	}

	if StripThinking(result.Content) == "" {
		// An empty answer is not a provider outage.
		s.breaker.RecordSuccess()
		return "", NewError(ErrorTypeEmpty, fmt.Sprintf("%s returned no text", op), false, nil)
	}

	s.breaker.RecordSuccess()
	s.logger.Debug("Provider call completed",
		zap.String("op", op),
		field,
		zap.Int("total_tokens", result.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return result.Content, nil
}
