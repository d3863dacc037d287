// Package genai provides the chat-completion client used to generate chatbot
// replies, with a per-intent system prompt and a single model-downgrade retry
// when the configured model has been decommissioned.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jokkolabs/jokko/internal/models"
)

// Default generation parameters.
const (
	DefaultModel         = openai.ChatModelGPT4o
	DefaultFallbackModel = openai.ChatModelGPT4oMini
	DefaultMaxTokens     = 700
	DefaultTemperature   = 0.7
)

// ErrNoChoicesReturned indicates the completion API returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK to the chatService interface.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey        string
	Model         string
	FallbackModel string
	MaxTokens     int64
	Temperature   float64
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the primary completion model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithFallbackModel sets the model retried when the primary is decommissioned.
func WithFallbackModel(model string) Option {
	return func(o *Opts) {
		o.FallbackModel = model
	}
}

// WithMaxTokens bounds the completion token budget.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// Client wraps the OpenAI chat-completion service for generating replies.
type Client struct {
	chat          chatService
	model         string
	fallbackModel string
	maxTokens     int64
	temperature   float64
}

// NewClient initializes a new GenAI client from the provided options.
// An API key is required; it is injected by the caller rather than read from
// the environment so the client is testable with fake configuration.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:         DefaultModel,
		FallbackModel: DefaultFallbackModel,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client initialized", "model", cfg.Model, "fallback_model", cfg.FallbackModel, "max_tokens", cfg.MaxTokens)
	return &Client{
		chat:          &openaiChatService{client: cli},
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
	}, nil
}

// GenerateReply generates a reply for the given intent and user text. When the
// primary model is rejected as deprecated or decommissioned, the call is
// retried exactly once against the fallback model; any other failure is
// returned to the caller. The reply is sanitized and length-bounded.
func (c *Client) GenerateReply(ctx context.Context, intent models.Intent, userText string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPromptFor(intent)),
			openai.UserMessage(userText),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil && isModelDeprecated(err) {
		slog.Warn("GenAI model rejected as deprecated, retrying with fallback model",
			"model", c.model, "fallback_model", c.fallbackModel, "error", err)
		params.Model = c.fallbackModel
		resp, err = c.chat.Create(ctx, params)
	}
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return SanitizeReply(resp.Choices[0].Message.Content), nil
}

// isModelDeprecated reports whether the error marks the requested model as
// deprecated or decommissioned by the provider.
func isModelDeprecated(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.Code == "model_not_found" {
			return true
		}
		msg := strings.ToLower(apierr.Message)
		if strings.Contains(msg, "deprecat") || strings.Contains(msg, "decommission") {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deprecat") || strings.Contains(msg, "decommission")
}
