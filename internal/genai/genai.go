// Package genai wraps the OpenAI API for generating agent replies.
//
// The wrapper converts every dependency failure into models.ErrDegraded so the
// call controller never sees a raw transport error, and it makes exactly one
// attempt per turn: no retries.
package genai

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

// Default generation parameters. Replies are spoken aloud, so the token
// budget stays small.
const (
	DefaultMaxTokens      = 150
	DefaultTemperature    = 0.7
	DefaultRequestTimeout = 30 * time.Second
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	NewCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openaiChat adapts the OpenAI SDK client to chatService.
type openaiChat struct {
	client openai.Client
}

func (c openaiChat) NewCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxTokens overrides the reply token budget.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client generates agent replies from a system prompt and recent history.
type Client struct {
	chat        chatService
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       openai.ChatModelGPT4oMini,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		Timeout:     DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cli := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Client{
		chat:        openaiChat{client: cli},
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate produces a reply for the given system prompt and recent turns.
// Any dependency error, an empty choice list, or an empty reply string comes
// back as models.ErrDegraded; the caller is expected to fall back rather than
// retry.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history iter.Seq[models.Turn]) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}
	for turn := range history {
		switch turn.Speaker {
		case models.SpeakerCaller:
			messages = append(messages, openai.UserMessage(turn.Text))
		case models.SpeakerAgent:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.chat.NewCompletion(ctx, params)
	if err != nil {
		slog.Error("GenAI.Generate: chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("%w: %v", models.ErrDegraded, err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.Generate: no choices returned", "model", c.model)
		return "", fmt.Errorf("%w: no choices returned", models.ErrDegraded)
	}
	reply := resp.Choices[0].Message.Content
	if reply == "" {
		slog.Error("GenAI.Generate: empty reply content", "model", c.model)
		return "", fmt.Errorf("%w: empty reply", models.ErrDegraded)
	}
	slog.Debug("GenAI.Generate: reply generated", "model", c.model, "chars", len(reply))
	return reply, nil
}
