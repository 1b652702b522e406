// Package genai wraps the OpenAI chat completion API for generating
// conversational replies.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultRequestTimeout bounds a single completion call.
const DefaultRequestTimeout = 30 * time.Second

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       openai.ChatModel
	temperature float64
	timeout     time.Duration
}

// Opts holds configuration for creating a Client.
type Opts struct {
	// APIKey is the OpenAI API key. Falls back to OPENAI_API_KEY when empty.
	APIKey string
	// Model overrides the default chat model.
	Model openai.ChatModel
	// Temperature overrides the default sampling temperature.
	Temperature float64
	// Timeout overrides the default per-request timeout.
	Timeout time.Duration
}

// Option configures a Client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if o.Model == "" {
		o.Model = openai.ChatModelGPT4oMini
	}
	if o.Temperature == 0 {
		o.Temperature = 0.8
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultRequestTimeout
	}

	cli := openai.NewClient(option.WithAPIKey(o.APIKey))
	slog.Debug("GenAI client initialized", "model", o.Model)
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       o.Model,
		temperature: o.Temperature,
		timeout:     o.Timeout,
	}, nil
}

// GenerateReplies requests up to n reply candidates for the given prompts and
// returns the non-empty ones. The call is bounded by the client timeout.
func (c *Client) GenerateReplies(ctx context.Context, systemPrompt, userPrompt string, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		N:           openai.Int(int64(n)),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("GenAI completion failed", "error", err, "model", c.model)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	var replies []string
	for _, choice := range resp.Choices {
		content := strings.TrimSpace(choice.Message.Content)
		if content != "" {
			replies = append(replies, content)
		}
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}
	slog.Debug("GenAI completion succeeded", "candidates", len(replies))
	return replies, nil
}
