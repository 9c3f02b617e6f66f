// Package genai wraps the OpenAI chat completion API used to draw readings.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("genai: no choices returned")

// Config holds the language model settings.
type Config struct {
	APIKey      string  `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL     string  `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model       string  `yaml:"model" envconfig:"OPENAI_MODEL"`
	Temperature float64 `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE"`
	MaxTokens   int64   `yaml:"max_tokens" envconfig:"OPENAI_MAX_TOKENS"`
	// TimeoutSeconds bounds a single generation request.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"OPENAI_TIMEOUT_SECONDS"`
}

// Normalize fills defaults for unset fields.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = string(openai.ChatModelGPT3_5Turbo)
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1500
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 60
	}
}

// Timeout returns the per-request deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// chatService is the part of the OpenAI SDK the client depends on.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client issues chat completions with a fixed model configuration.
type Client struct {
	chat chatService
	cfg  Config
}

// NewClient builds a client from cfg. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	cfg.Normalize()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("genai: OPENAI_API_KEY not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	cli := openai.NewClient(opts...)
	return &Client{chat: completionsAdapter{svc: &cli.Chat.Completions}, cfg: cfg}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends one system and one user message and returns the raw reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("genai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
