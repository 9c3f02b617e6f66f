package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
)

type mockChatService struct {
	params openai.ChatCompletionNewParams
	resp   openai.ChatCompletion
	err    error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func newTestClient(m *mockChatService) *Client {
	cfg := Config{APIKey: "test"}
	cfg.Normalize()
	return &Client{chat: m, cfg: cfg}
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	m := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"cards":[]}`}},
			{Message: openai.ChatCompletionMessage{Content: "second"}},
		},
	}}
	got, err := newTestClient(m).Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != `{"cards":[]}` {
		t.Fatalf("unexpected content %q", got)
	}
	if len(m.params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(m.params.Messages))
	}
	if m.params.Model != openai.ChatModelGPT3_5Turbo {
		t.Fatalf("unexpected model %q", m.params.Model)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	_, err := newTestClient(&mockChatService{}).Complete(context.Background(), "sys", "user")
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestCompleteTransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newTestClient(&mockChatService{err: boom}).Complete(context.Background(), "sys", "user")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	if cfg.MaxTokens != 1500 || cfg.TimeoutSeconds != 60 || cfg.Temperature != 0.8 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
