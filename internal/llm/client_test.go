package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/neonvoidvibes/align/internal/config"
)

func unwrap(t *testing.T, c Client) Client {
	t.Helper()
	b, ok := c.(*Breaker)
	if !ok {
		t.Fatalf("expected *Breaker, got %T", c)
	}
	return b.next
}

func TestNewClientClaudeCLI(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "claude-cli", Model: "haiku"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := unwrap(t, client).(*ClaudeCLI); !ok {
		t.Errorf("expected *ClaudeCLI, got %T", unwrap(t, client))
	}
}

func TestNewClientTimeoutFromConfig(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "claude-cli", Timeout: 7})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c := unwrap(t, client).(*ClaudeCLI)
	if c.timeout != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", c.timeout)
	}

	client, err = NewClient(config.LLMConfig{Provider: "claude-cli"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if got := unwrap(t, client).(*ClaudeCLI).timeout; got != defaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, defaultTimeout)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	a, ok := unwrap(t, client).(*Anthropic)
	if !ok {
		t.Fatalf("expected *Anthropic, got %T", unwrap(t, client))
	}
	if a.model != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %q", a.model)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	if _, err := NewClient(config.LLMConfig{Provider: "anthropic"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2", Timeout: 5})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o, ok := unwrap(t, client).(*Ollama)
	if !ok {
		t.Fatalf("expected *Ollama, got %T", unwrap(t, client))
	}
	if o.client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", o.client.Timeout)
	}
}

func TestNewClientUnknown(t *testing.T) {
	if _, err := NewClient(config.LLMConfig{Provider: "gpt"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"PATH=/usr/bin",
	}
	filtered := filterEnv(env)
	if len(filtered) != 2 {
		t.Errorf("expected 2 vars, got %d: %v", len(filtered), filtered)
	}
}

func TestInferencePrompt(t *testing.T) {
	req := InferencePrompt("slept badly, walked 20 min",
		[]CategoryHint{{ID: "sleep", Unit: "hours", Description: "hours slept"}},
		map[string]float64{"sleep": 6.5, "focus": 30})

	if !req.JSON {
		t.Error("inference request should ask for JSON")
	}
	if req.System == "" {
		t.Error("expected a system prompt")
	}
	for _, want := range []string{"sleep (hours): hours slept", "focus=30, sleep=6.5", "slept badly, walked 20 min"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestInferencePromptNoHistory(t *testing.T) {
	req := InferencePrompt("hello", nil, nil)
	if !strings.Contains(req.Prompt, "none recorded yet") {
		t.Error("expected empty-history marker in prompt")
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), Request{Prompt: "test prompt"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if mock.CallCount() != 1 || mock.Calls[0].Prompt != "test prompt" {
		t.Errorf("calls = %+v", mock.Calls)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	mock := &MockClient{Err: errors.New("provider down")}
	b := NewBreakerWithSettings("test", mock, BreakerSettings{FailThreshold: 2, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := b.Complete(context.Background(), Request{}); err == nil {
			t.Fatal("expected provider error")
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	_, err := b.Complete(context.Background(), Request{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("provider called %d times, want 2", mock.CallCount())
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "{}"}}
	b := NewBreaker("test", mock)

	resp, err := b.Complete(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "{}" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestAnthropicJSONPrefill(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"content":[{"type":"text","text":"\"sleep\": 7}"}],"usage":{"input_tokens":10,"output_tokens":3}}`))
	}))
	defer srv.Close()

	a := NewAnthropic("k", "m", time.Second)
	a.endpoint = srv.URL

	resp, err := a.Complete(context.Background(), Request{System: "sys", Prompt: "p", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"sleep": 7}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensUsed != 13 {
		t.Errorf("tokens = %d, want 13", resp.TokensUsed)
	}
	if got.System != "sys" || len(got.Messages) != 2 || got.Messages[1].Content != "{" {
		t.Errorf("request = %+v", got)
	}
}

func TestAnthropicErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	a := NewAnthropic("k", "m", time.Second)
	a.endpoint = srv.URL

	if _, err := a.Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Error("expected error for 429")
	}
}

func TestOllamaJSONFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"response":"{\"focus\": 90}","prompt_eval_count":5,"eval_count":4}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.2", time.Second)
	resp, err := o.Complete(context.Background(), Request{System: "sys", Prompt: "p", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"focus": 90}` || resp.TokensUsed != 9 {
		t.Errorf("resp = %+v", resp)
	}
	if got["format"] != "json" || got["system"] != "sys" {
		t.Errorf("request = %v", got)
	}
}
