package unifiedllm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

func TestGollmAdapterName(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "test-key-not-real")
		if err != nil {
			t.Logf("skipping %s adapter creation (expected without real key): %v", provider, err)
			continue
		}
		if adapter.Name() != provider {
			t.Errorf("expected name %q, got %q", provider, adapter.Name())
		}
		if adapter.model != DefaultModel(provider).ID {
			t.Errorf("expected default model %q, got %q", DefaultModel(provider).ID, adapter.model)
		}
	}
}

func TestGollmAdapterUnknownProviderNeedsModel(t *testing.T) {
	_, err := NewGollmAdapter("nonexistent", "")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T (%v)", err, err)
	}
}

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}

	tests := []struct {
		errMsg string
		check  func(error) bool
	}{
		{"401 Unauthorized", func(e error) bool { _, ok := e.(*AuthenticationError); return ok }},
		{"invalid api key", func(e error) bool { _, ok := e.(*AuthenticationError); return ok }},
		{"403 Forbidden", func(e error) bool { _, ok := e.(*AccessDeniedError); return ok }},
		{"404 not found", func(e error) bool { _, ok := e.(*NotFoundError); return ok }},
		{"429 rate limit exceeded", func(e error) bool { _, ok := e.(*RateLimitError); return ok }},
		{"context length exceeded", func(e error) bool { _, ok := e.(*ContextLengthError); return ok }},
		{"500 internal server error", func(e error) bool { _, ok := e.(*ServerError); return ok }},
		{"timeout waiting for response", func(e error) bool { _, ok := e.(*RequestTimeoutError); return ok }},
		{"dial tcp 127.0.0.1:11434: connection refused", func(e error) bool { _, ok := e.(*NetworkError); return ok }},
		{"content filter triggered", func(e error) bool { _, ok := e.(*ContentFilterError); return ok }},
		{"something unknown", func(e error) bool { _, ok := e.(*ProviderError); return ok }},
	}

	for _, tt := range tests {
		err := adapter.translateError(errForMsg(tt.errMsg))
		if err == nil {
			t.Errorf("expected non-nil error for %q", tt.errMsg)
			continue
		}
		if !tt.check(err) {
			t.Errorf("for %q: unexpected error type %T", tt.errMsg, err)
		}
	}

	if adapter.translateError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestGollmAdapterTranslateErrorKeepsCause(t *testing.T) {
	adapter := &GollmAdapter{provider: "anthropic"}
	cause := errForMsg("401 Unauthorized")
	err := adapter.translateError(cause)
	if !errors.Is(err, cause) {
		t.Error("expected translated error to wrap the gollm error")
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Provider != "anthropic" || authErr.StatusCode != 401 {
		t.Errorf("unexpected translated error: %#v", err)
	}
}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
func errForMsg(msg string) error     { return &simpleError{msg: msg} }

func TestRenderConversation(t *testing.T) {
	rendered := renderConversation([]Message{
		SystemMessage("You are the player."),
		UserMessage("  Welcome to Adventure!!  "),
		AssistantMessage(`COMMAND: command({"line": "yes"})`),
		UserMessage("You are standing at the end of a road."),
	})

	if strings.Contains(rendered, "You are the player.") {
		t.Error("system messages travel as the gollm system prompt, not in the body")
	}
	want := "<|user|>\nWelcome to Adventure!!\n\n" +
		"<|assistant|>\nCOMMAND: command({\"line\": \"yes\"})\n\n" +
		"<|user|>\nYou are standing at the end of a road.\n\n" +
		"<|assistant|>\n"
	if rendered != want {
		t.Errorf("unexpected rendering:\n%s\nwant:\n%s", rendered, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	req := Request{
		Messages: []Message{
			UserMessage("Hello world, this is a test message."),
		},
	}
	if tokens := estimateTokens(req); tokens <= 0 {
		t.Errorf("expected positive token estimate, got %d", tokens)
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	if tokens := estimateTokens(Request{}); tokens != 10 {
		t.Errorf("expected default token estimate of 10, got %d", tokens)
	}
}

// fakeLLM records what the adapter hands to gollm. Methods the adapter never
// calls fall through to the nil embedded interface.
type fakeLLM struct {
	gollm.LLM
	options map[string]interface{}
	prompts []*gollm.Prompt
	reply   string
}

func (f *fakeLLM) SetOption(key string, value interface{}) {
	if f.options == nil {
		f.options = make(map[string]interface{})
	}
	f.options[key] = value
}

func (f *fakeLLM) Generate(_ context.Context, prompt *gollm.Prompt, _ ...llm.GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

func TestGollmAdapterCompleteResolvesModelAlias(t *testing.T) {
	fake := &fakeLLM{reply: `command({"line": "yes"})`}
	adapter := NewGollmAdapterFromLLM("anthropic", ResolveModel("sonnet"), fake)

	resp, err := adapter.Complete(context.Background(), Request{
		Model:    "sonnet",
		Messages: []Message{SystemMessage("You are the player."), UserMessage("Welcome to Adventure!!")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fake.options["model"]; got != "claude-sonnet-4-5" {
		t.Errorf("expected gollm model %q, got %v", "claude-sonnet-4-5", got)
	}
	if resp.Model != "claude-sonnet-4-5" {
		t.Errorf("expected response model %q, got %q", "claude-sonnet-4-5", resp.Model)
	}
	if resp.Text != `command({"line": "yes"})` {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if !strings.HasPrefix(resp.Prompt, "<|user|>\nWelcome to Adventure!!") {
		t.Errorf("unexpected rendered prompt %q", resp.Prompt)
	}
	if len(fake.prompts) != 1 {
		t.Fatalf("expected 1 gollm call, got %d", len(fake.prompts))
	}
}

func TestGollmAdapterCompleteKeepsAdapterModel(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	adapter := NewGollmAdapterFromLLM("ollama", "phi4-mini", fake)

	resp, err := adapter.Complete(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, set := fake.options["model"]; set {
		t.Errorf("expected no model override, got %v", fake.options["model"])
	}
	if resp.Model != "phi4-mini" {
		t.Errorf("expected response model %q, got %q", "phi4-mini", resp.Model)
	}
}

func TestGollmAdapterCompleteTranslatesError(t *testing.T) {
	adapter := NewGollmAdapterFromLLM("openai", "gpt-4o", &failingLLM{err: errForMsg("429 rate limit exceeded")})
	_, err := adapter.Complete(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T (%v)", err, err)
	}
}

type failingLLM struct {
	fakeLLM
	err error
}

func (f *failingLLM) Generate(_ context.Context, _ *gollm.Prompt, _ ...llm.GenerateOption) (string, error) {
	return "", f.err
}
