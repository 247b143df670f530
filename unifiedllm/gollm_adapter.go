package unifiedllm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm reads it from the provider's environment variable.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   2000,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := ResolveModel(cfg.model)
	if model == "" {
		info := DefaultModel(provider)
		if info == nil {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("no model given and no default model known for provider %q", provider),
			}}
		}
		model = info.ID
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Retry lives in this package.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider, model string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete renders the conversation into one gollm prompt and generates
// the next assistant message.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	req.Model = ResolveModel(req.Model)
	rendered := renderConversation(req.Messages)
	prompt := a.buildPrompt(req, rendered)
	a.applyRequestOptions(req)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	inputTokens := estimateTokens(req)
	outputTokens := len(text) / 4
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Text:         text,
		Prompt:       rendered,
		FinishReason: FinishReason{Reason: "stop", Raw: "stop"},
		Usage: Usage{
			// gollm does not report usage; approximate at four bytes per token.
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	}, nil
}

func (a *GollmAdapter) buildPrompt(req Request, rendered string) *gollm.Prompt {
	var promptOpts []gollm.PromptOption
	if system := strings.TrimSpace(req.SystemPrompt()); system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	return gollm.NewPrompt(rendered, promptOpts...)
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
// req.Model must already be resolved from any catalog alias.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
	if len(req.StopSequences) > 0 {
		a.llm.SetOption("stop", req.StopSequences)
	}
}

// renderConversation flattens the non-system messages into one prompt body,
// each tagged with its role. gollm takes a single prompt, so the full
// transcript travels on every call.
func renderConversation(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "<|%s|>\n%s", msg.Role, strings.TrimSpace(msg.Content))
	}
	sb.WriteString("\n\n<|assistant|>\n")
	return sb.String()
}

type errorRule struct {
	needles []string
	build   func(pe ProviderError) error
}

var gollmErrorRules = []errorRule{
	{[]string{"401", "unauthorized", "invalid key", "invalid api key"}, func(pe ProviderError) error {
		pe.StatusCode = 401
		return &AuthenticationError{ProviderError: pe}
	}},
	{[]string{"403", "forbidden"}, func(pe ProviderError) error {
		pe.StatusCode = 403
		return &AccessDeniedError{ProviderError: pe}
	}},
	{[]string{"404", "not found"}, func(pe ProviderError) error {
		pe.StatusCode = 404
		return &NotFoundError{ProviderError: pe}
	}},
	{[]string{"429", "rate limit"}, func(pe ProviderError) error {
		pe.StatusCode = 429
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	}},
	{[]string{"context length", "too many tokens"}, func(pe ProviderError) error {
		pe.StatusCode = 413
		return &ContextLengthError{ProviderError: pe}
	}},
	{[]string{"500", "internal server"}, func(pe ProviderError) error {
		pe.StatusCode = 500
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	}},
	{[]string{"timeout"}, func(pe ProviderError) error {
		return &RequestTimeoutError{SDKError: pe.SDKError}
	}},
	{[]string{"connection refused", "no such host"}, func(pe ProviderError) error {
		return &NetworkError{SDKError: pe.SDKError}
	}},
	{[]string{"content filter", "safety"}, func(pe ProviderError) error {
		return &ContentFilterError{ProviderError: pe}
	}},
}

// translateError converts a gollm error into the unified error hierarchy by
// matching its message, since gollm does not expose status codes.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := ProviderError{
		SDKError: SDKError{Message: msg, Cause: err},
		Provider: a.provider,
	}
	for _, rule := range gollmErrorRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.build(base)
			}
		}
	}
	base.Retryable = true
	return &base
}

// estimateTokens provides a rough token count estimate from request messages.
func estimateTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	if total == 0 {
		total = 10
	}
	return total
}
