package agentloop

import (
	"context"
	"errors"
	"sync"

	"github.com/martinemde/caveagent/unifiedllm"
)

// ErrScriptExhausted is returned by ScriptedGenerator once every queued
// response has been handed out.
var ErrScriptExhausted = errors.New("scripted responses exhausted")

// LLMGeneratorOptions selects the model and retry behavior of an LLMGenerator.
type LLMGeneratorOptions struct {
	Model         string   // empty lets the client pick via its default provider
	Provider      string   // empty uses the client's default provider
	Temperature   *float64 // nil keeps the adapter default
	StopSequences []string
	Retry         unifiedllm.RetryPolicy // zero value makes a single attempt
}

// LLMGenerator adapts a unifiedllm.Client to the Generator interface.
type LLMGenerator struct {
	client *unifiedllm.Client
	opts   LLMGeneratorOptions

	mu    sync.Mutex
	usage unifiedllm.Usage
	calls int
}

// NewLLMGenerator wraps client.
func NewLLMGenerator(client *unifiedllm.Client, opts LLMGeneratorOptions) *LLMGenerator {
	return &LLMGenerator{client: client, opts: opts}
}

// Generate sends the transcript as one completion request. With
// ReturnFullText set the rendered prompt is returned alongside the new text.
func (g *LLMGenerator) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (Generation, error) {
	req := unifiedllm.Request{
		Model:         g.opts.Model,
		Provider:      g.opts.Provider,
		Messages:      ToLLMMessages(messages),
		Temperature:   g.opts.Temperature,
		StopSequences: g.opts.StopSequences,
	}
	if opts.MaxNewTokens > 0 {
		maxTokens := opts.MaxNewTokens
		req.MaxTokens = &maxTokens
	}

	resp, err := unifiedllm.Retry(ctx, g.opts.Retry, func(ctx context.Context) (*unifiedllm.Response, error) {
		return g.client.Complete(ctx, req)
	})
	if err != nil {
		return Generation{}, err
	}

	g.mu.Lock()
	g.usage = g.usage.Add(resp.Usage)
	g.calls++
	g.mu.Unlock()

	gen := Generation{Text: resp.Text}
	if opts.ReturnFullText {
		gen.Prompt = resp.Prompt
	}
	return gen, nil
}

// Usage returns the token usage accumulated across successful calls.
func (g *LLMGenerator) Usage() unifiedllm.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Calls counts successful completions.
func (g *LLMGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// ScriptedGenerator replays fixed responses in order. It records the
// transcript it was given on every call.
type ScriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	requests  [][]Message
}

// NewScriptedGenerator queues responses.
func NewScriptedGenerator(responses ...string) *ScriptedGenerator {
	return &ScriptedGenerator{responses: append([]string(nil), responses...)}
}

// Generate pops the next response or returns ErrScriptExhausted.
func (g *ScriptedGenerator) Generate(ctx context.Context, messages []Message, _ GenerateOptions) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, append([]Message(nil), messages...))
	if len(g.responses) == 0 {
		return Generation{}, ErrScriptExhausted
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	return Generation{Text: next}, nil
}

// Requests returns the transcripts passed to Generate, oldest first.
func (g *ScriptedGenerator) Requests() [][]Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]Message(nil), g.requests...)
}

// Remaining counts responses not yet handed out.
func (g *ScriptedGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.responses)
}
