package agentloop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxNewTokens caps the length of one player response.
const DefaultMaxNewTokens = 2000

// GenerateOptions are the generation knobs passed through to the Generator.
type GenerateOptions struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

// Generation is one generator result. Text is only what the model produced;
// Prompt carries the rendered prompt when ReturnFullText was requested and
// is for display only.
type Generation struct {
	Text   string
	Prompt string
}

// FullText returns the echoed prompt followed by the generated text.
func (g Generation) FullText() string { return g.Prompt + g.Text }

// Generator produces the next assistant message for an ordered transcript.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (Generation, error)
}

// AgentConfig configures an Agent.
type AgentConfig struct {
	Tools        []ToolDefinition `json:"tools"`
	Instructions string           `json:"instructions,omitempty"` // appended last to the system prompt
	Context      ContextPolicy    `json:"context"`
	Generation   GenerateOptions  `json:"generation"`
	// ContextWindow is the model's window in tokens. When set, the loop
	// warns once the transcript passes 80% of it.
	ContextWindow int `json:"context_window,omitempty"`
}

// DefaultAgentConfig advertises the command tool, keeps a sliding window of
// the transcript and generates up to DefaultMaxNewTokens new tokens.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Tools:      DefaultTools(),
		Context:    DefaultContextPolicy(),
		Generation: GenerateOptions{MaxNewTokens: DefaultMaxNewTokens},
	}
}

// Agent is the player: a transcript plus the capability that extends it.
type Agent struct {
	id         string
	generator  Generator
	transcript *Transcript
	config     AgentConfig
	mu         sync.Mutex
}

// NewAgent builds the system prompt and an empty transcript. A nil config
// uses DefaultAgentConfig.
func NewAgent(gen Generator, config *AgentConfig) (*Agent, error) {
	if gen == nil {
		return nil, fmt.Errorf("new agent: generator is required")
	}
	cfg := DefaultAgentConfig()
	if config != nil {
		cfg = *config
	}
	if err := cfg.Context.Validate(); err != nil {
		return nil, fmt.Errorf("new agent: %w", err)
	}

	system, err := BuildSystemPrompt(cfg.Tools, cfg.Instructions)
	if err != nil {
		return nil, fmt.Errorf("new agent: %w", err)
	}

	return &Agent{
		id:         uuid.New().String(),
		generator:  gen,
		transcript: NewTranscript(system, cfg.Context),
		config:     cfg,
	}, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Config returns the agent configuration.
func (a *Agent) Config() AgentConfig { return a.config }

// Prompt records gameOutput, asks the generator for the next response and
// records the trimmed generated text. An echoed prompt is returned but never
// recorded. On a generator error the user message stays in the transcript
// and nothing is recorded for the assistant.
func (a *Agent) Prompt(ctx context.Context, gameOutput string) (Generation, error) {
	a.mu.Lock()
	a.transcript.AppendUser(gameOutput)
	messages := a.transcript.Messages()
	a.mu.Unlock()

	gen, err := a.generator.Generate(ctx, messages, a.config.Generation)
	if err != nil {
		return Generation{}, fmt.Errorf("generate player response: %w", err)
	}
	gen.Text = strings.TrimSpace(gen.Text)

	a.mu.Lock()
	a.transcript.AppendAssistant(gen.Text)
	a.mu.Unlock()
	return gen, nil
}

// Record appends a game output and response pair without calling the
// generator.
func (a *Agent) Record(gameOutput, response string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript.AppendUser(gameOutput)
	a.transcript.AppendAssistant(response)
}

// Messages returns a copy of the transcript, system message first.
func (a *Agent) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript.Messages()
}

// Dropped counts transcript messages evicted by the context policy.
func (a *Agent) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript.Dropped()
}

// SystemPrompt returns the rendered system message.
func (a *Agent) SystemPrompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript.System()
}

// ApproxTokens estimates the transcript size at four characters per token.
func (a *Agent) ApproxTokens() int {
	total := 0
	for _, m := range a.Messages() {
		total += len(m.Content)
	}
	return total / 4
}

// contextUsageHigh reports the estimated usage percentage once it passes 80%
// of the configured context window.
func (a *Agent) contextUsageHigh() (int, bool) {
	window := a.config.ContextWindow
	if window <= 0 {
		return 0, false
	}
	tokens := a.ApproxTokens()
	if tokens <= window*8/10 {
		return 0, false
	}
	return tokens * 100 / window, true
}
