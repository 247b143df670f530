package agentloop

import (
	"time"

	"github.com/martinemde/caveagent/unifiedllm"
)

// Role is the author of a transcript message.
type Role = unifiedllm.Role

const (
	RoleSystem    = unifiedllm.RoleSystem
	RoleUser      = unifiedllm.RoleUser
	RoleAssistant = unifiedllm.RoleAssistant
)

// Message is one entry in the conversation. Game output is recorded as a
// user message and the player's response as an assistant message.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the ordered conversation the player sees. The system message
// is always first and is never evicted.
type Transcript struct {
	system   Message
	messages []Message
	policy   ContextPolicy
	dropped  int
}

// NewTranscript starts a transcript with the given system message. The
// policy must already be valid.
func NewTranscript(system string, policy ContextPolicy) *Transcript {
	return &Transcript{
		system: Message{Role: RoleSystem, Content: system, Timestamp: time.Now()},
		policy: policy,
	}
}

// AppendUser records game output, truncated per the policy.
func (t *Transcript) AppendUser(content string) {
	if t.policy.MaxMessageChars > 0 {
		content = TruncateHeadTail(content, t.policy.MaxMessageChars)
	}
	t.append(RoleUser, content)
}

// AppendAssistant records a player response.
func (t *Transcript) AppendAssistant(content string) {
	t.append(RoleAssistant, content)
}

func (t *Transcript) append(role Role, content string) {
	t.messages = append(t.messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	t.evict()
}

// evict trims the oldest non-system messages down to the window. Messages
// leave in pairs so the window still opens on game output.
func (t *Transcript) evict() {
	if t.policy.Kind != PolicySlidingWindow {
		return
	}
	excess := len(t.messages) - t.policy.MaxMessages
	if excess <= 0 {
		return
	}
	if excess%2 == 1 && excess < len(t.messages) {
		excess++
	}
	t.messages = append([]Message(nil), t.messages[excess:]...)
	t.dropped += excess
}

// Messages returns a copy of the retained messages, system message first.
func (t *Transcript) Messages() []Message {
	out := make([]Message, 0, len(t.messages)+1)
	out = append(out, t.system)
	return append(out, t.messages...)
}

// Len counts retained messages including the system message.
func (t *Transcript) Len() int { return len(t.messages) + 1 }

// Dropped counts messages evicted by the policy.
func (t *Transcript) Dropped() int { return t.dropped }

// System returns the system message content.
func (t *Transcript) System() string { return t.system.Content }

// ToLLMMessages converts the retained messages into unifiedllm messages.
func ToLLMMessages(messages []Message) []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(messages))
	for i, m := range messages {
		out[i] = unifiedllm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
