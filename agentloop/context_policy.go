package agentloop

import (
	"fmt"
	"strings"
)

// ContextPolicyKind selects how a Transcript bounds its growth.
type ContextPolicyKind string

const (
	// PolicySlidingWindow keeps the system message and the most recent
	// MaxMessages other messages.
	PolicySlidingWindow ContextPolicyKind = "sliding_window"
	// PolicyUnbounded keeps every message for the life of the session.
	PolicyUnbounded ContextPolicyKind = "unbounded"
)

// DefaultMaxMessages is the sliding window size: twenty game/player exchanges.
const DefaultMaxMessages = 40

// ContextPolicy bounds what the Transcript retains.
type ContextPolicy struct {
	Kind        ContextPolicyKind `json:"kind" toml:"policy"`
	MaxMessages int               `json:"max_messages" toml:"max_messages"`
	// MaxMessageChars truncates each game output message to this many
	// characters, keeping its head and tail. 0 disables truncation.
	MaxMessageChars int `json:"max_message_chars" toml:"max_message_chars"`
}

// DefaultContextPolicy returns a sliding window of DefaultMaxMessages.
func DefaultContextPolicy() ContextPolicy {
	return ContextPolicy{
		Kind:        PolicySlidingWindow,
		MaxMessages: DefaultMaxMessages,
	}
}

// Validate reports configuration errors.
func (p ContextPolicy) Validate() error {
	switch p.Kind {
	case PolicyUnbounded:
	case PolicySlidingWindow:
		// A window must hold at least one game/player pair.
		if p.MaxMessages < 2 {
			return fmt.Errorf("context policy %s: max_messages must be at least 2, got %d", p.Kind, p.MaxMessages)
		}
	default:
		return fmt.Errorf("unknown context policy %q", p.Kind)
	}
	if p.MaxMessageChars < 0 {
		return fmt.Errorf("context policy: max_message_chars must not be negative, got %d", p.MaxMessageChars)
	}
	return nil
}

// TruncateHeadTail shortens output to maxChars by removing its middle and
// leaving a marker that says how much was removed.
func TruncateHeadTail(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(output) - 2*half
	return strings.ToValidUTF8(output[:half], "") +
		fmt.Sprintf("\n[... %d characters of game output omitted ...]\n", removed) +
		strings.ToValidUTF8(output[len(output)-half:], "")
}
