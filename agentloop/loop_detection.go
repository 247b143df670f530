package agentloop

import (
	"fmt"
	"strings"
)

// DefaultLoopDetectionWindow is the number of recent commands compared.
const DefaultLoopDetectionWindow = 6

// LoopDetectionConfig enables steering when the player repeats itself.
type LoopDetectionConfig struct {
	Enabled bool `json:"enabled" toml:"enabled"`
	Window  int  `json:"window" toml:"window"`
}

// commandSignature normalizes a sent line so "Go North" and "go north"
// compare equal.
func commandSignature(line string) string {
	return strings.Join(strings.Fields(strings.ToLower(line)), " ")
}

// recentSignatures returns signatures for the last count commands in order.
func recentSignatures(sent []string, count int) []string {
	if len(sent) > count {
		sent = sent[len(sent)-count:]
	}
	sigs := make([]string, len(sent))
	for i, line := range sent {
		sigs[i] = commandSignature(line)
	}
	return sigs
}

// DetectLoop checks if the last windowSize sent commands follow a repeating
// pattern of length 1, 2, or 3.
func DetectLoop(sent []string, windowSize int) bool {
	if windowSize < 2 {
		return false
	}
	sigs := recentSignatures(sent, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 || patternLen == windowSize {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}

// loopSteeringNote is appended to the next game output after a loop fires.
func loopSteeringNote(windowSize int) string {
	return fmt.Sprintf("[Loop detected: your last %d commands follow a repeating pattern. Try a different approach.]", windowSize)
}
