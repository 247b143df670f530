package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
)

const playerInstructions = `You are the player in a game of Colossal Cave Adventure. You will receive game output from your user.

IMPORTANT: When responding, follow this structure:
1. OBSERVATION: Briefly summarize what you observe in the current game state
2. KNOWLEDGE: List what you know about the game world so far
3. GOALS: Clearly state your current goals (explore, collect items, solve puzzles)
4. STRATEGY: Explain your reasoning for your next action
5. COMMAND: Use the command tool to send your instruction to the game

Always think carefully about your goals and strategy before sending commands. If previous commands didn't work, try different approaches rather than repeating the same actions.

To send commands to the game, you MUST use the command tool interface like this:
`

// BuildSystemPrompt renders the player instructions followed by the tool
// list as JSON between <|tool|> tags. Extra instructions, when set, are
// appended last.
func BuildSystemPrompt(tools []ToolDefinition, extra string) (string, error) {
	if tools == nil {
		tools = []ToolDefinition{}
	}
	encoded, err := json.Marshal(tools)
	if err != nil {
		return "", fmt.Errorf("encode tool definitions: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(playerInstructions)
	sb.WriteString("<|tool|>")
	sb.Write(encoded)
	sb.WriteString("<|/tool|>")
	if extra = strings.TrimSpace(extra); extra != "" {
		sb.WriteString("\n\n")
		sb.WriteString(extra)
	}
	return sb.String(), nil
}
