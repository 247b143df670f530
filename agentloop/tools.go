package agentloop

import (
	"encoding/json"
	"fmt"
)

// ToolParameter describes one named argument of a tool.
type ToolParameter struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ToolDefinition describes a tool the player may call by writing
// name({...}) in its response. It is rendered into the system prompt.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ToolParameter `json:"parameters"`
}

// CommandToolName is the only tool the loop acts on.
const CommandToolName = "command"

// CommandTool types one line into the game.
var CommandTool = ToolDefinition{
	Name:        CommandToolName,
	Description: "Type a command into the game.",
	Parameters: map[string]ToolParameter{
		"line": {
			Description: "A line of text. MUST be one or two words, lowercased.",
			Type:        "str",
		},
	},
}

// DefaultTools is the tool list advertised to the player.
func DefaultTools() []ToolDefinition {
	return []ToolDefinition{CommandTool}
}

// ParseToolArguments unmarshals tool call arguments into a map. Anything
// other than a JSON object is an error.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		return nil, fmt.Errorf("invalid tool arguments: expected a JSON object")
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
