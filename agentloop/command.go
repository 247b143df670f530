package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// commandPattern matches the first command( on a line through the last ) on
// that same line.
var commandPattern = regexp.MustCompile(`command\((.*)\)`)

var errMissingLine = errors.New(`missing string argument "line"`)

// Command is a single line to type into the game.
type Command struct {
	Line string `json:"line"`
}

// MalformedCommandError reports a command(...) invocation whose argument is
// not a JSON object with a string "line".
type MalformedCommandError struct {
	Argument string
	Err      error
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command argument %q: %v", e.Argument, e.Err)
}

func (e *MalformedCommandError) Unwrap() error { return e.Err }

// ParseCommand finds a command({"line": "..."}) invocation anywhere in text.
// It returns nil with no error when there is no invocation or when the
// parentheses are empty.
func ParseCommand(text string) (*Command, error) {
	m := commandPattern.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return nil, nil
	}
	arg := m[1]

	args, err := ParseToolArguments(json.RawMessage(arg))
	if err != nil {
		return nil, &MalformedCommandError{Argument: arg, Err: err}
	}
	line, ok := GetStringArg(args, "line")
	if !ok {
		return nil, &MalformedCommandError{Argument: arg, Err: errMissingLine}
	}
	return &Command{Line: line}, nil
}
