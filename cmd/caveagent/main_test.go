package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/caveagent/agentloop"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() {
		if chdirErr := os.Chdir(cwd); chdirErr != nil {
			t.Fatalf("restore cwd: %v", chdirErr)
		}
	})
	require.NoError(t, os.Chdir(t.TempDir()))
	return home
}

func requirePTY(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/ptmx"); err != nil {
		t.Skip("pseudoterminals are not available")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func execute(ctx context.Context, t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(ctx, args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRootCommandVersionFlag(t *testing.T) {
	originalVersion := Version
	defer func() {
		Version = originalVersion
	}()
	Version = "v0.1.0-test"

	stdout, _, err := execute(context.Background(), t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0-test", strings.TrimSpace(stdout))

	stdout, _, err = execute(context.Background(), t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0-test", strings.TrimSpace(stdout))
}

func TestRootCommandHelpListsSubcommands(t *testing.T) {
	stdout, _, err := execute(context.Background(), t, "", "--help")
	require.NoError(t, err)
	for _, name := range []string{"run", "parse", "version"} {
		assert.Contains(t, stdout, name)
	}
}

func TestParseCommand(t *testing.T) {
	stdout, _, err := execute(context.Background(), t,
		"OBSERVATION: a road\nCOMMAND: command({\"line\": \"go north\"})\n", "parse")
	require.NoError(t, err)
	assert.Equal(t, `{"line":"go north"}`, strings.TrimSpace(stdout))

	stdout, _, err = execute(context.Background(), t, "just thinking", "parse")
	require.NoError(t, err)
	assert.Equal(t, "no command", strings.TrimSpace(stdout))

	_, _, err = execute(context.Background(), t, "command({invalid json})", "parse")
	var malformed *agentloop.MalformedCommandError
	assert.ErrorAs(t, err, &malformed)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(context.Background(), t, "", "run", "--max-turns=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunMissingScript(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(context.Background(), t, "", "run", "--script", filepath.Join(t.TempDir(), "none.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat script file")
}

func TestRunMissingGame(t *testing.T) {
	requirePTY(t)
	isolateHome(t)
	script := filepath.Join(t.TempDir(), "script.toml")
	writeFile(t, script, `responses = ["thinking"]`)

	_, _, err := execute(context.Background(), t, "", "run", "--script", script, "--game", "definitely-not-an-adventure-binary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start game")
}

func TestRunScriptedPlayerUntilTurnLimit(t *testing.T) {
	requirePTY(t)
	isolateHome(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "script.toml")
	writeFile(t, script, `responses = ["I am thinking.", "Still thinking."]`)
	cfgPath := filepath.Join(dir, "caveagent.toml")
	writeFile(t, cfgPath, `
game = "/bin/sh"
game_args = ["-c", "echo Welcome to Adventure; sleep 5"]
bootstrap = []
`)

	stdout, _, err := execute(context.Background(), t, "",
		"run", "--config", cfgPath, "--script", script, "--max-turns", "2")
	require.NoError(t, err)

	assert.Contains(t, stdout, "---game--\nWelcome to Adventure")
	assert.Contains(t, stdout, "---player---\nI am thinking.")
	assert.Contains(t, stdout, "---player---\nStill thinking.")
	assert.Contains(t, stdout, "Turn limit of 2 reached")
}

func TestRunInterruptedByUser(t *testing.T) {
	requirePTY(t)
	isolateHome(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "script.toml")
	writeFile(t, script, `responses = ["thinking"]`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// The game never writes, so the initial read is pending when the
	// context ends.
	stdout, _, err := execute(ctx, t, "",
		"run", "--script", script, "--game", "/bin/sh", "--game-arg=-c", "--game-arg=sleep 5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Program terminated by user")
}

func TestTracePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newTracePrinter(&buf)
	p.Handle(agentloop.Event{Kind: agentloop.EventGameOutput, Data: map[string]interface{}{"text": "Welcome"}})
	p.Handle(agentloop.Event{Kind: agentloop.EventPlayerResponse, Data: map[string]interface{}{"text": `command({"line": "yes"})`}})
	p.Handle(agentloop.Event{Kind: agentloop.EventCommandSent, Data: map[string]interface{}{"line": "yes"}})
	p.Handle(agentloop.Event{Kind: agentloop.EventGameExit})

	assert.Equal(t, "---game--\nWelcome\n---player---\ncommand({\"line\": \"yes\"})\nGame has terminated\n", buf.String())
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	writeFile(t, good, "responses = [\"\"\"\nOBSERVATION: start\nCOMMAND: command({\"line\": \"yes\"})\"\"\", \"two\"]\n")
	responses, err := loadScript(good)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "OBSERVATION: start\nCOMMAND: command({\"line\": \"yes\"})", responses[0])

	empty := filepath.Join(dir, "empty.toml")
	writeFile(t, empty, "responses = []\n")
	_, err = loadScript(empty)
	assert.Error(t, err)
}
