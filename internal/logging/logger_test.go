package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/caveagent/agentloop"
	"github.com/martinemde/caveagent/unifiedllm"
)

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(context.Background(), WithRunID("run-123"), WithConsole(&buf))
	require.NoError(t, err)
	defer logger.Close()

	assert.Empty(t, logger.Path())
	assert.Equal(t, "run-123", logger.RunID())

	logger.Logger.Info("game started", "game", "adventure")
	logger.Logger.Debug("hidden at info level")

	out := buf.String()
	assert.Contains(t, out, "game started")
	assert.Contains(t, out, "run_id=run-123")
	assert.NotContains(t, out, "hidden at info level")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(context.Background(), WithLevel("loud"))
	assert.Error(t, err)
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	logger, err := New(context.Background(),
		WithRunID("run-abc"),
		WithLevel("debug"),
		WithLogDir(dir),
		WithConsole(&console),
	)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(logger.Path()), "caveagent-"))
	assert.True(t, strings.HasSuffix(logger.Path(), "-run-abc.log"))

	logger.Logger.Debug("command sent", "line", "yes")
	require.NoError(t, logger.Close())
	assert.Empty(t, console.String())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	assert.Equal(t, "command sent", record["msg"])
	assert.Equal(t, "yes", record["line"])
	assert.Equal(t, "run-abc", record["run_id"])
}

func TestWithRunIDRebuildsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(context.Background(), WithConsole(&buf))
	require.NoError(t, err)

	logger.WithRunID(" later ").Logger.Info("hello")
	assert.Contains(t, buf.String(), "run_id=later")

	var nilLogger *RuntimeLogger
	assert.Nil(t, nilLogger.WithRunID("x"))
	assert.NoError(t, nilLogger.Close())
	assert.Empty(t, nilLogger.Path())
}

type stubProvider struct {
	err error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Complete(_ context.Context, req unifiedllm.Request) (*unifiedllm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &unifiedllm.Response{
		Provider:     "stub",
		Model:        req.Model,
		Text:         "ok",
		FinishReason: unifiedllm.FinishReason{Reason: "stop"},
		Usage:        unifiedllm.Usage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15},
	}, nil
}

func TestLLMMiddlewareLogsResponse(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(context.Background(), WithConsole(&buf))
	require.NoError(t, err)

	client := unifiedllm.NewClient(
		unifiedllm.WithProvider("stub", stubProvider{}),
		unifiedllm.WithMiddleware(LLMMiddleware(logger.Logger)),
	)
	resp, err := client.Complete(context.Background(), unifiedllm.Request{Model: "phi4-mini"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	out := buf.String()
	assert.Contains(t, out, "llm response")
	assert.Contains(t, out, "input_tokens=12")
	assert.Contains(t, out, "finish_reason=stop")
}

func TestLLMMiddlewareLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(context.Background(), WithConsole(&buf))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	client := unifiedllm.NewClient(
		unifiedllm.WithProvider("stub", stubProvider{err: boom}),
		unifiedllm.WithMiddleware(LLMMiddleware(logger.Logger)),
	)
	_, err = client.Complete(context.Background(), unifiedllm.Request{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "llm request failed")
}

func TestEventLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(context.Background(), WithConsole(&buf), WithLevel("debug"))
	require.NoError(t, err)

	handler := EventLogger(logger.Logger)
	emitter := agentloop.NewEventEmitter("run-1")
	emitter.Subscribe(handler)
	emitter.Emit(agentloop.EventGameOutput, 1, map[string]interface{}{"text": "Welcome to Adventure!!"})
	emitter.Emit(agentloop.EventCommandSent, 1, map[string]interface{}{"line": "yes"})
	emitter.Emit(agentloop.EventLoopDetection, 2, map[string]interface{}{"message": "repeat"})

	out := buf.String()
	assert.Contains(t, out, "Welcome to Adventure!!")
	assert.Contains(t, out, "command sent")
	assert.Contains(t, out, "line=yes")
	assert.Contains(t, out, "message=repeat")
}
