package logging

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/martinemde/caveagent/agentloop"
	"github.com/martinemde/caveagent/unifiedllm"
)

// LLMMiddleware logs every completion request with its latency and usage.
func LLMMiddleware(logger *log.Logger) unifiedllm.Middleware {
	return func(ctx context.Context, req unifiedllm.Request, next unifiedllm.Handler) (*unifiedllm.Response, error) {
		started := time.Now()
		logger.Debug("llm request",
			"provider", req.Provider,
			"model", req.Model,
			"messages", len(req.Messages),
		)

		resp, err := next(ctx, req)
		elapsed := time.Since(started)
		if err != nil {
			logger.Warn("llm request failed",
				"provider", req.Provider,
				"model", req.Model,
				"duration", elapsed,
				"retryable", unifiedllm.IsRetryable(err),
				"err", err,
			)
			return nil, err
		}

		logger.Info("llm response",
			"provider", resp.Provider,
			"model", resp.Model,
			"duration", elapsed,
			"finish_reason", resp.FinishReason.Reason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
		return resp, nil
	}
}

// EventLogger records loop events. Game and player text is logged at debug.
func EventLogger(logger *log.Logger) agentloop.EventHandler {
	return func(e agentloop.Event) {
		switch e.Kind {
		case agentloop.EventGameOutput, agentloop.EventPlayerResponse:
			logger.Debug(string(e.Kind), "turn", e.Turn, "text", e.Text())
		case agentloop.EventCommandSent:
			logger.Info("command sent", "turn", e.Turn, "line", e.Data["line"])
		case agentloop.EventNoCommand:
			logger.Info("no command in player response", "turn", e.Turn)
		case agentloop.EventLoopDetection, agentloop.EventWarning:
			logger.Warn(string(e.Kind), "turn", e.Turn, "message", e.Data["message"])
		case agentloop.EventError:
			logger.Error("loop failed", "turn", e.Turn, "err", e.Data["error"])
		case agentloop.EventGameExit:
			logger.Info("game exited", "turn", e.Turn)
		case agentloop.EventTurnLimit:
			logger.Warn("turn limit reached", "turn", e.Turn, "max_turns", e.Data["max_turns"])
		default:
			logger.Debug(string(e.Kind), "turn", e.Turn)
		}
	}
}
