package agentloop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrTurnLimit is returned by Run when LoopOptions.MaxTurns is reached.
var ErrTurnLimit = errors.New("turn limit reached")

// DefaultBootstrapResponse answers the game's opening question so the
// instructions are shown before the model takes over.
const DefaultBootstrapResponse = `OBSERVATION: The game has just started.
KNOWLEDGE: I know the game is called Adventure and has instructions.
GOALS: I'm not sure of my goal yet.
STRATEGY: I should read the instructions.
COMMAND: command({"line": "yes"})`

// DefaultBootstrap returns a fresh copy of the scripted opening responses.
func DefaultBootstrap() []string {
	return []string{DefaultBootstrapResponse}
}

// GameChannel is the line-oriented surface of a running game.
type GameChannel interface {
	Send(line string) error
	Read() (string, error)
	IsAlive() bool
}

// LoopOptions configures a CommandLoop.
type LoopOptions struct {
	// Bootstrap responses are used in order, one per turn, before the
	// generator is consulted. They are recorded in the transcript verbatim.
	Bootstrap     []string
	MaxTurns      int // 0 = unlimited
	LoopDetection LoopDetectionConfig
	RunID         string // stamped on events; generated when empty
}

// DefaultLoopOptions uses DefaultBootstrap with no turn limit and loop
// detection off.
func DefaultLoopOptions() LoopOptions {
	return LoopOptions{
		Bootstrap: DefaultBootstrap(),
		LoopDetection: LoopDetectionConfig{
			Window: DefaultLoopDetectionWindow,
		},
	}
}

// CommandLoop alternates between the game and the player until the game
// exits.
type CommandLoop struct {
	game    GameChannel
	agent   *Agent
	opts    LoopOptions
	emitter *EventEmitter

	bootstrap     []string
	sent          []string
	turns         int
	steering      string
	contextWarned bool
}

// NewCommandLoop wires game to agent. A nil opts uses DefaultLoopOptions.
func NewCommandLoop(game GameChannel, agent *Agent, opts *LoopOptions) *CommandLoop {
	o := DefaultLoopOptions()
	if opts != nil {
		o = *opts
	}
	if o.LoopDetection.Enabled && o.LoopDetection.Window <= 0 {
		o.LoopDetection.Window = DefaultLoopDetectionWindow
	}
	if o.RunID == "" {
		o.RunID = uuid.New().String()
	}
	return &CommandLoop{
		game:      game,
		agent:     agent,
		opts:      o,
		emitter:   NewEventEmitter(o.RunID),
		bootstrap: append([]string(nil), o.Bootstrap...),
	}
}

// Subscribe registers a handler for loop events.
func (l *CommandLoop) Subscribe(h EventHandler) { l.emitter.Subscribe(h) }

// RunID returns the id stamped on this loop's events.
func (l *CommandLoop) RunID() string { return l.emitter.RunID() }

// Turns counts completed or in-progress iterations.
func (l *CommandLoop) Turns() int { return l.turns }

// Sent returns the lines written to the game, oldest first.
func (l *CommandLoop) Sent() []string { return append([]string(nil), l.sent...) }

// Run reads the opening output and then repeats: respond, parse, send,
// read. It returns nil once the game process has exited, ctx.Err() on
// cancellation, ErrTurnLimit when MaxTurns is reached, and any game I/O,
// generator or malformed command error.
func (l *CommandLoop) Run(ctx context.Context) error {
	l.emitter.Emit(EventLoopStart, 0, map[string]interface{}{
		"bootstrap": len(l.bootstrap),
		"max_turns": l.opts.MaxTurns,
	})

	output, err := l.game.Read()
	if err != nil {
		return l.fail(fmt.Errorf("read initial game output: %w", err))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.opts.MaxTurns > 0 && l.turns >= l.opts.MaxTurns {
			l.emitter.Emit(EventTurnLimit, l.turns, map[string]interface{}{
				"max_turns": l.opts.MaxTurns,
			})
			return ErrTurnLimit
		}
		l.turns++

		l.emitter.Emit(EventGameOutput, l.turns, map[string]interface{}{
			"text": strings.TrimSpace(output),
		})

		response, source, err := l.respond(ctx, output)
		if err != nil {
			return l.fail(fmt.Errorf("turn %d: %w", l.turns, err))
		}
		l.emitter.Emit(EventPlayerResponse, l.turns, map[string]interface{}{
			"text":   strings.TrimSpace(response.FullText()),
			"source": source,
		})

		// Only the newly generated text can carry this turn's command.
		cmd, err := ParseCommand(response.Text)
		if err != nil {
			return l.fail(fmt.Errorf("turn %d: %w", l.turns, err))
		}
		if cmd == nil {
			// Nothing is sent; the same output is shown again next turn.
			l.emitter.Emit(EventNoCommand, l.turns, nil)
		} else {
			next, err := l.execute(cmd)
			if err != nil {
				return l.fail(fmt.Errorf("turn %d: %w", l.turns, err))
			}
			output = next
		}

		l.checkContextUsage()

		if !l.game.IsAlive() {
			l.emitter.Emit(EventGameExit, l.turns, nil)
			return nil
		}
	}
}

// respond returns the next player response and where it came from.
func (l *CommandLoop) respond(ctx context.Context, output string) (Generation, string, error) {
	if l.steering != "" {
		output = strings.TrimRight(output, "\n") + "\n\n" + l.steering
		l.steering = ""
	}

	if len(l.bootstrap) > 0 {
		response := l.bootstrap[0]
		l.bootstrap = l.bootstrap[1:]
		l.agent.Record(output, response)
		return Generation{Text: response}, "bootstrap", nil
	}

	response, err := l.agent.Prompt(ctx, output)
	if err != nil {
		return Generation{}, "agent", err
	}
	return response, "agent", nil
}

// execute types cmd into the game and returns its reply with the echoed
// line removed.
func (l *CommandLoop) execute(cmd *Command) (string, error) {
	if err := l.game.Send(cmd.Line); err != nil {
		return "", fmt.Errorf("send command %q: %w", cmd.Line, err)
	}
	l.sent = append(l.sent, cmd.Line)
	l.emitter.Emit(EventCommandSent, l.turns, map[string]interface{}{
		"line": cmd.Line,
	})

	raw, err := l.game.Read()
	if err != nil {
		return "", fmt.Errorf("after command %q: %w", cmd.Line, err)
	}
	reply := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), cmd.Line))

	if l.opts.LoopDetection.Enabled && DetectLoop(l.sent, l.opts.LoopDetection.Window) {
		l.steering = loopSteeringNote(l.opts.LoopDetection.Window)
		l.emitter.Emit(EventLoopDetection, l.turns, map[string]interface{}{
			"message": l.steering,
			"window":  l.opts.LoopDetection.Window,
		})
	}
	return reply, nil
}

// checkContextUsage warns once when the transcript nears the model window.
func (l *CommandLoop) checkContextUsage() {
	if l.contextWarned {
		return
	}
	if pct, high := l.agent.contextUsageHigh(); high {
		l.contextWarned = true
		l.emitter.Emit(EventWarning, l.turns, map[string]interface{}{
			"message": fmt.Sprintf("Context usage at ~%d%% of context window", pct),
		})
	}
}

func (l *CommandLoop) fail(err error) error {
	l.emitter.Emit(EventError, l.turns, map[string]interface{}{
		"error": err.Error(),
	})
	return err
}
