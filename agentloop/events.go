package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of loop event.
type EventKind string

const (
	EventLoopStart      EventKind = "loop_start"
	EventGameOutput     EventKind = "game_output"
	EventPlayerResponse EventKind = "player_response"
	EventCommandSent    EventKind = "command_sent"
	EventNoCommand      EventKind = "no_command"
	EventLoopDetection  EventKind = "loop_detection"
	EventWarning        EventKind = "warning"
	EventGameExit       EventKind = "game_exit"
	EventTurnLimit      EventKind = "turn_limit"
	EventError          EventKind = "error"
)

// Event is a typed record of loop activity.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Turn      int                    `json:"turn"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Text returns Data["text"] when it is a string.
func (e Event) Text() string {
	s, _ := e.Data["text"].(string)
	return s
}

// EventHandler receives events on the loop's goroutine. Handlers must not
// block.
type EventHandler func(Event)

// EventEmitter fans events out to subscribed handlers synchronously, in
// subscription order.
type EventEmitter struct {
	runID    string
	handlers []EventHandler
	mu       sync.RWMutex
}

// NewEventEmitter creates an emitter that stamps every event with runID.
func NewEventEmitter(runID string) *EventEmitter {
	return &EventEmitter{runID: runID}
}

// RunID returns the id stamped on events.
func (e *EventEmitter) RunID() string { return e.runID }

// Subscribe adds a handler.
func (e *EventEmitter) Subscribe(h EventHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit delivers an event to every handler before returning.
func (e *EventEmitter) Emit(kind EventKind, turn int, data map[string]interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		Turn:      turn,
		Data:      data,
	}
	for _, h := range handlers {
		h(event)
	}
}
