package game

import (
	"io"
	"strings"
	"time"
)

const (
	// DefaultReadDelay is how long FixedDelayReader waits for the game to
	// flush before reading.
	DefaultReadDelay = 100 * time.Millisecond

	// DefaultReadBufferSize bounds a single read of game output.
	DefaultReadBufferSize = 4096
)

// OutputReader turns the raw pty stream into one chunk of game output per
// round-trip.
type OutputReader interface {
	ReadOutput(r io.Reader) (string, error)
}

// FixedDelayReader sleeps for Delay and then performs exactly one read of at
// most BufferSize bytes. Output longer than the buffer, or written after the
// delay, is left for the next read or missed entirely. There is no framing
// and no wait-until-quiet logic.
//
// TODO: add a quiescence reader that keeps reading until the pty has been
// idle for a short interval, and decide whether truncated reads should then
// be reported.
type FixedDelayReader struct {
	Delay      time.Duration
	BufferSize int

	sleep func(time.Duration)
}

// NewFixedDelayReader returns a FixedDelayReader. A negative delay or a
// non-positive buffer size falls back to the default.
func NewFixedDelayReader(delay time.Duration, bufferSize int) *FixedDelayReader {
	if delay < 0 {
		delay = DefaultReadDelay
	}
	if bufferSize <= 0 {
		bufferSize = DefaultReadBufferSize
	}
	return &FixedDelayReader{Delay: delay, BufferSize: bufferSize, sleep: time.Sleep}
}

// ReadOutput implements OutputReader.
func (f *FixedDelayReader) ReadOutput(r io.Reader) (string, error) {
	sleep := f.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if f.Delay > 0 {
		sleep(f.Delay)
	}

	size := f.BufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	buf := make([]byte, size)
	n, err := r.Read(buf)
	if n > 0 {
		// A bounded read can split a multi-byte rune at the buffer edge.
		return strings.ToValidUTF8(string(buf[:n]), "�"), nil
	}
	return "", err
}
