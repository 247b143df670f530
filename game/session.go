// Package game hosts the adventure game as a child process on a
// pseudoterminal and exposes a line-oriented send/read surface over it.
package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// DefaultExecutable is the game launched when Options.Executable is empty.
const DefaultExecutable = "adventure"

// closeGrace is how long Close waits after SIGHUP before SIGKILL.
const closeGrace = 500 * time.Millisecond

// ErrClosed is returned by Send and Read after Close.
var ErrClosed = errors.New("game session closed")

// Options configures Open.
type Options struct {
	Executable string            // resolved via PATH; DefaultExecutable if empty
	Args       []string          // none by default
	Dir        string            // working directory; inherits when empty
	Env        map[string]string // added after secret filtering
	Reader     OutputReader      // FixedDelayReader with defaults if nil
}

// Session is one live game process and the pty master connected to its
// stdin, stdout and stderr.
type Session struct {
	cmd    *exec.Cmd
	pty    *os.File
	reader OutputReader

	done     chan struct{}
	exitCode int

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// Open allocates a pseudoterminal pair and launches the game with its
// standard streams on the slave end. The parent's copy of the slave is
// closed once the child has it. A launch failure is returned wrapped and is
// never retried.
func Open(ctx context.Context, opts Options) (*Session, error) {
	executable := opts.Executable
	if executable == "" {
		executable = DefaultExecutable
	}

	// ctx bounds the launch only; the game outlives it and is stopped by Close.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", executable, err)
	}

	cmd := exec.Command(executable, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = childEnvironment(opts.Env)

	// pty.Start attaches all three streams to the slave, makes the child a
	// session leader with the slave as controlling terminal, and closes the
	// slave in the parent.
	master, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", executable, err)
	}

	reader := opts.Reader
	if reader == nil {
		reader = NewFixedDelayReader(DefaultReadDelay, DefaultReadBufferSize)
	}

	s := &Session{
		cmd:      cmd,
		pty:      master,
		reader:   reader,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go s.reap()
	return s, nil
}

// reap waits for the child and records its exit state.
func (s *Session) reap() {
	_ = s.cmd.Wait() // exit status is read from ProcessState
	s.mu.Lock()
	if s.cmd.ProcessState != nil {
		s.exitCode = s.cmd.ProcessState.ExitCode()
	}
	s.mu.Unlock()
	close(s.done)
}

// Send writes line followed by a newline. There is no acknowledgment.
func (s *Session) Send(line string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, err := s.pty.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write to game: %w", err)
	}
	return nil
}

// Read returns the next chunk of game output as produced by the session's
// OutputReader.
func (s *Session) Read() (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	out, err := s.reader.ReadOutput(s.pty)
	if err != nil {
		return "", fmt.Errorf("read game output: %w", err)
	}
	return out, nil
}

// IsAlive reports whether the child process is still running. It never blocks.
func (s *Session) IsAlive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Done is closed once the child process has been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// PID returns the child's process id.
func (s *Session) PID() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitCode returns the child's exit status once it has exited. A child
// killed by a signal reports -1.
func (s *Session) ExitCode() (int, bool) {
	if s.IsAlive() {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, true
}

// Close closes the pty master, stops the process group if the game is still
// running and waits for the child to be reaped. Calling Close more than once
// is safe.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.pty.Close(); err != nil {
			s.closeErr = fmt.Errorf("close pty: %w", err)
		}

		if s.IsAlive() {
			s.signalGroup(syscall.SIGHUP)
			select {
			case <-s.done:
			case <-time.After(closeGrace):
				s.signalGroup(syscall.SIGKILL)
				<-s.done
			}
		}
	})
	return s.closeErr
}

// signalGroup signals the child's process group. The child is a session
// leader, so its pgid equals its pid.
func (s *Session) signalGroup(sig syscall.Signal) {
	if pid := s.PID(); pid > 0 {
		_ = syscall.Kill(-pid, sig)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
