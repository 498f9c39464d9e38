// Package progress provides TTY detection and a progress spinner for the
// deploy and destroy poll loops.
//
// In interactive mode (TTY detected and OLLAMASTACK_NO_SPINNER unset), the
// Spinner renders animated braille characters with \r overwrite so the
// polling status stays on one line. In non-interactive mode (CI, pipes,
// OLLAMASTACK_NO_SPINNER=1), each update is a plain timestamped line such
// as:
//
//	[12:34:56] Stack status: CREATE_IN_PROGRESS... waiting
//
// All methods are safe to call in any order; calling Stop or Fail before
// Start is a no-op.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// NewCommandSpinner creates a Spinner for command progress output. When
// quiet is true (the --json path), the spinner writes to io.Discard so
// machine-readable output stays clean.
func NewCommandSpinner(w io.Writer, quiet bool) *Spinner {
	if quiet {
		sp := New(io.Discard)
		sp.Interactive = false
		return sp
	}
	return New(w)
}

// spinnerFrames are the braille characters used for the animated spinner in
// interactive (TTY) mode.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickInterval controls how fast the spinner animates in interactive mode.
const tickInterval = 80 * time.Millisecond

// Spinner displays progress to the user. Create one with New() and call
// Start, Update, Stop, and Fail in sequence.
//
// Fields Interactive and Writer are public so tests can override them after
// construction without needing additional constructors.
type Spinner struct {
	// Interactive controls whether animated (TTY) or plain-line output is
	// used. New() sets this automatically; override in tests to force a mode.
	Interactive bool

	// Writer is the destination for all output. Defaults to os.Stdout.
	Writer io.Writer

	mu      sync.Mutex
	msg     string
	running bool
	stop    chan struct{}
	done    chan struct{}
	frame   int
}

// New constructs a Spinner. Pass an io.Writer to redirect output (useful in
// tests); pass nil to use os.Stdout. Interactive is true only when
// OLLAMASTACK_NO_SPINNER is not "1" and os.Stdout is a terminal.
func New(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stdout
	}

	interactive := false
	if os.Getenv("OLLAMASTACK_NO_SPINNER") != "1" {
		interactive = term.IsTerminal(int(os.Stdout.Fd()))
	}

	return &Spinner{
		Interactive: interactive,
		Writer:      w,
	}
}

// Start begins progress display with the given message. Calling Start on an
// already-started Spinner is equivalent to Update.
func (s *Spinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg

	if s.running {
		return
	}

	if s.Interactive {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		s.running = true
		go s.spin()
	} else {
		s.writeLine(msg)
	}
}

// Update changes the displayed message. In interactive mode the next tick
// picks up the new message; in non-interactive mode a new timestamped line
// is written immediately.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg

	if !s.Interactive {
		s.writeLine(msg)
	}
}

// Stop halts the spinner and prints a final success message.
func (s *Spinner) Stop(msg string) {
	s.finish(msg)
}

// Fail halts the spinner and prints a final failure message.
func (s *Spinner) Fail(msg string) {
	s.finish(msg)
}

// UpdateWriter returns an io.Writer that routes each written line through
// Update. The deployer's progress output goes through this so spinner ticks
// and poll status lines never interleave on the same fd.
func (s *Spinner) UpdateWriter() io.Writer {
	return &updateWriter{sp: s}
}

type updateWriter struct{ sp *Spinner }

func (uw *updateWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		uw.sp.Update(msg)
	}
	return len(p), nil
}

// finish stops the spinner (if running) and writes the final message.
func (s *Spinner) finish(msg string) {
	s.mu.Lock()

	if s.running {
		close(s.stop)
		s.running = false
		s.mu.Unlock()

		// Wait for the goroutine to exit before writing the final line so
		// the output does not interleave with a tick in progress.
		<-s.done

		s.mu.Lock()
		fmt.Fprint(s.Writer, "\r\033[K")
		fmt.Fprintln(s.Writer, msg)
		s.mu.Unlock()
		return
	}

	if msg != "" {
		if s.Interactive {
			fmt.Fprintln(s.Writer, msg)
		} else {
			s.writeLine(msg)
		}
	}
	s.mu.Unlock()
}

// spin renders the animated spinner until the stop channel is closed.
func (s *Spinner) spin() {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := spinnerFrames[s.frame%len(spinnerFrames)]
			s.frame++
			msg := s.msg
			s.mu.Unlock()

			fmt.Fprintf(s.Writer, "\r%s %s", frame, msg)
		}
	}
}

// writeLine writes a single non-interactive timestamped line.
// Must be called with mu held.
func (s *Spinner) writeLine(msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(s.Writer, "[%s] %s\n", ts, msg)
}
