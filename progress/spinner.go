package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var spinnerParts = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates next to a message and, after the first second, shows
// how long it has been running. Its frame is derived from the elapsed time
// so it needs no goroutine of its own.
type Spinner struct {
	mu      sync.Mutex
	message string

	parts []string

	started time.Time
	stopped time.Time

	now func() time.Time
}

func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		parts:   spinnerParts,
		started: time.Now(),
		now:     time.Now,
	}
}

func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	if message := strings.TrimSpace(s.message); len(message) > 0 {
		sb.WriteString(message)
		sb.WriteString(" ")
	}

	end := s.stopped
	if end.IsZero() {
		end = s.now()
		elapsed := end.Sub(s.started)
		sb.WriteString(s.parts[int(elapsed/(100*time.Millisecond))%len(s.parts)])
		sb.WriteString(" ")
	}

	if elapsed := end.Sub(s.started); elapsed >= time.Second {
		fmt.Fprintf(&sb, "%ds", int(elapsed.Seconds()))
	}

	return strings.TrimRight(sb.String(), " ")
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.IsZero() {
		s.stopped = s.now()
	}
}
