package dispatch

import (
	"fmt"
	"sync"
	"time"
)

const (
	// maxStatusMessages bounds the status log; oldest entries are evicted.
	maxStatusMessages = 50
	// renderedStatusMessages is how many of the newest entries Snapshot
	// exposes for rendering.
	renderedStatusMessages = 20

	// DefaultMaxOutputLines bounds the live output buffer.
	DefaultMaxOutputLines = 1000
)

// State is the UI-facing view of a run: bounded status log, current phase,
// and the live output buffer of the command in flight. Only the dispatcher's
// consumer goroutine mutates it; readers take a Snapshot.
type State struct {
	mu sync.Mutex

	messages    []string
	phaseLabel  string
	phasePct    int
	output      []string
	maxOutput   int
	command     string
	running     bool
	now         func() time.Time
}

// Snapshot is an immutable copy of the state for rendering or serving.
type Snapshot struct {
	Messages     []string `json:"messages"`
	PhaseLabel   string   `json:"phase"`
	PhasePercent int      `json:"phase_percent"`
	Output       []string `json:"output"`
	Command      string   `json:"command"`
	Running      bool     `json:"running"`
}

// NewState creates a State with the given output buffer cap.
// A cap <= 0 selects DefaultMaxOutputLines.
func NewState(maxOutputLines int) *State {
	if maxOutputLines <= 0 {
		maxOutputLines = DefaultMaxOutputLines
	}
	return &State{
		maxOutput: maxOutputLines,
		now:       time.Now,
	}
}

func severityIcon(sev Severity) string {
	switch sev {
	case SeveritySuccess:
		return "✓"
	case SeverityWarning:
		return "⚠"
	case SeverityError:
		return "✗"
	default:
		return "ℹ"
	}
}

func (s *State) addMessage(text string, sev Severity) {
	ts := s.now().Format("15:04:05")
	formatted := fmt.Sprintf("[%s] %s %s", ts, severityIcon(sev), text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, formatted)
	if len(s.messages) > maxStatusMessages {
		s.messages = s.messages[len(s.messages)-maxStatusMessages:]
	}
}

func (s *State) setPhase(label string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phaseLabel = label
	s.phasePct = pct
}

func (s *State) startCommand(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.command = command
	s.running = true
	s.output = s.output[:0]
}

func (s *State) addOutput(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.output = append(s.output, line)
	if len(s.output) > s.maxOutput {
		s.output = s.output[len(s.output)-s.maxOutput:]
	}
}

func (s *State) finishCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Snapshot returns a copy of the current state. The message slice holds only
// the newest renderedStatusMessages entries, oldest first.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if len(msgs) > renderedStatusMessages {
		msgs = msgs[len(msgs)-renderedStatusMessages:]
	}

	snap := Snapshot{
		Messages:     append([]string(nil), msgs...),
		PhaseLabel:   s.phaseLabel,
		PhasePercent: s.phasePct,
		Output:       append([]string(nil), s.output...),
		Command:      s.command,
		Running:      s.running,
	}
	return snap
}

// MessageCount reports how many status messages are retained.
func (s *State) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// AllMessages returns every retained status message, oldest first.
func (s *State) AllMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}
