package dispatch

// Severity classifies a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is an immutable description of a UI-state change. Events are queued
// in arrival order and applied by the dispatcher's single consumer.
type Event interface {
	isEvent()
}

// StatusMessage appends a line to the status log.
type StatusMessage struct {
	Text     string
	Severity Severity
}

// PhaseUpdate replaces the current phase label and progress percentage.
type PhaseUpdate struct {
	Label   string
	Percent int
}

// CommandStarted marks a command as running and clears the output buffer.
type CommandStarted struct {
	Command string
}

// CommandOutput appends one line to the live output buffer.
type CommandOutput struct {
	Line string
}

// CommandFinished marks the current command as done.
type CommandFinished struct{}

func (StatusMessage) isEvent()   {}
func (PhaseUpdate) isEvent()     {}
func (CommandStarted) isEvent()  {}
func (CommandOutput) isEvent()   {}
func (CommandFinished) isEvent() {}
