// Package bridge adapts synchronous worker-side calls ("run this command and
// stream its output") into events the update dispatcher consumes. The owning
// context is passed explicitly at construction, so posting is always a plain
// enqueue — workers never block on UI processing.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saddatahmad19/deepdomain/internal/dispatch"
	"github.com/saddatahmad19/deepdomain/internal/log"
	"github.com/saddatahmad19/deepdomain/internal/runner"
)

//go:generate mockgen -destination=mocks/mock_poster.go -package=mocks github.com/saddatahmad19/deepdomain/internal/bridge EventPoster

// EventPoster is the dispatcher-side contract: accept an event without
// blocking. *dispatch.Dispatcher satisfies it.
type EventPoster interface {
	Post(ev dispatch.Event)
}

// DefaultWallCap bounds a streamed command's total wall-clock time when the
// caller supplies no timeout, so one runaway tool cannot starve the pipeline.
const DefaultWallCap = 300 * time.Second

// Bridge posts scan progress to the dispatcher and runs commands with their
// output streamed line-by-line into the UI.
type Bridge struct {
	poster  EventPoster
	runner  *runner.Runner
	wallCap time.Duration
	logger  *slog.Logger
}

// New creates a Bridge posting to poster and executing through r.
// wallCap <= 0 selects DefaultWallCap.
func New(poster EventPoster, r *runner.Runner, wallCap time.Duration) *Bridge {
	if wallCap <= 0 {
		wallCap = DefaultWallCap
	}
	return &Bridge{
		poster:  poster,
		runner:  r,
		wallCap: wallCap,
		logger:  log.WithComponent("bridge"),
	}
}

// Status posts a status message with the given severity.
func (b *Bridge) Status(text string, sev dispatch.Severity) {
	b.poster.Post(dispatch.StatusMessage{Text: text, Severity: sev})
}

// Phase posts a phase label and progress percentage.
func (b *Bridge) Phase(label string, percent int) {
	b.poster.Post(dispatch.PhaseUpdate{Label: label, Percent: percent})
}

// RunStreaming executes command in workdir, streaming every output line into
// the UI. timeout <= 0 falls back to the bridge's wall cap. Exactly one
// CommandFinished event is posted per call, on every path: normal exit,
// timeout, or spawn failure.
func (b *Bridge) RunStreaming(ctx context.Context, command, workdir string, timeout time.Duration) runner.Result {
	if timeout <= 0 {
		timeout = b.wallCap
	}

	b.poster.Post(dispatch.CommandStarted{Command: command})
	defer b.poster.Post(dispatch.CommandFinished{})

	res := b.runner.Run(ctx, command, workdir, runner.Options{
		OnStdout: func(line string) {
			b.poster.Post(dispatch.CommandOutput{Line: line})
		},
		OnStderr: func(line string) {
			b.poster.Post(dispatch.CommandOutput{Line: line})
		},
		Timeout: timeout,
	})

	switch {
	case res.ExitCode == runner.TimeoutExitCode:
		b.logger.Warn("command timed out", "command", command, "timeout", timeout)
		b.Status(fmt.Sprintf("Command timed out after %s: %s", timeout, command), dispatch.SeverityError)
	case res.ExitCode != 0:
		b.logger.Warn("command failed", "command", command, "exit_code", res.ExitCode)
		b.Status(fmt.Sprintf("Command exited %d: %s", res.ExitCode, command), dispatch.SeverityError)
	}

	return res
}
