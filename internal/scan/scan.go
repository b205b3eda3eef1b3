// Package scan orchestrates a full engagement against one domain: the
// reconnaissance, scanning, and enumeration phases, each a sequence of
// external tools whose commands and output land in markdown artifacts.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/saddatahmad19/deepdomain/internal/bridge"
	"github.com/saddatahmad19/deepdomain/internal/config"
	"github.com/saddatahmad19/deepdomain/internal/dispatch"
	"github.com/saddatahmad19/deepdomain/internal/history"
	"github.com/saddatahmad19/deepdomain/internal/log"
	"github.com/saddatahmad19/deepdomain/internal/report"
	"github.com/saddatahmad19/deepdomain/internal/runner"
	"github.com/saddatahmad19/deepdomain/internal/workspace"
)

// recordFile collects every command of the run in one place, alongside the
// per-phase artifacts.
const recordFile = "record.md"

var ipv4Pattern = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,3}){3})`)

// Orchestrator drives the scan phases for a single run.
type Orchestrator struct {
	domain  string
	mode    string
	profile config.ModeConfig
	ws      *workspace.Manager
	bridge  *bridge.Bridge
	journal *history.Journal // nil disables journaling
	runID   string
	logger  *slog.Logger
}

// New creates an Orchestrator. journal may be nil.
func New(domain, mode string, profile config.ModeConfig, ws *workspace.Manager, br *bridge.Bridge, journal *history.Journal, runID string) *Orchestrator {
	return &Orchestrator{
		domain:  domain,
		mode:    mode,
		profile: profile,
		ws:      ws,
		bridge:  br,
		journal: journal,
		runID:   runID,
		logger:  log.WithComponent("scan").With("domain", domain, "mode", mode),
	}
}

// Run executes all phases in order. A failing phase is reported and the next
// phase still runs; only context cancellation aborts the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.bridge.Phase("Initializing", 10)
	o.bridge.Status("DeepDomain scan starting...", dispatch.SeverityInfo)

	if err := o.prepareRecord(); err != nil {
		return fmt.Errorf("prepare run record: %w", err)
	}
	o.bridge.Status("Workspace initialized", dispatch.SeveritySuccess)
	o.bridge.Phase("Ready to begin", 20)

	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Reconnaissance", o.runRecon},
		{"Scanning", o.runScanning},
		{"Enumeration", o.runEnumeration},
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := phase.fn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("phase failed", "phase", phase.name, "error", err)
			o.bridge.Status(fmt.Sprintf("%s phase failed: %v", phase.name, err), dispatch.SeverityError)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	o.bridge.Phase("Complete", 100)
	o.bridge.Status("DeepDomain scan complete!", dispatch.SeveritySuccess)
	o.bridge.Status(fmt.Sprintf("Results saved to: %s", o.ws.Base()), dispatch.SeverityInfo)
	return nil
}

func (o *Orchestrator) prepareRecord() error {
	if _, err := o.ws.CreateFile(recordFile, ""); err != nil {
		return err
	}
	return o.ws.EnsureTitle(recordFile, "Record")
}

// ensureArtifact creates dir/name.md with its title header and returns the
// artifact's path relative to the workspace base.
func (o *Orchestrator) ensureArtifact(dir, name, title string) (string, error) {
	if _, err := o.ws.EnsureDir(dir); err != nil {
		return "", err
	}
	rel, err := o.ws.CreateFile(name, dir)
	if err != nil {
		return "", err
	}
	if err := o.ws.EnsureTitle(rel, title); err != nil {
		return "", err
	}
	return rel, nil
}

// exec runs command in the workspace-relative directory workdirRel (empty
// means the base), records it in the named artifacts plus record.md, streams
// output to the UI, and journals the result.
func (o *Orchestrator) exec(ctx context.Context, phase, command, workdirRel string, artifacts ...string) runner.Result {
	block := report.New().Command(command).NewLine().String()
	for _, rel := range append(artifacts, recordFile) {
		if err := o.ws.Append(rel, block); err != nil {
			o.logger.Warn("failed to record command", "artifact", rel, "error", err)
		}
	}

	workdir := o.ws.Base()
	if workdirRel != "" {
		if abs, err := o.ws.EnsureDir(workdirRel); err == nil {
			workdir = abs
		} else {
			o.logger.Warn("failed to prepare workdir", "dir", workdirRel, "error", err)
		}
	}

	started := time.Now()
	res := o.bridge.RunStreaming(ctx, command, workdir, 0)
	o.journalCommand(ctx, phase, command, workdir, started, res)
	return res
}

func (o *Orchestrator) journalCommand(ctx context.Context, phase, command, workdir string, started time.Time, res runner.Result) {
	if o.journal == nil {
		return
	}
	err := o.journal.RecordCommand(ctx, history.CommandRecord{
		RunID:    o.runID,
		Phase:    phase,
		Command:  command,
		Workdir:  workdir,
		Started:  started,
		Finished: time.Now(),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
	})
	if err != nil {
		o.logger.Warn("failed to journal command", "command", command, "error", err)
	}
}

// appendResult stores a result's output in the artifact, preferring stdout.
func (o *Orchestrator) appendResult(rel string, res runner.Result) {
	text := res.Stdout
	if text == "" {
		text = res.Stderr
	}
	o.appendOutput(rel, text)
}

// appendFileOutput stores the contents of the workspace file at srcRel in
// the artifact, or an empty block when it does not exist.
func (o *Orchestrator) appendFileOutput(rel, srcRel string) {
	content, err := o.ws.ReadFile(srcRel)
	if err != nil {
		o.logger.Warn("failed to read tool output", "file", srcRel, "error", err)
		content = ""
	}
	o.appendOutput(rel, content)
}

func (o *Orchestrator) appendOutput(rel, text string) {
	block := report.New().CommandOutput(text).NewLine().String()
	if err := o.ws.Append(rel, block); err != nil {
		o.logger.Warn("failed to record output", "artifact", rel, "error", err)
	}
}

// extractIP pulls the first IPv4 address out of host(1) output.
func extractIP(hostOutput string) string {
	return ipv4Pattern.FindString(hostOutput)
}
