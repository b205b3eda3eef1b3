// Package runner executes shell commands with a system-wide concurrency cap.
// Stdout and stderr are read by independent goroutines so neither stream can
// backpressure the other, and each completed line is forwarded to an optional
// callback before the command finishes.
package runner

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/saddatahmad19/deepdomain/internal/log"
)

const (
	// DefaultMaxConcurrent is the default admission cap for simultaneous
	// external commands.
	DefaultMaxConcurrent = 8

	// TimeoutExitCode is reported when a command is terminated on timeout.
	// Real process exit statuses are 0-255, so -1 never collides with one.
	TimeoutExitCode = -1

	// maxLineBytes caps the length of a single captured output line.
	maxLineBytes = 1024 * 1024
)

// Result holds the outcome of one command invocation. Launch failures are
// reported here (ExitCode 1, error text in Stderr), never as Go errors, so
// callers must check ExitCode rather than rely on returned errors.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Options tunes a single Run call. All fields are optional.
type Options struct {
	// OnStdout is invoked for every completed stdout line.
	OnStdout func(line string)
	// OnStderr is invoked for every completed stderr line.
	OnStderr func(line string)
	// Timeout bounds total wall-clock time. Zero means no limit.
	Timeout time.Duration
}

// Runner runs shell commands with bounded concurrency and tracks every live
// process so StopAll can signal them during shutdown.
type Runner struct {
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu      sync.Mutex
	procs   map[int64]*os.Process
	counter int64
}

// New creates a Runner admitting at most maxConcurrent commands at a time.
// A cap <= 0 selects DefaultMaxConcurrent.
func New(maxConcurrent int64) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Runner{
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: log.WithComponent("runner"),
		procs:  make(map[int64]*os.Process),
	}
}

// Run executes command via the system shell in workdir and blocks until the
// process exits or the timeout expires. Callers beyond the admission cap
// block until a slot frees.
func (r *Runner) Run(ctx context.Context, command, workdir string, opts Options) Result {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{Stderr: err.Error(), ExitCode: 1}
	}
	defer r.sem.Release(1)

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workdir
	// Each command gets its own process group so termination reaches children
	// the shell forks, not just the shell itself. Without this an orphaned
	// child keeps the pipe write ends open and the line readers never see EOF.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Stderr: err.Error(), ExitCode: 1}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{Stderr: err.Error(), ExitCode: 1}
	}

	r.logger.Debug("starting command", "command", command, "workdir", workdir)

	if err := cmd.Start(); err != nil {
		return Result{Stderr: err.Error(), ExitCode: 1}
	}

	// Register before any stream reading begins so StopAll can always
	// reach a live process.
	id := r.register(cmd.Process)

	stdout := &lineBuffer{}
	stderr := &lineBuffer{}

	var readers sync.WaitGroup
	readers.Add(2)
	go readLines(stdoutPipe, stdout, opts.OnStdout, &readers)
	go readLines(stderrPipe, stderr, opts.OnStderr, &readers)

	// Wait must not run before both pipes are drained.
	waitErr := make(chan error, 1)
	go func() {
		readers.Wait()
		waitErr <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-waitErr:
		r.deregister(id)
		return Result{
			Stdout:   stdout.join(),
			Stderr:   stderr.join(),
			ExitCode: exitCode(err),
		}

	case <-timeout:
		r.logger.Warn("command timed out, sending SIGTERM", "command", command, "timeout", opts.Timeout)
		r.deregister(id)
		terminateGroup(cmd.Process)
		// Reap in the background; the caller gets whatever output was
		// collected so far. No SIGKILL escalation.
		go func() { <-waitErr }()
		return Result{
			Stdout:   stdout.join(),
			Stderr:   stderr.join(),
			ExitCode: TimeoutExitCode,
		}
	}
}

// StopAll sends SIGTERM to every registered process and clears the registry.
// Best effort: no escalation to SIGKILL and no wait for exit confirmation.
// Callers needing confirmation must observe Run returning.
func (r *Runner) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, proc := range r.procs {
		terminateGroup(proc)
	}
	r.procs = make(map[int64]*os.Process)
}

// terminateGroup SIGTERMs the process group rooted at proc so the shell and
// every child it forked die together. Falls back to signalling the process
// alone if the group signal fails.
func terminateGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	if err := syscall.Kill(-proc.Pid, syscall.SIGTERM); err != nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
}

// Running reports how many processes are currently registered.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

func (r *Runner) register(proc *os.Process) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	id := r.counter
	r.procs[id] = proc
	return id
}

func (r *Runner) deregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

// lineBuffer accumulates completed lines. It is written by one reader
// goroutine and may be snapshotted by Run on the timeout path, so access is
// mutex-guarded.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuffer) add(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

func (b *lineBuffer) join() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

func readLines(rd io.Reader, buf *lineBuffer, cb func(string), wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		buf.add(line)
		if cb != nil {
			cb(line)
		}
	}
}
