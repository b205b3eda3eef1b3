package runner

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saddatahmad19/deepdomain/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", os.Stderr) // Suppress logs in tests
	os.Exit(m.Run())
}

func TestRun_Echo(t *testing.T) {
	r := New(2)
	res := r.Run(context.Background(), "echo hi", t.TempDir(), Options{})

	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %q)", res.ExitCode, res.Stderr)
	}
	if !strings.Contains(res.Stdout, "hi") {
		t.Errorf("expected stdout to contain %q, got %q", "hi", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := New(2)
	res := r.Run(context.Background(), "exit 7", t.TempDir(), Options{})

	if res.ExitCode != 7 {
		t.Errorf("expected exit 7, got %d", res.ExitCode)
	}
}

func TestRun_StderrCapturedSeparately(t *testing.T) {
	r := New(2)
	res := r.Run(context.Background(), "echo out; echo err >&2", t.TempDir(), Options{})

	if !strings.Contains(res.Stdout, "out") {
		t.Errorf("stdout missing: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "err") {
		t.Errorf("stderr missing: %q", res.Stderr)
	}
	if strings.Contains(res.Stdout, "err") {
		t.Errorf("stderr leaked into stdout: %q", res.Stdout)
	}
}

func TestRun_RespectsWorkdir(t *testing.T) {
	dir := t.TempDir()
	r := New(2)
	res := r.Run(context.Background(), "pwd", dir, Options{})

	if res.ExitCode != 0 {
		t.Fatalf("pwd failed: %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Errorf("expected workdir %q in output %q", dir, res.Stdout)
	}
}

func TestRun_OutputCallbacksSeeEachLine(t *testing.T) {
	r := New(2)

	var mu sync.Mutex
	var lines []string
	res := r.Run(context.Background(), "echo one; echo two; echo three", t.TempDir(), Options{
		OnStdout: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})

	if res.ExitCode != 0 {
		t.Fatalf("exit %d", res.ExitCode)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 3 {
		t.Fatalf("expected 3 callback lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "one" || lines[1] != "two" || lines[2] != "three" {
		t.Errorf("lines out of order: %v", lines)
	}
}

func TestRun_AdmissionCapBoundsParallelism(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	r := New(2)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(context.Background(), "sleep 1", "", Options{})
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	// ceil(5/2) batches of ~1s each. Well under the serial 5s, well over
	// the unbounded 1s.
	if elapsed < 2500*time.Millisecond {
		t.Errorf("batch finished too fast for cap 2: %v", elapsed)
	}
	if elapsed > 4500*time.Millisecond {
		t.Errorf("batch too slow, cap appears serial: %v", elapsed)
	}
}

func TestRun_TimeoutReturnsSentinelAndPartialOutput(t *testing.T) {
	r := New(2)
	start := time.Now()

	res := r.Run(context.Background(), "echo early; sleep 30", t.TempDir(), Options{
		Timeout: 500 * time.Millisecond,
	})

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("run did not return promptly after timeout: %v", elapsed)
	}
	if res.ExitCode != TimeoutExitCode {
		t.Errorf("expected sentinel exit code %d, got %d", TimeoutExitCode, res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "early") {
		t.Errorf("buffered output lost on timeout: %q", res.Stdout)
	}
	if r.Running() != 0 {
		t.Errorf("process still registered after timeout")
	}
}

func TestRun_SpawnFailureReportedViaExitCode(t *testing.T) {
	r := New(2)
	res := r.Run(context.Background(), "echo hi", "/nonexistent/workdir", Options{})

	if res.ExitCode != 1 {
		t.Errorf("expected exit 1 for spawn failure, got %d", res.ExitCode)
	}
	if res.Stderr == "" {
		t.Error("expected error text in stderr slot")
	}
}

func TestStopAll_TerminatesRunningCommand(t *testing.T) {
	r := New(2)

	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), "sleep 30", "", Options{})
	}()

	// Wait until the process is registered.
	deadline := time.Now().Add(2 * time.Second)
	for r.Running() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("process never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	r.StopAll()

	select {
	case res := <-done:
		if res.ExitCode == 0 {
			t.Errorf("expected non-zero exit after SIGTERM, got %d", res.ExitCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after StopAll")
	}

	if r.Running() != 0 {
		t.Errorf("registry not cleared after StopAll")
	}
}

func TestStopAll_TerminatesShellChildren(t *testing.T) {
	r := New(2)

	// The shell forks sleep as a child; only killing the whole process group
	// closes the pipe write ends and lets the line readers reach EOF.
	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), "sleep 15; echo tail", "", Options{})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.Running() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("process never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	start := time.Now()
	r.StopAll()

	select {
	case res := <-done:
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("Run took %v to return after StopAll", elapsed)
		}
		if strings.Contains(res.Stdout, "tail") {
			t.Errorf("command ran to completion despite StopAll: %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run still blocked after StopAll")
	}
}

func TestRun_TimeoutTerminatesShellChildren(t *testing.T) {
	r := New(2)

	start := time.Now()
	res := r.Run(context.Background(), "sleep 15; echo tail", "", Options{
		Timeout: 200 * time.Millisecond,
	})

	if res.ExitCode != TimeoutExitCode {
		t.Fatalf("expected timeout sentinel, got %d", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %v to return on timeout", elapsed)
	}
}

func TestRun_FailureDoesNotAbortSiblings(t *testing.T) {
	r := New(4)

	var wg sync.WaitGroup
	results := make([]Result, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = r.Run(context.Background(), "exit 3", "", Options{})
	}()
	go func() {
		defer wg.Done()
		results[1] = r.Run(context.Background(), "echo ok", "", Options{})
	}()
	wg.Wait()

	if results[0].ExitCode != 3 {
		t.Errorf("failing sibling: got exit %d", results[0].ExitCode)
	}
	if results[1].ExitCode != 0 || !strings.Contains(results[1].Stdout, "ok") {
		t.Errorf("healthy sibling affected: %+v", results[1])
	}
}
