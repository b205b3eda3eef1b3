package dispatch

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saddatahmad19/deepdomain/internal/events"
	"github.com/saddatahmad19/deepdomain/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", os.Stderr)
	os.Exit(m.Run())
}

func TestDispatcher_AppliesEventsInOrder(t *testing.T) {
	d := New(NewState(0), nil)
	d.Start()

	d.Enqueue(CommandStarted{Command: "echo hi"})
	d.Enqueue(CommandOutput{Line: "one"})
	d.Enqueue(CommandOutput{Line: "two"})
	d.Enqueue(CommandFinished{})
	d.Stop()

	snap := d.State().Snapshot()
	if snap.Command != "echo hi" {
		t.Errorf("command = %q", snap.Command)
	}
	if snap.Running {
		t.Error("expected running=false after CommandFinished")
	}
	if len(snap.Output) != 2 || snap.Output[0] != "one" || snap.Output[1] != "two" {
		t.Errorf("output = %v", snap.Output)
	}
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	d := New(NewState(20000), nil)
	d.Start()

	d.Enqueue(CommandStarted{Command: "burst"})
	const n = 10000
	for i := 0; i < n; i++ {
		d.Enqueue(CommandOutput{Line: fmt.Sprintf("line-%d", i)})
	}
	d.Stop()

	if depth := d.QueueDepth(); depth != 0 {
		t.Errorf("queue not drained: %d events left", depth)
	}
	snap := d.State().Snapshot()
	if len(snap.Output) != n {
		t.Errorf("expected %d output lines applied, got %d", n, len(snap.Output))
	}
}

func TestDispatcher_StartStopIdempotent(t *testing.T) {
	d := New(NewState(0), nil)
	d.Start()
	d.Start()
	d.Stop()
	d.Stop()
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	d := New(NewState(0), nil)
	// Consumer not started: producers must still not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5000; i++ {
			d.Enqueue(StatusMessage{Text: "x", Severity: SeverityInfo})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked without a running consumer")
	}
}

func TestDispatcher_ConcurrentProducers(t *testing.T) {
	d := New(NewState(0), nil)
	d.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Enqueue(StatusMessage{Text: fmt.Sprintf("p%d-%d", n, j), Severity: SeverityInfo})
			}
		}(i)
	}
	wg.Wait()
	d.Stop()

	// 800 inserts against a cap of 50: exactly the newest 50 survive.
	if got := d.State().MessageCount(); got != maxStatusMessages {
		t.Errorf("expected %d retained messages, got %d", maxStatusMessages, got)
	}
}

func TestDispatcher_PublishesToHub(t *testing.T) {
	hub := events.NewHub(32)
	d := New(NewState(0), hub)

	ch, cancel := hub.Subscribe()
	defer cancel()

	d.Start()
	d.Enqueue(PhaseUpdate{Label: "Recon", Percent: 40})
	d.Stop()

	select {
	case ev := <-ch:
		if ev.Type != events.TypePhaseUpdate {
			t.Errorf("event type = %q", ev.Type)
		}
		if !strings.Contains(string(ev.Data), "Recon") {
			t.Errorf("payload = %s", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached hub subscriber")
	}
}

func TestState_MessageLogCapRetainsNewestInOrder(t *testing.T) {
	s := NewState(0)
	for i := 0; i < 200; i++ {
		s.addMessage(fmt.Sprintf("msg-%03d", i), SeverityInfo)
	}

	all := s.AllMessages()
	if len(all) != maxStatusMessages {
		t.Fatalf("expected %d messages, got %d", maxStatusMessages, len(all))
	}
	if !strings.Contains(all[0], "msg-150") {
		t.Errorf("oldest retained = %q, want msg-150", all[0])
	}
	if !strings.Contains(all[len(all)-1], "msg-199") {
		t.Errorf("newest retained = %q, want msg-199", all[len(all)-1])
	}
}

func TestState_SnapshotRendersLast20(t *testing.T) {
	s := NewState(0)
	for i := 0; i < 40; i++ {
		s.addMessage(fmt.Sprintf("msg-%02d", i), SeverityInfo)
	}

	snap := s.Snapshot()
	if len(snap.Messages) != renderedStatusMessages {
		t.Fatalf("expected %d rendered messages, got %d", renderedStatusMessages, len(snap.Messages))
	}
	if !strings.Contains(snap.Messages[0], "msg-20") {
		t.Errorf("first rendered = %q", snap.Messages[0])
	}
}

func TestState_OutputBufferEvictsOldest(t *testing.T) {
	s := NewState(100)
	s.startCommand("noisy")
	for i := 0; i < 250; i++ {
		s.addOutput(fmt.Sprintf("line-%03d", i))
	}

	snap := s.Snapshot()
	if len(snap.Output) != 100 {
		t.Fatalf("expected 100 lines, got %d", len(snap.Output))
	}
	if snap.Output[0] != "line-150" {
		t.Errorf("oldest retained line = %q", snap.Output[0])
	}
}

func TestState_OutputIgnoredWhenNoCommandRunning(t *testing.T) {
	s := NewState(0)
	s.addOutput("stray")
	if snap := s.Snapshot(); len(snap.Output) != 0 {
		t.Errorf("output accepted without a running command: %v", snap.Output)
	}
}

func TestState_PhasePercentClamped(t *testing.T) {
	s := NewState(0)
	s.setPhase("over", 150)
	if snap := s.Snapshot(); snap.PhasePercent != 100 {
		t.Errorf("percent = %d, want 100", snap.PhasePercent)
	}
	s.setPhase("under", -5)
	if snap := s.Snapshot(); snap.PhasePercent != 0 {
		t.Errorf("percent = %d, want 0", snap.PhasePercent)
	}
}
