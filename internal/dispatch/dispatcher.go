// Package dispatch serializes UI-affecting updates. Producers on any
// goroutine enqueue events; a single consumer applies them to the bounded
// State and fans them out to the event hub, so only one goroutine ever
// mutates UI state. The consumer touches memory only — file and network I/O
// stay on other paths so a slow disk cannot stall status rendering.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/saddatahmad19/deepdomain/internal/events"
	"github.com/saddatahmad19/deepdomain/internal/log"
)

// pollInterval is how long the consumer waits for work before rechecking
// the stop flag.
const pollInterval = 100 * time.Millisecond

// Dispatcher owns the update queue and its single consumer goroutine.
type Dispatcher struct {
	state  *State
	hub    *events.Hub
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Event
	started bool
	stopped bool

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New creates a Dispatcher applying events to state. hub may be nil; when
// set, every applied event is also published for TUI and API subscribers.
func New(state *State, hub *events.Hub) *Dispatcher {
	return &Dispatcher{
		state:  state,
		hub:    hub,
		logger: log.WithComponent("dispatch"),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// State returns the UI state the dispatcher applies events to.
func (d *Dispatcher) State() *State {
	return d.state
}

// Enqueue appends ev to the update queue. Never blocks; safe to call from
// any goroutine, including the consumer itself.
func (d *Dispatcher) Enqueue(ev Event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Post satisfies the bridge's poster contract; identical to Enqueue.
func (d *Dispatcher) Post(ev Event) {
	d.Enqueue(ev)
}

// Start launches the consumer goroutine. Idempotent.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	go d.consume()
	d.logger.Info("update dispatcher started")
}

// Stop cancels the consumer and waits for it to exit. Any queued events are
// drained before the consumer terminates, so no event is in flight once Stop
// returns. Idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stop)
	<-d.done
	d.logger.Info("update dispatcher stopped")
}

func (d *Dispatcher) consume() {
	defer close(d.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if ev, ok := d.next(); ok {
			d.apply(ev)
			continue
		}

		select {
		case <-d.stop:
			// Drain whatever arrived before Stop.
			for {
				ev, ok := d.next()
				if !ok {
					return
				}
				d.apply(ev)
			}
		case <-d.notify:
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) next() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	ev := d.queue[0]
	d.queue = d.queue[1:]
	return ev, true
}

// apply updates state and publishes to the hub. A failure applying one event
// must never halt future updates, so panics are logged and swallowed here.
func (d *Dispatcher) apply(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("failed to apply update event", "panic", r)
		}
	}()

	switch e := ev.(type) {
	case StatusMessage:
		d.state.addMessage(e.Text, e.Severity)
		d.publish(events.TypeStatusMessage, e)
	case PhaseUpdate:
		d.state.setPhase(e.Label, e.Percent)
		d.publish(events.TypePhaseUpdate, e)
	case CommandStarted:
		d.state.startCommand(e.Command)
		d.publish(events.TypeCommandStarted, e)
	case CommandOutput:
		d.state.addOutput(e.Line)
		d.publish(events.TypeCommandOutput, e)
	case CommandFinished:
		d.state.finishCommand()
		d.publish(events.TypeCommandFinished, e)
	default:
		d.logger.Warn("unknown update event", "event", ev)
	}
}

func (d *Dispatcher) publish(eventType events.Type, payload any) {
	if d.hub == nil {
		return
	}
	d.hub.Publish(eventType, payload)
}

// QueueDepth reports how many events are waiting. Used by the status API.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
