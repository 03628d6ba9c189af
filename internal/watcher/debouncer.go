package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer batches rapid filesystem events so a burst of saves on the same
// path produces one sync, not one per write. Multiple events for the same
// path observed within a single debounce window collapse to the latest
// action: a CREATE immediately followed by a DELETE still emits only the
// DELETE, and a DELETE immediately followed by a CREATE (editors that
// replace-by-rename) emits only the CREATE. Distinct paths are never merged.
type Debouncer struct {
	window  time.Duration
	pending map[string]FileEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that flushes window after the last event
// for any still-pending path.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records event, replacing whatever was previously pending for its path,
// and (re)starts the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[event.Path] = event
	d.scheduleFlush()
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits one batch containing the latest action for every path that
// received an event since the previous flush.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	d.pending = make(map[string]FileEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop flushes nothing further and closes Output. Safe to call more than
// once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
