package integration

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one callback that runs after
// a quiet period. File watchers use it to turn the several write events of
// one save into a single reload.
//
// All methods are safe for concurrent use. The callback never runs
// concurrently with itself from the same Debouncer.
type Debouncer struct {
	mu       sync.Mutex
	run      sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	pending  bool
	seq      uint64 // invalidates timers that fired after a newer Trigger
	callback func()
}

// NewDebouncer creates a debouncer that runs callback once no Trigger has
// happened for delay.
func NewDebouncer(delay time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
	}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq)
	})
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || d.seq != seq {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.invoke()
}

// Stop drops any pending callback and waits for a running one to return.
// It must not be called from the callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
	d.mu.Unlock()

	d.run.Lock()
	defer d.run.Unlock()
}

func (d *Debouncer) invoke() {
	if d.callback == nil {
		return
	}
	d.run.Lock()
	defer d.run.Unlock()
	d.callback()
}
