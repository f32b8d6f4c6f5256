package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events per key: each Schedule call for a key
// replaces whatever was pending for it, so only the last scheduled function
// runs, after its delay with no further events.
//
// A generation counter per key makes late timer firings harmless: a timer
// that races with its own replacement finds a newer generation and does
// nothing.
type Debouncer struct {
	mu      sync.Mutex
	stopped bool
	timers  map[string]*time.Timer
	gens    map[string]uint64
}

// NewDebouncer creates an empty debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

// Schedule runs fn after delay unless another Schedule or Cancel for the
// same key happens first. fn runs on the timer goroutine.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.gens[key]++
	gen := d.gens[key]

	d.timers[key] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.stopped || d.gens[key] != gen {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending function for key. Reports whether one was
// pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(d.timers, key)
	d.gens[key]++
	return true
}

// Pending reports whether key has a scheduled function.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Stop cancels everything and rejects further scheduling. Functions already
// past their generation check may still be running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
