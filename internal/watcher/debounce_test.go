package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Debouncer:
// - A scheduled function runs after its delay
// - Rapid rescheduling coalesces into a single run of the last function
// - Different keys do not interfere
// - Cancel prevents a pending run
// - Stop cancels everything and rejects new work

func TestDebouncer_RunsAfterDelay(t *testing.T) {
	t.Parallel()

	d := NewDebouncer()
	defer d.Stop()

	done := make(chan struct{})
	d.Schedule("k", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled function never ran")
	}
}

func TestDebouncer_CoalescesRapidEvents(t *testing.T) {
	t.Parallel()

	d := NewDebouncer()
	defer d.Stop()

	var runs atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 10; i++ {
		n := int32(i)
		d.Schedule("k", 50*time.Millisecond, func() {
			runs.Add(1)
			last.Store(n)
		})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "ten rapid schedules must fire once")
	assert.Equal(t, int32(10), last.Load(), "the last scheduled function wins")
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	d := NewDebouncer()
	defer d.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	d.Schedule("a", 10*time.Millisecond, wg.Done)
	d.Schedule("b", 10*time.Millisecond, wg.Done)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("both keys should have fired")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	t.Parallel()

	d := NewDebouncer()
	defer d.Stop()

	var runs atomic.Int32
	d.Schedule("k", 30*time.Millisecond, func() { runs.Add(1) })
	require.True(t, d.Pending("k"))
	require.True(t, d.Cancel("k"))
	assert.False(t, d.Pending("k"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	assert.False(t, d.Cancel("k"), "nothing left to cancel")
}

func TestDebouncer_StopRejectsNewWork(t *testing.T) {
	t.Parallel()

	d := NewDebouncer()

	var runs atomic.Int32
	d.Schedule("k", 30*time.Millisecond, func() { runs.Add(1) })
	d.Stop()
	d.Schedule("k2", time.Millisecond, func() { runs.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}
