package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, msg)
}

func TestSchedule_FiresOnce(t *testing.T) {
	d := New()
	defer d.Stop()

	var fired atomic.Int32
	d.Schedule("a", 10*time.Millisecond, func() { fired.Add(1) })

	waitFor(t, func() bool { return fired.Load() == 1 }, "timer did not fire")
	assert.False(t, d.Pending("a"))

	// Nothing else fires later.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestSchedule_CoalescesRepeats(t *testing.T) {
	d := New()
	defer d.Stop()

	var fired atomic.Int32
	for i := 0; i < 10; i++ {
		d.Schedule("a", 30*time.Millisecond, func() { fired.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, func() bool { return fired.Load() >= 1 }, "timer did not fire")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "rapid reschedules should collapse to one firing")
}

func TestSchedule_LastCallbackWins(t *testing.T) {
	d := New()
	defer d.Stop()

	var got atomic.Int32
	d.Schedule("a", 20*time.Millisecond, func() { got.Store(1) })
	d.Schedule("a", 20*time.Millisecond, func() { got.Store(2) })

	waitFor(t, func() bool { return got.Load() != 0 }, "timer did not fire")
	assert.Equal(t, int32(2), got.Load())
}

func TestSchedule_KeysAreIndependent(t *testing.T) {
	d := New()
	defer d.Stop()

	var a, b atomic.Int32
	d.Schedule("a", 10*time.Millisecond, func() { a.Add(1) })
	d.Schedule("b", 10*time.Millisecond, func() { b.Add(1) })
	// Rescheduling b must not disturb a's pending timer.
	d.Schedule("b", 10*time.Millisecond, func() { b.Add(1) })

	waitFor(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, "both timers should fire once")
}

func TestCancel(t *testing.T) {
	d := New()
	defer d.Stop()

	var fired atomic.Int32
	d.Schedule("a", 20*time.Millisecond, func() { fired.Add(1) })
	d.Cancel("a")

	assert.False(t, d.Pending("a"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestCancel_UnknownKeyIsNoop(t *testing.T) {
	d := New()
	d.Cancel("never-scheduled")
	d.Cancel("never-scheduled")
}

func TestStop_CancelsAll(t *testing.T) {
	d := New()

	var fired atomic.Int32
	d.Schedule("a", 20*time.Millisecond, func() { fired.Add(1) })
	d.Schedule("b", 20*time.Millisecond, func() { fired.Add(1) })
	require.Equal(t, 2, d.Len())

	d.Stop()
	assert.Equal(t, 0, d.Len())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
