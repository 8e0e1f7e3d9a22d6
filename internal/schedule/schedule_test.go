package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)

func waitFor(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	require.Eventually(t, func() bool { return counter.Load() == want },
		time.Second, 5*time.Millisecond, "expected %d calls, got %d", want, counter.Load())
}

func TestAfter_FiresOnceAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := New(clock)

	var calls atomic.Int32
	timer := s.After(time.Minute, func() { calls.Add(1) })

	assert.Equal(t, epoch.Add(time.Minute), timer.Deadline())
	assert.True(t, timer.Active())

	clock.Advance(59 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	clock.Advance(time.Second)
	waitFor(t, &calls, 1)
	assert.False(t, timer.Active())

	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAfter_StopPreventsFire(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := New(clock)

	var calls atomic.Int32
	timer := s.After(time.Second, func() { calls.Add(1) })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop should report inactive")

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestEvery_RearmsFromPreviousDeadline(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	s := New(clock)

	var calls atomic.Int32
	timer := s.Every(10*time.Second, func() { calls.Add(1) })
	defer timer.Stop()

	for i := 1; i <= 3; i++ {
		clock.Advance(10 * time.Second)
		waitFor(t, &calls, int32(i))
		assert.Equal(t, epoch.Add(time.Duration(i+1)*10*time.Second), timer.Deadline())
	}

	timer.Stop()
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEvery_PanicsOnNonPositiveInterval(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	assert.Panics(t, func() { s.Every(0, func() {}) })
}

func TestTimerIDsAreUnique(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	a := s.After(time.Second, func() {})
	b := s.After(time.Second, func() {})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestDeadlineHasNoMonotonicReading(t *testing.T) {
	s := New(clockwork.NewRealClock())
	timer := s.After(time.Hour, func() {})
	defer timer.Stop()

	d := timer.Deadline()
	// Round(0) is a no-op only when the monotonic reading is already gone
	assert.Equal(t, d.String(), d.Round(0).String())
}
