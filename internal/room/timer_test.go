package room

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/stopgame-client/internal/entity"
)

func activeRound(id string, seconds int) *entity.Round {
	return &entity.Round{ID: id, Letter: "B", IsActive: true, TimeRemainingSeconds: seconds}
}

func TestRoundTimer_Countdown(t *testing.T) {
	t.Run("Ticks down once per second from the server hint", func(t *testing.T) {
		// Given: a timer observing a fresh 3 second round
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 3))
		clock.BlockUntil(1)

		// When: one second passes
		clock.Advance(time.Second)

		// Then: the countdown decrements
		require.Eventually(t, func() bool { return timer.Remaining() == 2 },
			2*time.Second, time.Millisecond)
	})

	t.Run("Stops at zero and never goes negative", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 2))
		clock.BlockUntil(1)

		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return timer.Remaining() == 1 },
			2*time.Second, time.Millisecond)

		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return timer.Remaining() == 0 },
			2*time.Second, time.Millisecond)

		// When: more time passes with no new round
		clock.Advance(5 * time.Second)

		// Then: the countdown stays at zero
		assert.Equal(t, 0, timer.Remaining())
	})

	t.Run("Reports each decrement through the tick callback", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		ticks := make(chan int, 8)
		timer := NewRoundTimer(testLogger(), clock, func(remaining int) { ticks <- remaining })
		defer timer.Stop()

		timer.Observe(activeRound("r1", 2))
		clock.BlockUntil(1)

		clock.Advance(time.Second)
		assert.Equal(t, 1, <-ticks)

		clock.Advance(time.Second)
		assert.Equal(t, 0, <-ticks)
	})
}

func TestRoundTimer_Observe(t *testing.T) {
	t.Run("The same round observed again does not reset the countdown", func(t *testing.T) {
		// Given: a running countdown that has already ticked
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 60))
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return timer.Remaining() == 59 },
			2*time.Second, time.Millisecond)

		// When: a broadcast repeats the same round with a fresher hint
		timer.Observe(activeRound("r1", 55))

		// Then: the local tick is left alone
		assert.Equal(t, 59, timer.Remaining())
	})

	t.Run("A new round id resets the countdown to the new hint", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 60))
		timer.Observe(activeRound("r2", 45))

		assert.Equal(t, 45, timer.Remaining())
	})

	t.Run("A flipped active flag halts the countdown", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 60))
		clock.BlockUntil(1)

		stopped := activeRound("r1", 40)
		stopped.IsActive = false
		timer.Observe(stopped)

		// Then: the frozen value is the server's hint, not a local guess
		assert.Equal(t, 40, timer.Remaining())
	})

	t.Run("Observing no round clears the timer", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		timer := NewRoundTimer(testLogger(), clock, nil)
		defer timer.Stop()

		timer.Observe(activeRound("r1", 60))
		timer.Observe(nil)

		assert.Equal(t, 0, timer.Remaining())
	})
}
