package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/stopgame-client/internal/entity"
)

// RoundTimer - a purely local countdown derived from the server's
// remaining-seconds hint at round start. It ticks down once per second and
// stops at zero; it is presentation state only and never decides whether
// the round has actually ended - only the server does.
type RoundTimer struct {
	logger *slog.Logger
	clock  clockwork.Clock
	onTick func(remaining int)

	mu        sync.Mutex
	roundID   string
	active    bool
	remaining int
	stopCh    chan struct{}
}

// NewRoundTimer - onTick may be nil; when set it fires after every decrement
// with the new remaining value.
func NewRoundTimer(logger *slog.Logger, clock clockwork.Clock, onTick func(remaining int)) *RoundTimer {
	return &RoundTimer{
		logger: logger.With("component", "round-timer"),
		clock:  clock,
		onTick: onTick,
	}
}

// Observe - feed the timer the current round from an accepted snapshot.
// The countdown resets only when the round identity changes or its active
// flag flips; the same round observed again leaves the local tick alone.
func (that *RoundTimer) Observe(round *entity.Round) {
	that.mu.Lock()

	if round == nil {
		that.roundID = ""
		that.active = false
		that.remaining = 0
		that.stopLocked()
		that.mu.Unlock()

		return
	}

	if round.ID == that.roundID && round.IsActive == that.active {
		that.mu.Unlock()
		return
	}

	that.roundID = round.ID
	that.active = round.IsActive
	that.remaining = round.TimeRemainingSeconds
	that.stopLocked()

	if !round.IsActive {
		that.mu.Unlock()
		return
	}

	stopCh := make(chan struct{})
	that.stopCh = stopCh
	that.mu.Unlock()

	go that.run(stopCh)

	that.logger.Debug("countdown reset", "round", round.ID, "seconds", round.TimeRemainingSeconds)
}

func (that *RoundTimer) Remaining() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.remaining
}

// Stop - halts any running countdown; used on teardown.
func (that *RoundTimer) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopLocked()
}

func (that *RoundTimer) stopLocked() {
	if that.stopCh != nil {
		close(that.stopCh)
		that.stopCh = nil
	}
}

func (that *RoundTimer) run(stopCh chan struct{}) {
	ticker := that.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			that.mu.Lock()
			if that.remaining > 0 {
				that.remaining--
			}
			remaining := that.remaining
			that.mu.Unlock()

			if that.onTick != nil {
				that.onTick(remaining)
			}

			if remaining == 0 {
				return
			}
		}
	}
}
