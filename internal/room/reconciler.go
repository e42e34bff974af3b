package room

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/stopgame-client/internal/apperror"
	"github.com/rocketscienceinc/stopgame-client/internal/entity"
)

// Reconciler - the single writer of the room snapshot. It ingests server
// notifications and decides which of them actually replace the held room;
// every consumer re-derives from the latest accepted value.
type Reconciler struct {
	logger *slog.Logger

	mu         sync.RWMutex
	room       *entity.Room
	voteGroups []entity.VoteGroup

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]func(*entity.Room)
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger:    logger.With("component", "reconciler"),
		listeners: make(map[int]func(*entity.Room)),
	}
}

// Snapshot - the last accepted room. Before anything has been accepted the
// room is simply not found yet; that is a loading state, not a failure.
func (that *Reconciler) Snapshot() (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.room == nil {
		return nil, apperror.ErrRoomNotFound
	}

	return that.room, nil
}

func (that *Reconciler) VoteGroups() ([]entity.VoteGroup, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.voteGroups == nil {
		return nil, apperror.ErrVotingNotStarted
	}

	return that.voteGroups, nil
}

// Subscribe - registers a listener for every accepted snapshot. The
// returned function removes exactly that listener.
func (that *Reconciler) Subscribe(listener func(*entity.Room)) func() {
	that.listenersMu.Lock()
	that.nextID++
	id := that.nextID
	that.listeners[id] = listener
	that.listenersMu.Unlock()

	return func() {
		that.listenersMu.Lock()
		defer that.listenersMu.Unlock()

		delete(that.listeners, id)
	}
}

// Replace - unconditional accept, used for RoomCreated, RoomJoined and
// RoundStarted: those are authoritative full refreshes tied to a request
// this client made.
func (that *Reconciler) Replace(room *entity.Room) {
	that.accept(room)
}

// ApplyUpdate - accept or suppress a RoomUpdated broadcast. RoomUpdated is
// the most frequent and least trustworthy signal, sent to every member on
// any change; replacing the snapshot on each one causes visible flicker and
// timer resets for players not involved in the triggering action. Reports
// whether the update was accepted.
func (that *Reconciler) ApplyUpdate(room *entity.Room) bool {
	log := that.logger.With("method", "ApplyUpdate")

	that.mu.RLock()
	held := that.room
	that.mu.RUnlock()

	if !shouldReplace(held, room) {
		log.Debug("suppressed redundant update", "phase", room.Phase.String())
		return false
	}

	if held != nil && held.Phase != room.Phase && !held.Phase.CanAdvanceTo(room.Phase) {
		log.Warn("server moved the room against the phase order",
			"from", held.Phase.String(), "to", room.Phase.String())
	}

	that.accept(room)

	return true
}

// SetVoteGroups - replace the held vote data wholesale; both VoteStarted
// and VoteUpdate carry a complete list, never a diff.
func (that *Reconciler) SetVoteGroups(groups []entity.VoteGroup) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if groups == nil {
		groups = []entity.VoteGroup{}
	}

	that.voteGroups = groups
}

// Reset - forget everything; used on leaving the room.
func (that *Reconciler) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.room = nil
	that.voteGroups = nil
}

func (that *Reconciler) accept(room *entity.Room) {
	// A round outside playing or voting is stale server state; drop it so
	// the snapshot invariant holds for every reader.
	if room.CurrentRound != nil && !room.Phase.HasActiveRound() {
		clone := *room
		clone.CurrentRound = nil
		room = &clone
	}

	that.mu.Lock()
	that.room = room
	that.mu.Unlock()

	that.notify(room)
}

func (that *Reconciler) notify(room *entity.Room) {
	that.listenersMu.Lock()
	listeners := make([]func(*entity.Room), 0, len(that.listeners))
	for _, listener := range that.listeners {
		listeners = append(listeners, listener)
	}
	that.listenersMu.Unlock()

	for _, listener := range listeners {
		listener(room)
	}
}

// shouldReplace - the phase-aware suppression matrix for RoomUpdated.
func shouldReplace(held, incoming *entity.Room) bool {
	if held == nil {
		return true
	}

	// A phase transition is always meaningful.
	if held.Phase != incoming.Phase {
		return true
	}

	switch incoming.Phase {
	case entity.PhasePlaying:
		return !held.SameRound(incoming) || len(held.Players) != len(incoming.Players)
	case entity.PhaseVoting, entity.PhaseFinished:
		return len(held.Players) != len(incoming.Players)
	case entity.PhaseWaiting, entity.PhaseResults:
		// Waiting rooms change on any roster or settings edit; results
		// broadcasts are assumed score-bearing.
		return true
	default:
		return true
	}
}
