package entity

import "fmt"

// Phase - the room's current stage in its lifecycle.
//
// The server encodes it as a bare number on the wire, so the constant
// order below is part of the protocol and must not be reshuffled.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseVoting
	PhaseResults
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhaseWaiting:  "waiting",
	PhasePlaying:  "playing",
	PhaseVoting:   "voting",
	PhaseResults:  "results",
	PhaseFinished: "finished",
}

func (that Phase) String() string {
	if name, ok := phaseNames[that]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%d)", int(that))
}

func (that Phase) IsValid() bool {
	_, ok := phaseNames[that]
	return ok
}

// HasActiveRound - reports whether a room in this phase may carry a current round.
func (that Phase) HasActiveRound() bool {
	return that == PhasePlaying || that == PhaseVoting
}

// CanAdvanceTo - reports whether the server is allowed to move a room from this
// phase to the given one. Phases are strictly ordered except for the
// results-to-playing back edge (next round); finished is terminal.
func (that Phase) CanAdvanceTo(next Phase) bool {
	if !that.IsValid() || !next.IsValid() {
		return false
	}

	if that == PhaseFinished {
		return false
	}

	if that == PhaseResults && next == PhasePlaying {
		return true
	}

	return next == that+1
}
