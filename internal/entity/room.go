package entity

const MinPlayersToStart = 2

// Room - the complete state of a game room as last reconciled from the server.
//
// A room value is replaced wholesale on every accepted update and never
// patched in place, so readers always observe a consistent snapshot.
type Room struct {
	Code                  string   `json:"code"`
	HostID                string   `json:"hostUserId"`
	Players               []Player `json:"players"`
	Topics                []Topic  `json:"topics"`
	Rounds                []Round  `json:"rounds"`
	CurrentRound          *Round   `json:"currentRound,omitempty"`
	Phase                 Phase    `json:"state"`
	MaxPlayers            int      `json:"maxPlayers"`
	RoundDurationSeconds  int      `json:"roundDurationSeconds"`
	VotingDurationSeconds int      `json:"votingDurationSeconds"`
	MaxRounds             int      `json:"maxRounds"`
}

type Topic struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// Round - one timed play instance, associated with a single prompt letter.
// TimeRemainingSeconds is a point-in-time hint from the server, not a live value.
type Round struct {
	ID                   string   `json:"id"`
	Letter               string   `json:"letter"`
	IsActive             bool     `json:"isActive"`
	TimeRemainingSeconds int      `json:"timeRemainingSeconds"`
	Answers              []Answer `json:"answers,omitempty"`
}

type Answer struct {
	ID         string `json:"id"`
	TopicID    string `json:"topicId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
	Value      string `json:"value"`
	Votes      []Vote `json:"votes,omitempty"`
}

type Vote struct {
	VoterID string `json:"voterId"`
	IsValid bool   `json:"isValid"`
}

// VoteGroup - every answer submitted for one topic, as delivered by the
// server when the voting phase opens or the tally changes.
type VoteGroup struct {
	TopicID string   `json:"topicId"`
	Answers []Answer `json:"answers"`
}

func (that *Room) PlayerByID(id string) (Player, bool) {
	for _, player := range that.Players {
		if player.ID == id {
			return player, true
		}
	}

	return Player{}, false
}

func (that *Room) IsHost(playerID string) bool {
	return playerID != "" && that.HostID == playerID
}

func (that *Room) IsFull() bool {
	return that.MaxPlayers > 0 && len(that.Players) >= that.MaxPlayers
}

// CanStartRound - reports whether the room is ready for the host to start a
// round: enough players, and a phase from which playing is reachable (the
// lobby, or the results screen between rounds).
func (that *Room) CanStartRound() bool {
	if len(that.Players) < MinPlayersToStart {
		return false
	}

	return that.Phase == PhaseWaiting || that.Phase == PhaseResults
}

// SameRound - reports whether both rooms describe the same current round:
// same identity, same active flag, same letter. Either side having no
// current round counts as a difference unless both have none.
func (that *Room) SameRound(other *Room) bool {
	a, b := that.CurrentRound, other.CurrentRound

	if a == nil || b == nil {
		return a == b
	}

	return a.ID == b.ID && a.IsActive == b.IsActive && a.Letter == b.Letter
}

// CountVotes - tallies valid and invalid votes for an answer. A voter appears
// at most once per answer, so the sum equals the number of distinct voters.
func (that *Answer) CountVotes() (valid, invalid int) {
	for _, vote := range that.Votes {
		if vote.IsValid {
			valid++
			continue
		}

		invalid++
	}

	return valid, invalid
}

// TopicIDs - the distinct topic ids present across the delivered groups,
// in first-seen order.
func TopicIDs(groups []VoteGroup) []string {
	seen := make(map[string]struct{}, len(groups))
	ids := make([]string, 0, len(groups))

	for _, group := range groups {
		if _, ok := seen[group.TopicID]; ok {
			continue
		}

		seen[group.TopicID] = struct{}{}
		ids = append(ids, group.TopicID)
	}

	return ids
}
