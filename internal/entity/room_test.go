package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoom_SameRound(t *testing.T) {
	round := func(id, letter string, active bool) *Round {
		return &Round{ID: id, Letter: letter, IsActive: active}
	}

	t.Run("Same identity, flag and letter compare equal", func(t *testing.T) {
		// Given: two rooms holding the same round
		a := &Room{CurrentRound: round("r1", "B", true)}
		b := &Room{CurrentRound: round("r1", "B", true)}

		// Then: the rounds compare equal
		assert.True(t, a.SameRound(b))
	})

	t.Run("A flipped active flag is a difference", func(t *testing.T) {
		a := &Room{CurrentRound: round("r1", "B", true)}
		b := &Room{CurrentRound: round("r1", "B", false)}

		assert.False(t, a.SameRound(b))
	})

	t.Run("A new round id is a difference", func(t *testing.T) {
		a := &Room{CurrentRound: round("r1", "B", true)}
		b := &Room{CurrentRound: round("r2", "B", true)}

		assert.False(t, a.SameRound(b))
	})

	t.Run("One side missing a round is a difference", func(t *testing.T) {
		a := &Room{CurrentRound: round("r1", "B", true)}
		b := &Room{}

		assert.False(t, a.SameRound(b))
		assert.False(t, b.SameRound(a))
	})

	t.Run("Both sides missing a round compare equal", func(t *testing.T) {
		a := &Room{}
		b := &Room{}

		assert.True(t, a.SameRound(b))
	})
}

func TestRoom_CanStartRound(t *testing.T) {
	t.Run("Waiting room with two players can start", func(t *testing.T) {
		room := &Room{Phase: PhaseWaiting, Players: []Player{{ID: "p1"}, {ID: "p2"}}}

		assert.True(t, room.CanStartRound())
	})

	t.Run("A lone player cannot start", func(t *testing.T) {
		room := &Room{Phase: PhaseWaiting, Players: []Player{{ID: "p1"}}}

		assert.False(t, room.CanStartRound())
	})

	t.Run("The next round can start from the results screen", func(t *testing.T) {
		room := &Room{Phase: PhaseResults, Players: []Player{{ID: "p1"}, {ID: "p2"}}}

		assert.True(t, room.CanStartRound())
	})

	t.Run("A running round blocks another start", func(t *testing.T) {
		room := &Room{Phase: PhasePlaying, Players: []Player{{ID: "p1"}, {ID: "p2"}}}

		assert.False(t, room.CanStartRound())
	})
}

func TestRoom_PlayerByID(t *testing.T) {
	room := &Room{Players: []Player{{ID: "p1", Name: "Ana"}, {ID: "p2", Name: "Bo"}}}

	t.Run("Finds a known player", func(t *testing.T) {
		player, ok := room.PlayerByID("p2")

		assert.True(t, ok)
		assert.Equal(t, "Bo", player.Name)
	})

	t.Run("Reports a missing player", func(t *testing.T) {
		_, ok := room.PlayerByID("p3")

		assert.False(t, ok)
	})
}

func TestAnswer_CountVotes(t *testing.T) {
	t.Run("Splits the tally by validity", func(t *testing.T) {
		answer := &Answer{Votes: []Vote{
			{VoterID: "p1", IsValid: true},
			{VoterID: "p2", IsValid: false},
			{VoterID: "p3", IsValid: true},
		}}

		valid, invalid := answer.CountVotes()

		assert.Equal(t, 2, valid)
		assert.Equal(t, 1, invalid)
	})
}

func TestTopicIDs(t *testing.T) {
	t.Run("Returns distinct topic ids in first seen order", func(t *testing.T) {
		groups := []VoteGroup{
			{TopicID: "t2"},
			{TopicID: "t1"},
			{TopicID: "t2"},
		}

		assert.Equal(t, []string{"t2", "t1"}, TopicIDs(groups))
	})

	t.Run("Empty groups yield no ids", func(t *testing.T) {
		assert.Empty(t, TopicIDs(nil))
	})
}
