package room

import (
	"sync"

	"github.com/rocketscienceinc/stopgame-client/internal/entity"
)

// VoteBuffer - the player's not-yet-acknowledged voting choices for the
// running voting phase. Two protocols coexist in the server contract:
// the bulk one (one answer picked per topic, submitted together) is the
// primary; the per-answer validity marks back the legacy like/dislike flow.
type VoteBuffer struct {
	mu      sync.Mutex
	choices map[string]string // topic id -> chosen answer id
	marks   map[string]bool   // answer id -> validity verdict
	spent   bool
}

func NewVoteBuffer() *VoteBuffer {
	return &VoteBuffer{
		choices: make(map[string]string),
		marks:   make(map[string]bool),
	}
}

// Reset - arm the buffer for a fresh voting phase.
func (that *VoteBuffer) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.choices = make(map[string]string)
	that.marks = make(map[string]bool)
	that.spent = false
}

// Discard - empty the buffer and leave it spent; used when leaving a room.
func (that *VoteBuffer) Discard() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.choices = make(map[string]string)
	that.marks = make(map[string]bool)
	that.spent = true
}

func (that *VoteBuffer) SetChoice(topicID, answerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.spent {
		return
	}

	that.choices[topicID] = answerID
}

func (that *VoteBuffer) Choice(topicID string) (string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	answerID, ok := that.choices[topicID]

	return answerID, ok
}

// MarkAnswer - record a per-answer validity verdict (legacy protocol).
// A repeated mark for the same answer replaces the previous one.
func (that *VoteBuffer) MarkAnswer(answerID string, isValid bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.marks[answerID] = isValid
}

func (that *VoteBuffer) PendingMark(answerID string) (isValid, ok bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	isValid, ok = that.marks[answerID]

	return isValid, ok
}

// ClearMark - drop a pending verdict once an authoritative snapshot
// confirms the server recorded it.
func (that *VoteBuffer) ClearMark(answerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.marks, answerID)
}

// AllTopicsVoted - readiness for the bulk submit: every distinct topic
// present across the delivered groups has a recorded choice.
func (that *VoteBuffer) AllTopicsVoted(groups []entity.VoteGroup) bool {
	topicIDs := entity.TopicIDs(groups)
	if len(topicIDs) == 0 {
		return false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	for _, topicID := range topicIDs {
		if _, ok := that.choices[topicID]; !ok {
			return false
		}
	}

	return true
}

// Flush - take the bulk choices for submission, exactly once per phase.
func (that *VoteBuffer) Flush() (map[string]string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.spent {
		return nil, false
	}

	that.spent = true

	contents := make(map[string]string, len(that.choices))
	for topicID, answerID := range that.choices {
		contents[topicID] = answerID
	}

	that.choices = make(map[string]string)

	return contents, true
}

// Overlay - merge the server's tally with the local player's pending
// verdicts: external votes are kept as delivered, and for every answer the
// player has marked but the server has not yet confirmed, the player's own
// vote is replaced or appended. The input groups are not mutated.
func (that *VoteBuffer) Overlay(groups []entity.VoteGroup, selfID string) []entity.VoteGroup {
	that.mu.Lock()
	marks := make(map[string]bool, len(that.marks))
	for answerID, isValid := range that.marks {
		marks[answerID] = isValid
	}
	that.mu.Unlock()

	if len(marks) == 0 {
		return groups
	}

	merged := make([]entity.VoteGroup, len(groups))
	for i, group := range groups {
		answers := make([]entity.Answer, len(group.Answers))
		copy(answers, group.Answers)

		for j, answer := range answers {
			isValid, ok := marks[answer.ID]
			if !ok {
				continue
			}

			answers[j].Votes = overlayVote(answer.Votes, selfID, isValid)
		}

		merged[i] = entity.VoteGroup{TopicID: group.TopicID, Answers: answers}
	}

	return merged
}

// overlayVote - replace the voter's existing vote or append a new one,
// keeping the one-vote-per-voter invariant.
func overlayVote(votes []entity.Vote, voterID string, isValid bool) []entity.Vote {
	merged := make([]entity.Vote, len(votes))
	copy(merged, votes)

	for i, vote := range merged {
		if vote.VoterID == voterID {
			merged[i].IsValid = isValid
			return merged
		}
	}

	return append(merged, entity.Vote{VoterID: voterID, IsValid: isValid})
}
