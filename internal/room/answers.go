package room

import (
	"strings"
	"sync"
)

// AnswerBuffer - the player's in-progress answers for the active round,
// keyed by topic id. The buffer flushes exactly once per round: the first
// RoundStopped takes the contents, any later one finds it already spent.
type AnswerBuffer struct {
	mu      sync.Mutex
	roundID string
	answers map[string]string
	spent   bool
}

func NewAnswerBuffer() *AnswerBuffer {
	return &AnswerBuffer{
		answers: make(map[string]string),
		spent:   true,
	}
}

// Reset - arm the buffer for a new round, discarding anything left over.
// A round id already seen is a no-op in every state: re-observing an armed
// round keeps the typed input, and a flushed round stays flushed no matter
// which notification replays it.
func (that *AnswerBuffer) Reset(roundID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if roundID == that.roundID {
		return
	}

	that.roundID = roundID
	that.answers = make(map[string]string)
	that.spent = false
}

func (that *AnswerBuffer) Set(topicID, value string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.spent {
		return
	}

	that.answers[topicID] = value
}

func (that *AnswerBuffer) Get(topicID string) string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.answers[topicID]
}

// Pending - a copy of the current contents, for rendering.
func (that *AnswerBuffer) Pending() map[string]string {
	that.mu.Lock()
	defer that.mu.Unlock()

	pending := make(map[string]string, len(that.answers))
	for topicID, value := range that.answers {
		pending[topicID] = value
	}

	return pending
}

// Discard - empty the buffer and leave it spent; used when leaving a room
// so a stray late round-stop signal cannot submit anything.
func (that *AnswerBuffer) Discard() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.roundID = ""
	that.answers = make(map[string]string)
	that.spent = true
}

// Flush - take the contents for submission. Blank answers are dropped.
// Only the first call per round succeeds; afterwards the buffer stays
// empty until the next Reset, which keeps a duplicate RoundStopped from
// causing a second submission.
func (that *AnswerBuffer) Flush() (map[string]string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.spent {
		return nil, false
	}

	that.spent = true

	contents := make(map[string]string, len(that.answers))
	for topicID, value := range that.answers {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}

		contents[topicID] = trimmed
	}

	that.answers = make(map[string]string)

	return contents, true
}
