package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerBuffer_Flush(t *testing.T) {
	t.Run("The first flush takes the contents exactly once", func(t *testing.T) {
		// Given: a round in progress with two typed answers
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "Apple")
		buffer.Set("t2", "Ant")

		// When: the round stops
		contents, ok := buffer.Flush()

		// Then: the flush yields both entries
		require.True(t, ok)
		assert.Equal(t, map[string]string{"t1": "Apple", "t2": "Ant"}, contents)
	})

	t.Run("A duplicate round stop finds the buffer already spent", func(t *testing.T) {
		// Given: a buffer that has flushed once
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "Apple")
		_, ok := buffer.Flush()
		require.True(t, ok)

		// When: a second RoundStopped arrives before any new round
		contents, ok := buffer.Flush()

		// Then: nothing is submitted twice
		assert.False(t, ok)
		assert.Nil(t, contents)
	})

	t.Run("Blank answers are dropped and the rest trimmed", func(t *testing.T) {
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "  Apple ")
		buffer.Set("t2", "   ")
		buffer.Set("t3", "")

		contents, ok := buffer.Flush()

		require.True(t, ok)
		assert.Equal(t, map[string]string{"t1": "Apple"}, contents)
	})

	t.Run("A fresh buffer with no round is already spent", func(t *testing.T) {
		buffer := NewAnswerBuffer()

		_, ok := buffer.Flush()

		assert.False(t, ok)
	})
}

func TestAnswerBuffer_Reset(t *testing.T) {
	t.Run("A new round re-arms the buffer and discards leftovers", func(t *testing.T) {
		// Given: a spent buffer from the previous round
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "Apple")
		_, _ = buffer.Flush()

		// When: the next round starts
		buffer.Reset("r2")
		buffer.Set("t1", "Bear")

		// Then: the buffer flushes the new round's contents
		contents, ok := buffer.Flush()
		require.True(t, ok)
		assert.Equal(t, map[string]string{"t1": "Bear"}, contents)
	})

	t.Run("Re-observing the same unspent round keeps the typed input", func(t *testing.T) {
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "Apple")

		// When: a duplicate RoundStarted for the same round arrives
		buffer.Reset("r1")

		// Then: the player's input is not wiped
		assert.Equal(t, "Apple", buffer.Get("t1"))
	})

	t.Run("A flushed round cannot be re-armed by its own id", func(t *testing.T) {
		// Given: a round that has already flushed
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		buffer.Set("t1", "Apple")
		_, ok := buffer.Flush()
		require.True(t, ok)

		// When: a snapshot replays the same round
		buffer.Reset("r1")
		buffer.Set("t1", "Apricot")

		// Then: the buffer stays spent
		_, ok = buffer.Flush()
		assert.False(t, ok)
	})

	t.Run("Writes after the flush are ignored", func(t *testing.T) {
		buffer := NewAnswerBuffer()
		buffer.Reset("r1")
		_, _ = buffer.Flush()

		buffer.Set("t1", "Late")

		assert.Empty(t, buffer.Pending())
	})
}
