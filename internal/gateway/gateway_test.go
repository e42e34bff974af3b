package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/stopgame-client/internal/apperror"
	"github.com/rocketscienceinc/stopgame-client/internal/entity"
	"github.com/rocketscienceinc/stopgame-client/transport/hub"
)

type invocation struct {
	action  string
	payload any
}

// fakeHub - an in-memory stand-in for the hub client: records invocations
// and lets a test script the notifications the server would push back.
type fakeHub struct {
	mu       sync.Mutex
	state    hub.State
	nextID   int
	handlers map[string]map[int]hub.Handler
	invoked  []invocation

	// onInvoke runs synchronously inside Invoke, before it returns, so a
	// test can emit the server's reaction to a call.
	onInvoke func(action string)
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		state:    hub.StateConnected,
		handlers: make(map[string]map[int]hub.Handler),
	}
}

func (that *fakeHub) State() hub.State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

func (that *fakeHub) Invoke(_ context.Context, action string, payload any) error {
	that.mu.Lock()
	that.invoked = append(that.invoked, invocation{action: action, payload: payload})
	onInvoke := that.onInvoke
	that.mu.Unlock()

	if onInvoke != nil {
		onInvoke(action)
	}

	return nil
}

func (that *fakeHub) On(action string, handler hub.Handler) func() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextID++
	id := that.nextID

	if that.handlers[action] == nil {
		that.handlers[action] = make(map[int]hub.Handler)
	}
	that.handlers[action][id] = handler

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.handlers[action], id)
	}
}

func (that *fakeHub) emit(t *testing.T, action string, payload any) {
	t.Helper()

	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	that.mu.Lock()
	handlers := make([]hub.Handler, 0, len(that.handlers[action]))
	for _, handler := range that.handlers[action] {
		handlers = append(handlers, handler)
	}
	that.mu.Unlock()

	for _, handler := range handlers {
		handler(payloadJSON)
	}
}

func (that *fakeHub) activeHandlers() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	total := 0
	for _, byID := range that.handlers {
		total += len(byID)
	}

	return total
}

func (that *fakeHub) lastInvocation(t *testing.T) invocation {
	t.Helper()

	that.mu.Lock()
	defer that.mu.Unlock()

	require.NotEmpty(t, that.invoked)

	return that.invoked[len(that.invoked)-1]
}

func newTestGateway(fake *fakeHub) *Gateway {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(logger, fake)
}

func TestGateway_NotConnected(t *testing.T) {
	t.Run("Every operation fails fast while the channel is down", func(t *testing.T) {
		// Given: a hub that is not connected
		fake := newFakeHub()
		fake.state = hub.StateReconnecting
		gw := newTestGateway(fake)
		ctx := context.Background()

		// When/Then: calls are rejected before anything is sent
		_, err := gw.CreateRoom(ctx, "Ana", CreateRoomOptions{})
		assert.ErrorIs(t, err, apperror.ErrNotConnected)

		err = gw.SubmitAnswers(ctx, map[string]string{"t1": "Apple"})
		assert.ErrorIs(t, err, apperror.ErrNotConnected)

		err = gw.LeaveRoom(ctx)
		assert.ErrorIs(t, err, apperror.ErrNotConnected)

		assert.Empty(t, fake.invoked)
	})
}

func TestGateway_CreateRoom(t *testing.T) {
	t.Run("Resolves with the created room and cleans up its listeners", func(t *testing.T) {
		// Given: a server that answers CreateRoom with RoomCreated
		fake := newFakeHub()
		gw := newTestGateway(fake)

		fake.onInvoke = func(action string) {
			if action == "CreateRoom" {
				fake.emit(t, EventRoomCreated, RoomEvent{
					Room:   &entity.Room{Code: "X1Y2Z3", Phase: entity.PhaseWaiting},
					Player: &entity.Player{ID: "p1", Name: "Ana", IsHost: true},
				})
			}
		}

		// When: creating a room
		event, err := gw.CreateRoom(context.Background(), "Ana", CreateRoomOptions{})

		// Then: the event carries the room and the assigned identity
		require.NoError(t, err)
		assert.Equal(t, "X1Y2Z3", event.Room.Code)
		assert.True(t, event.Player.IsHost)

		// And: both one-shot listeners are gone
		assert.Zero(t, fake.activeHandlers())
	})

	t.Run("Applies the documented defaults to the outbound request", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventRoomCreated, RoomEvent{Room: &entity.Room{}, Player: &entity.Player{}})
		}

		_, err := gw.CreateRoom(context.Background(), "Ana", CreateRoomOptions{})
		require.NoError(t, err)

		request, ok := fake.lastInvocation(t).payload.(CreateRoomRequest)
		require.True(t, ok)
		assert.Equal(t, 8, request.MaxPlayers)
		assert.Equal(t, 60, request.RoundDurationSeconds)
		assert.Equal(t, 30, request.VotingDurationSeconds)
		assert.Equal(t, 5, request.MaxRounds)
		assert.True(t, request.UseDefaultTopics)
	})

	t.Run("Rejects with the server message on an error notification", func(t *testing.T) {
		// Given: a server that answers with Error
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventError, "room is full")
		}

		// When: creating a room
		_, err := gw.CreateRoom(context.Background(), "Ana", CreateRoomOptions{})

		// Then: the rejection carries the verbatim message
		var remoteErr *apperror.RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "room is full", remoteErr.Message)
		assert.Zero(t, fake.activeHandlers())
	})

	t.Run("Settles once even when success and error land back to back", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventRoomCreated, RoomEvent{Room: &entity.Room{Code: "X1Y2Z3"}, Player: &entity.Player{}})
			fake.emit(t, EventError, "too late")
		}

		event, err := gw.CreateRoom(context.Background(), "Ana", CreateRoomOptions{})

		require.NoError(t, err)
		assert.Equal(t, "X1Y2Z3", event.Room.Code)
	})

	t.Run("A dead context aborts the wait and cleans up", func(t *testing.T) {
		// Given: a server that never answers
		fake := newFakeHub()
		gw := newTestGateway(fake)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		// When: creating a room
		_, err := gw.CreateRoom(ctx, "Ana", CreateRoomOptions{})

		// Then: the context error is surfaced and no listener leaks
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, fake.activeHandlers())
	})
}

func TestGateway_StopRound(t *testing.T) {
	t.Run("Correlates on the RoundStopped signal", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(action string) {
			if action == "Stop" {
				fake.emit(t, EventRoundStopped, nil)
			}
		}

		err := gw.StopRound(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "Stop", fake.lastInvocation(t).action)
		assert.Zero(t, fake.activeHandlers())
	})
}

func TestGateway_SubmitVotes(t *testing.T) {
	t.Run("Bulk votes correlate on VoteUpdate", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventVoteUpdate, []entity.VoteGroup{})
		}

		err := gw.SubmitVotes(context.Background(), map[string]string{"t1": "a1"})

		require.NoError(t, err)

		request, ok := fake.lastInvocation(t).payload.(SubmitVotesRequest)
		require.True(t, ok)
		assert.Equal(t, "a1", request.Votes["t1"])
	})
}

func TestGateway_RequestVoteData(t *testing.T) {
	t.Run("Accepts either VoteStarted or VoteUpdate as the reply", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventVoteUpdate, []entity.VoteGroup{{TopicID: "t1"}})
		}

		groups, err := gw.RequestVoteData(context.Background())

		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "t1", groups[0].TopicID)
		assert.Zero(t, fake.activeHandlers())
	})
}

func TestGateway_SendOnlyOps(t *testing.T) {
	t.Run("LeaveRoom and GetCurrentRoom resolve on send", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		ctx := context.Background()

		require.NoError(t, gw.LeaveRoom(ctx))
		require.NoError(t, gw.GetCurrentRoom(ctx))
		require.NoError(t, gw.SendChat(ctx, "hello"))

		var actions []string
		for _, call := range fake.invoked {
			actions = append(actions, call.action)
		}
		assert.Equal(t, []string{"LeaveRoom", "GetCurrentRoom", "SendChat"}, actions)
		assert.Zero(t, fake.activeHandlers())
	})
}

func TestGateway_RemoteErrorUnmarshal(t *testing.T) {
	t.Run("A non string error payload is passed through raw", func(t *testing.T) {
		fake := newFakeHub()
		gw := newTestGateway(fake)
		fake.onInvoke = func(string) {
			fake.emit(t, EventError, map[string]string{"reason": "boom"})
		}

		_, err := gw.JoinRoom(context.Background(), "X1Y2Z3", "Bo")

		var remoteErr *apperror.RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.JSONEq(t, `{"reason":"boom"}`, remoteErr.Message)
	})
}
