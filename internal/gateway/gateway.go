package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/stopgame-client/internal/apperror"
	"github.com/rocketscienceinc/stopgame-client/internal/entity"
	"github.com/rocketscienceinc/stopgame-client/transport/hub"
)

// Inbound notification names of the game server contract.
const (
	EventRoomCreated      = "RoomCreated"
	EventRoomJoined       = "RoomJoined"
	EventRoomUpdated      = "RoomUpdated"
	EventRoundStarted     = "RoundStarted"
	EventRoundStopped     = "RoundStopped"
	EventVoteStarted      = "VoteStarted"
	EventVoteUpdate       = "VoteUpdate"
	EventPlayerJoined     = "PlayerJoined"
	EventPlayerLeft       = "PlayerLeft"
	EventError            = "Error"
	EventChatNotification = "ChatNotification"
)

// Outbound call names.
const (
	actionCreateRoom         = "CreateRoom"
	actionJoinRoom           = "JoinRoom"
	actionLeaveRoom          = "LeaveRoom"
	actionGetCurrentRoom     = "GetCurrentRoom"
	actionStartRound         = "StartRound"
	actionStop               = "Stop"
	actionSubmitAnswers      = "SubmitAnswers"
	actionSubmitVotes        = "SubmitVotes"
	actionVote               = "Vote"
	actionFinishVotingPhase  = "FinishVotingPhase"
	actionUpdateRoomSettings = "UpdateRoomSettings"
	actionGetVoteData        = "GetVoteData"
	actionSendChat           = "SendChat"
)

type hubClient interface {
	State() hub.State
	Invoke(ctx context.Context, action string, payload any) error
	On(action string, handler hub.Handler) func()
}

// Gateway - wraps every outbound call as an operation that correlates the
// request with a one-shot success or error notification, settling exactly
// once and deregistering both listeners regardless of which fires first.
type Gateway struct {
	logger *slog.Logger
	hub    hubClient
}

func New(logger *slog.Logger, hubClient hubClient) *Gateway {
	return &Gateway{
		logger: logger.With("component", "gateway"),
		hub:    hubClient,
	}
}

// RoomEvent - the payload of RoomCreated and RoomJoined: the fresh room
// snapshot plus the identity the server assigned to this client.
type RoomEvent struct {
	Room   *entity.Room   `json:"room"`
	Player *entity.Player `json:"player"`
}

func (that *Gateway) CreateRoom(ctx context.Context, hostName string, opts CreateRoomOptions) (*RoomEvent, error) {
	request := newCreateRoomRequest(hostName, opts)

	payload, err := that.call(ctx, actionCreateRoom, request, EventRoomCreated)
	if err != nil {
		return nil, err
	}

	return decodeRoomEvent(payload)
}

func (that *Gateway) JoinRoom(ctx context.Context, roomCode, playerName string) (*RoomEvent, error) {
	request := JoinRoomRequest{RoomCode: roomCode, PlayerName: playerName}

	payload, err := that.call(ctx, actionJoinRoom, request, EventRoomJoined)
	if err != nil {
		return nil, err
	}

	return decodeRoomEvent(payload)
}

// LeaveRoom - tells the server we are gone. Send-and-resolve: the roster
// change comes back to the remaining players as an ordinary RoomUpdated.
func (that *Gateway) LeaveRoom(ctx context.Context) error {
	return that.send(ctx, actionLeaveRoom, nil)
}

// GetCurrentRoom - asks the server to replay the full snapshot of the room
// this connection belongs to. The reply arrives as a regular room
// notification, so there is nothing to wait for here.
func (that *Gateway) GetCurrentRoom(ctx context.Context) error {
	return that.send(ctx, actionGetCurrentRoom, nil)
}

func (that *Gateway) StartRound(ctx context.Context) (*entity.Room, error) {
	payload, err := that.call(ctx, actionStartRound, nil, EventRoundStarted)
	if err != nil {
		return nil, err
	}

	return decodeRoom(payload)
}

// StopRound - host-only early end of the round. Success is the same
// RoundStopped signal every player receives, so the flush path is shared
// with the time-ran-out case.
func (that *Gateway) StopRound(ctx context.Context) error {
	_, err := that.call(ctx, actionStop, nil, EventRoundStopped)
	return err
}

func (that *Gateway) SubmitAnswers(ctx context.Context, answers map[string]string) error {
	request := SubmitAnswersRequest{Answers: answers}

	_, err := that.call(ctx, actionSubmitAnswers, request, EventRoomUpdated)
	return err
}

// SubmitVotes - the bulk voting protocol: one choice per topic.
func (that *Gateway) SubmitVotes(ctx context.Context, choices map[string]string) error {
	request := SubmitVotesRequest{Votes: choices}

	_, err := that.call(ctx, actionSubmitVotes, request, EventVoteUpdate)
	return err
}

// CastVote - the per-answer voting protocol: one validity verdict cast the
// moment it happens.
func (that *Gateway) CastVote(ctx context.Context, answerID string, isValid bool) error {
	request := VoteRequest{AnswerID: answerID, IsValid: isValid}

	_, err := that.call(ctx, actionVote, request, EventVoteUpdate)
	return err
}

func (that *Gateway) FinishVotingPhase(ctx context.Context) error {
	_, err := that.call(ctx, actionFinishVotingPhase, nil, EventRoomUpdated)
	return err
}

func (that *Gateway) UpdateRoomSettings(ctx context.Context, roomCode string, settings RoomSettings) error {
	request := UpdateRoomSettingsRequest{
		RoomCode:     roomCode,
		RoomSettings: settings,
	}

	_, err := that.call(ctx, actionUpdateRoomSettings, request, EventRoomUpdated)
	return err
}

// RequestVoteData - re-pulls the vote groups for the running voting phase,
// for a client that arrived after VoteStarted went out.
func (that *Gateway) RequestVoteData(ctx context.Context) ([]entity.VoteGroup, error) {
	payload, err := that.call(ctx, actionGetVoteData, nil, EventVoteStarted, EventVoteUpdate)
	if err != nil {
		return nil, err
	}

	var groups []entity.VoteGroup
	if err = json.Unmarshal(payload, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vote groups: %w", err)
	}

	return groups, nil
}

func (that *Gateway) SendChat(ctx context.Context, message string) error {
	return that.send(ctx, actionSendChat, message)
}

type outcome struct {
	payload json.RawMessage
	err     error
}

// call - the correlation core: guard the connection state, arm one-shot
// success and error listeners, fire the request, and race the outcomes
// against the caller's context. Both listeners are deregistered on every
// settle path, and the sync.Once guarantees a single resolution even when
// success and error land back to back.
func (that *Gateway) call(ctx context.Context, action string, payload any, successActions ...string) (json.RawMessage, error) {
	if that.hub.State() != hub.StateConnected {
		return nil, apperror.ErrNotConnected
	}

	settled := make(chan outcome, 1)

	var once sync.Once
	settle := func(result outcome) {
		once.Do(func() { settled <- result })
	}

	offs := make([]func(), 0, len(successActions)+1)
	defer func() {
		for _, off := range offs {
			off()
		}
	}()

	for _, successAction := range successActions {
		offs = append(offs, that.hub.On(successAction, func(eventPayload json.RawMessage) {
			settle(outcome{payload: eventPayload})
		}))
	}

	offs = append(offs, that.hub.On(EventError, func(eventPayload json.RawMessage) {
		settle(outcome{err: apperror.NewRemoteError(decodeErrorMessage(eventPayload))})
	}))

	if err := that.hub.Invoke(ctx, action, payload); err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", action, err)
	}

	select {
	case result := <-settled:
		if result.err != nil {
			return nil, fmt.Errorf("%s failed: %w", action, result.err)
		}

		return result.payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s aborted: %w", action, ctx.Err())
	}
}

// send - fire an invocation whose effects come back as ordinary notifications.
func (that *Gateway) send(ctx context.Context, action string, payload any) error {
	if that.hub.State() != hub.StateConnected {
		return apperror.ErrNotConnected
	}

	if err := that.hub.Invoke(ctx, action, payload); err != nil {
		return fmt.Errorf("failed to invoke %s: %w", action, err)
	}

	return nil
}

func decodeRoomEvent(payload json.RawMessage) (*RoomEvent, error) {
	var event RoomEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room event: %w", err)
	}

	return &event, nil
}

func decodeRoom(payload json.RawMessage) (*entity.Room, error) {
	var room entity.Room
	if err := json.Unmarshal(payload, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// decodeErrorMessage - the Error payload is a bare JSON string; fall back
// to the raw bytes when it is not.
func decodeErrorMessage(payload json.RawMessage) string {
	var message string
	if err := json.Unmarshal(payload, &message); err != nil {
		return string(payload)
	}

	return message
}
