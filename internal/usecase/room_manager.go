package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/stopgame-client/internal/apperror"
	"github.com/rocketscienceinc/stopgame-client/internal/entity"
	"github.com/rocketscienceinc/stopgame-client/internal/gateway"
	"github.com/rocketscienceinc/stopgame-client/internal/repository"
	"github.com/rocketscienceinc/stopgame-client/internal/room"
	"github.com/rocketscienceinc/stopgame-client/transport/hub"
)

const submitTimeout = 10 * time.Second

type eventSource interface {
	On(action string, handler hub.Handler) func()
	OnStateChange(handler func(hub.State)) func()
}

type roomGateway interface {
	CreateRoom(ctx context.Context, hostName string, opts gateway.CreateRoomOptions) (*gateway.RoomEvent, error)
	JoinRoom(ctx context.Context, roomCode, playerName string) (*gateway.RoomEvent, error)
	LeaveRoom(ctx context.Context) error
	GetCurrentRoom(ctx context.Context) error
	StartRound(ctx context.Context) (*entity.Room, error)
	StopRound(ctx context.Context) error
	SubmitAnswers(ctx context.Context, answers map[string]string) error
	SubmitVotes(ctx context.Context, choices map[string]string) error
	CastVote(ctx context.Context, answerID string, isValid bool) error
	FinishVotingPhase(ctx context.Context) error
	UpdateRoomSettings(ctx context.Context, roomCode string, settings gateway.RoomSettings) error
	RequestVoteData(ctx context.Context) ([]entity.VoteGroup, error)
	SendChat(ctx context.Context, message string) error
}

type sessionRepo interface {
	Save(session *repository.Session) error
	Get() (*repository.Session, error)
	Clear() error
}

// RoomManager - the single dispatch point between the server's notification
// stream and local state: it owns the reconciler, the round timer and the
// answer/vote buffers, and fans already-reconciled snapshots out to the
// presentation layer instead of letting each consumer subscribe to the raw
// transport.
type RoomManager struct {
	logger   *slog.Logger
	source   eventSource
	gateway  roomGateway
	sessions sessionRepo

	reconciler *room.Reconciler
	timer      *room.RoundTimer
	answers    *room.AnswerBuffer
	votes      *room.VoteBuffer

	offsMu sync.Mutex
	offs   []func()

	hubStateMu   sync.Mutex
	lastHubState hub.State

	messageMu       sync.Mutex
	nextListenerID  int
	errorListeners  map[int]func(string)
	chatListeners   map[int]func(string)
	noticeListeners map[int]func(string)
}

func NewRoomManager(logger *slog.Logger, source eventSource, roomGW roomGateway, sessions sessionRepo, clock clockwork.Clock) *RoomManager {
	return &RoomManager{
		logger:   logger.With("component", "room-manager"),
		source:   source,
		gateway:  roomGW,
		sessions: sessions,

		reconciler: room.NewReconciler(logger),
		timer:      room.NewRoundTimer(logger, clock, nil),
		answers:    room.NewAnswerBuffer(),
		votes:      room.NewVoteBuffer(),

		lastHubState: hub.StateDisconnected,

		errorListeners:  make(map[int]func(string)),
		chatListeners:   make(map[int]func(string)),
		noticeListeners: make(map[int]func(string)),
	}
}

// Start - register every notification handler. Stop undoes each one.
func (that *RoomManager) Start() {
	that.offsMu.Lock()
	defer that.offsMu.Unlock()

	that.offs = append(that.offs,
		that.source.On(gateway.EventRoomCreated, that.handleRoomEntered),
		that.source.On(gateway.EventRoomJoined, that.handleRoomEntered),
		that.source.On(gateway.EventRoomUpdated, that.handleRoomUpdated),
		that.source.On(gateway.EventRoundStarted, that.handleRoundStarted),
		that.source.On(gateway.EventRoundStopped, that.handleRoundStopped),
		that.source.On(gateway.EventVoteStarted, that.handleVoteStarted),
		that.source.On(gateway.EventVoteUpdate, that.handleVoteUpdate),
		that.source.On(gateway.EventPlayerJoined, that.handlePlayerJoined),
		that.source.On(gateway.EventPlayerLeft, that.handlePlayerLeft),
		that.source.On(gateway.EventError, that.handleServerError),
		that.source.On(gateway.EventChatNotification, that.handleChat),
		that.source.OnStateChange(that.handleHubState),
	)
}

// Stop - symmetric teardown of everything Start registered.
func (that *RoomManager) Stop() {
	that.offsMu.Lock()
	offs := that.offs
	that.offs = nil
	that.offsMu.Unlock()

	for _, off := range offs {
		off()
	}

	that.timer.Stop()
}

// Snapshot - the latest reconciled room.
func (that *RoomManager) Snapshot() (*entity.Room, error) {
	return that.reconciler.Snapshot()
}

// SubscribeRoom - fan-out of every accepted snapshot.
func (that *RoomManager) SubscribeRoom(listener func(*entity.Room)) func() {
	return that.reconciler.Subscribe(listener)
}

func (that *RoomManager) Session() (*repository.Session, error) {
	return that.sessions.Get()
}

// RemainingSeconds - the locally ticked countdown. Presentation only: a
// local zero never means the round is over, only the server's stop does.
func (that *RoomManager) RemainingSeconds() int {
	return that.timer.Remaining()
}

func (that *RoomManager) CreateRoom(ctx context.Context, hostName string, opts gateway.CreateRoomOptions) (*entity.Room, error) {
	event, err := that.gateway.CreateRoom(ctx, hostName, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return event.Room, nil
}

func (that *RoomManager) JoinRoom(ctx context.Context, roomCode, playerName string) (*entity.Room, error) {
	event, err := that.gateway.JoinRoom(ctx, roomCode, playerName)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return event.Room, nil
}

// LeaveRoom - tell the server and drop all local room state. The identity
// is cleared even when the remote call fails, so this client never stays
// stuck believing it is in a room the server has forgotten.
func (that *RoomManager) LeaveRoom(ctx context.Context) error {
	log := that.logger.With("method", "LeaveRoom")

	callErr := that.gateway.LeaveRoom(ctx)

	if err := that.sessions.Clear(); err != nil {
		log.Error("failed to clear session", "error", err)
	}

	that.reconciler.Reset()
	that.timer.Observe(nil)
	that.answers.Discard()
	that.votes.Discard()

	if callErr != nil {
		return fmt.Errorf("failed to leave room: %w", callErr)
	}

	return nil
}

// RejoinRoom - ask the server to replay the snapshot of the room this
// session belongs to; used on page load with a stored identity.
func (that *RoomManager) RejoinRoom(ctx context.Context) error {
	if err := that.gateway.GetCurrentRoom(ctx); err != nil {
		return fmt.Errorf("failed to request current room: %w", err)
	}

	return nil
}

func (that *RoomManager) StartRound(ctx context.Context) (*entity.Room, error) {
	snapshot, err := that.reconciler.Snapshot()
	if err == nil && len(snapshot.Players) < entity.MinPlayersToStart {
		return nil, apperror.ErrNotEnoughPlayers
	}

	started, err := that.gateway.StartRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start round: %w", err)
	}

	return started, nil
}

// StopRound - host-only early end. The answers flush rides on the
// RoundStopped notification everyone receives, so an early stop and a
// natural timeout share one code path.
func (that *RoomManager) StopRound(ctx context.Context) error {
	if err := that.gateway.StopRound(ctx); err != nil {
		return fmt.Errorf("failed to stop round: %w", err)
	}

	return nil
}

// SetAnswer - buffer the player's in-progress answer for a topic.
func (that *RoomManager) SetAnswer(topicID, value string) {
	that.answers.Set(topicID, value)
}

func (that *RoomManager) PendingAnswers() map[string]string {
	return that.answers.Pending()
}

// SetVoteChoice - record the bulk-protocol pick for a topic.
func (that *RoomManager) SetVoteChoice(topicID, answerID string) {
	that.votes.SetChoice(topicID, answerID)
}

// AllTopicsVoted - readiness of the bulk vote submission.
func (that *RoomManager) AllTopicsVoted() bool {
	groups, err := that.reconciler.VoteGroups()
	if err != nil {
		return false
	}

	return that.votes.AllTopicsVoted(groups)
}

// SubmitVotes - flush the bulk choices exactly once for this voting phase.
func (that *RoomManager) SubmitVotes(ctx context.Context) error {
	choices, ok := that.votes.Flush()
	if !ok {
		return nil
	}

	if err := that.gateway.SubmitVotes(ctx, choices); err != nil {
		return fmt.Errorf("failed to submit votes: %w", err)
	}

	return nil
}

// CastVote - the per-answer protocol: record the verdict locally so the
// tally shows it immediately, then send it.
func (that *RoomManager) CastVote(ctx context.Context, answerID string, isValid bool) error {
	that.votes.MarkAnswer(answerID, isValid)

	if err := that.gateway.CastVote(ctx, answerID, isValid); err != nil {
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	return nil
}

func (that *RoomManager) FinishVoting(ctx context.Context) error {
	if err := that.gateway.FinishVotingPhase(ctx); err != nil {
		return fmt.Errorf("failed to finish voting: %w", err)
	}

	return nil
}

// VoteTally - the delivered vote groups merged with this player's own
// pending, not-yet-acknowledged verdicts.
func (that *RoomManager) VoteTally() ([]entity.VoteGroup, error) {
	groups, err := that.reconciler.VoteGroups()
	if err != nil {
		return nil, err
	}

	session, err := that.sessions.Get()
	if err != nil {
		return groups, nil //nolint:nilerr // no identity, nothing to overlay
	}

	return that.votes.Overlay(groups, session.PlayerID), nil
}

// RequestVoteData - re-pull the groups when voting state arrived before we
// were listening (fresh navigation into a running voting phase).
func (that *RoomManager) RequestVoteData(ctx context.Context) ([]entity.VoteGroup, error) {
	groups, err := that.gateway.RequestVoteData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vote data: %w", err)
	}

	that.reconciler.SetVoteGroups(groups)

	return groups, nil
}

func (that *RoomManager) UpdateSettings(ctx context.Context, settings gateway.RoomSettings) error {
	session, err := that.sessions.Get()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if !session.IsHost {
		return apperror.ErrNotHost
	}

	if err = that.gateway.UpdateRoomSettings(ctx, session.RoomCode, settings); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return nil
}

func (that *RoomManager) SendChat(ctx context.Context, message string) error {
	if err := that.gateway.SendChat(ctx, message); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}

// OnError - transient server errors; they never mutate the snapshot.
func (that *RoomManager) OnError(listener func(string)) func() {
	return that.addMessageListener(that.errorListeners, listener)
}

func (that *RoomManager) OnChat(listener func(string)) func() {
	return that.addMessageListener(that.chatListeners, listener)
}

// OnNotice - player joined/left announcements.
func (that *RoomManager) OnNotice(listener func(string)) func() {
	return that.addMessageListener(that.noticeListeners, listener)
}

func (that *RoomManager) handleRoomEntered(payload json.RawMessage) {
	log := that.logger.With("method", "handleRoomEntered")

	var event gateway.RoomEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error("failed to unmarshal room event", "error", err)
		return
	}

	if event.Room == nil || event.Player == nil {
		log.Error("room event missing room or player")
		return
	}

	session := &repository.Session{
		PlayerID: event.Player.ID,
		Name:     event.Player.Name,
		IsHost:   event.Player.IsHost,
		RoomCode: event.Room.Code,
	}
	if err := that.sessions.Save(session); err != nil {
		log.Error("failed to persist session", "error", err)
	}

	that.reconciler.Replace(event.Room)
	that.timer.Observe(event.Room.CurrentRound)
	that.armAnswers(event.Room)

	log.Info("entered room", "room", event.Room.Code, "player", event.Player.ID)
}

func (that *RoomManager) handleRoomUpdated(payload json.RawMessage) {
	log := that.logger.With("method", "handleRoomUpdated")

	var updated entity.Room
	if err := json.Unmarshal(payload, &updated); err != nil {
		log.Error("failed to unmarshal room", "error", err)
		return
	}

	if !that.reconciler.ApplyUpdate(&updated) {
		return
	}

	snapshot, err := that.reconciler.Snapshot()
	if err != nil {
		return
	}

	that.timer.Observe(snapshot.CurrentRound)
	that.armAnswers(snapshot)
}

// armAnswers - a snapshot can be the first evidence of a running round, as
// when rejoining mid-round through GetCurrentRoom: its reply arrives as an
// ordinary room notification, never as RoundStarted. The buffer keys on the
// round id, so a round it has already flushed stays flushed.
func (that *RoomManager) armAnswers(snapshot *entity.Room) {
	round := snapshot.CurrentRound
	if round == nil || !round.IsActive {
		return
	}

	that.answers.Reset(round.ID)
}

func (that *RoomManager) handleRoundStarted(payload json.RawMessage) {
	log := that.logger.With("method", "handleRoundStarted")

	var updated entity.Room
	if err := json.Unmarshal(payload, &updated); err != nil {
		log.Error("failed to unmarshal room", "error", err)
		return
	}

	that.reconciler.Replace(&updated)

	if updated.CurrentRound == nil {
		log.Warn("round started without a current round")
		return
	}

	that.answers.Reset(updated.CurrentRound.ID)
	that.timer.Observe(updated.CurrentRound)

	log.Info("round started",
		"round", updated.CurrentRound.ID,
		"letter", updated.CurrentRound.Letter,
		"seconds", updated.CurrentRound.TimeRemainingSeconds)
}

// handleRoundStopped - the authority froze the round. The signal carries no
// data by design: the flush uses whatever the buffer holds right now, since
// the authoritative round refresh may arrive before or after this and must
// not be the flush trigger. The buffer guarantees at most one flush per
// round, so a duplicate signal is harmless.
func (that *RoomManager) handleRoundStopped(json.RawMessage) {
	log := that.logger.With("method", "handleRoundStopped")

	contents, ok := that.answers.Flush()
	if !ok {
		log.Debug("round stop with nothing left to flush")
		return
	}

	// Submission must leave the dispatch goroutine: the gateway waits for
	// a notification that this same goroutine delivers.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		if err := that.gateway.SubmitAnswers(ctx, contents); err != nil {
			log.Error("failed to submit answers", "error", err)
			that.emit(that.errorListeners, "failed to submit answers: "+err.Error())
		}
	}()
}

func (that *RoomManager) handleVoteStarted(payload json.RawMessage) {
	log := that.logger.With("method", "handleVoteStarted")

	groups, err := decodeVoteGroups(payload)
	if err != nil {
		log.Error("failed to unmarshal vote groups", "error", err)
		return
	}

	that.votes.Reset()
	that.reconciler.SetVoteGroups(groups)

	log.Info("voting started", "topics", len(entity.TopicIDs(groups)))
}

func (that *RoomManager) handleVoteUpdate(payload json.RawMessage) {
	log := that.logger.With("method", "handleVoteUpdate")

	groups, err := decodeVoteGroups(payload)
	if err != nil {
		log.Error("failed to unmarshal vote groups", "error", err)
		return
	}

	that.reconciler.SetVoteGroups(groups)
	that.clearConfirmedMarks(groups)
}

// clearConfirmedMarks - once the authoritative tally carries our own vote
// for an answer, the local pending verdict for it has served its purpose.
func (that *RoomManager) clearConfirmedMarks(groups []entity.VoteGroup) {
	session, err := that.sessions.Get()
	if err != nil {
		return
	}

	for _, group := range groups {
		for _, answer := range group.Answers {
			for _, vote := range answer.Votes {
				if vote.VoterID == session.PlayerID {
					that.votes.ClearMark(answer.ID)
				}
			}
		}
	}
}

func (that *RoomManager) handlePlayerJoined(payload json.RawMessage) {
	var player entity.Player
	if err := json.Unmarshal(payload, &player); err != nil {
		return
	}

	that.emit(that.noticeListeners, player.Name+" joined the room")
}

func (that *RoomManager) handlePlayerLeft(payload json.RawMessage) {
	var playerName string
	if err := json.Unmarshal(payload, &playerName); err != nil {
		return
	}

	that.emit(that.noticeListeners, playerName+" left the room")
}

func (that *RoomManager) handleServerError(payload json.RawMessage) {
	var message string
	if err := json.Unmarshal(payload, &message); err != nil {
		message = string(payload)
	}

	that.logger.Warn("server error", "message", message)
	that.emit(that.errorListeners, message)
}

func (that *RoomManager) handleChat(payload json.RawMessage) {
	var message string
	if err := json.Unmarshal(payload, &message); err != nil {
		message = string(payload)
	}

	that.emit(that.chatListeners, message)
}

// handleHubState - after the channel resumes from a reconnect, buffered
// server events from the gap are gone for good; re-request the snapshot
// instead of waiting for deltas that will never come.
func (that *RoomManager) handleHubState(state hub.State) {
	log := that.logger.With("method", "handleHubState")

	that.hubStateMu.Lock()
	previous := that.lastHubState
	that.lastHubState = state
	that.hubStateMu.Unlock()

	if previous != hub.StateReconnecting || state != hub.StateConnected {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()

		if err := that.gateway.GetCurrentRoom(ctx); err != nil {
			log.Error("failed to refresh room after reconnect", "error", err)
			that.emit(that.errorListeners, "failed to refresh room after reconnect")
		}
	}()
}

func (that *RoomManager) addMessageListener(registry map[int]func(string), listener func(string)) func() {
	that.messageMu.Lock()
	that.nextListenerID++
	id := that.nextListenerID
	registry[id] = listener
	that.messageMu.Unlock()

	return func() {
		that.messageMu.Lock()
		defer that.messageMu.Unlock()

		delete(registry, id)
	}
}

func (that *RoomManager) emit(registry map[int]func(string), message string) {
	that.messageMu.Lock()
	listeners := make([]func(string), 0, len(registry))
	for _, listener := range registry {
		listeners = append(listeners, listener)
	}
	that.messageMu.Unlock()

	for _, listener := range listeners {
		listener(message)
	}
}

func decodeVoteGroups(payload json.RawMessage) ([]entity.VoteGroup, error) {
	var groups []entity.VoteGroup
	if err := json.Unmarshal(payload, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vote groups: %w", err)
	}

	return groups, nil
}
