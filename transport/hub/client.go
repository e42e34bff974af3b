package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/stopgame-client/internal/apperror"
)

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = 2 * time.Second
	dialTimeout              = 10 * time.Second
)

// Handler - receives the raw payload of one inbound notification.
// Handlers run synchronously on the read loop, in registration order.
type Handler func(payload json.RawMessage)

type Options struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

type handlerEntry struct {
	id      int
	handler Handler
}

type stateEntry struct {
	id      int
	handler func(State)
}

// Client - owns the persistent websocket channel to the game server:
// connect, dispatch inbound notifications, auto-reconnect with backoff.
type Client struct {
	logger *slog.Logger
	opts   Options
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	closed bool

	handlersMu    sync.Mutex
	nextHandlerID int
	handlers      map[string][]handlerEntry
	stateHandlers []stateEntry

	writeMu sync.Mutex
}

func New(logger *slog.Logger, opts Options) *Client {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}

	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}

	return &Client{
		logger:   logger.With("component", "hub"),
		opts:     opts,
		dialer:   &websocket.Dialer{HandshakeTimeout: dialTimeout},
		state:    StateDisconnected,
		handlers: make(map[string][]handlerEntry),
	}
}

// Connect - establishes the channel. Resolves once the websocket handshake
// completes; a handshake failure leaves the client in StateFailed and it is
// up to the caller to call Connect again.
func (that *Client) Connect(ctx context.Context) error {
	log := that.logger.With("method", "Connect")

	that.setState(StateConnecting)

	conn, resp, err := that.dialer.DialContext(ctx, that.opts.URL, nil)
	if err != nil {
		that.setState(StateFailed)
		return fmt.Errorf("handshake with %s failed: %w", that.opts.URL, err)
	}

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	that.mu.Lock()
	that.conn = conn
	that.mu.Unlock()

	that.setState(StateConnected)

	go that.readLoop(conn)

	log.Info("connected to game server", "url", that.opts.URL)

	return nil
}

// Close - tears the channel down for good; no reconnect follows.
func (that *Client) Close() error {
	that.mu.Lock()
	that.closed = true
	conn := that.conn
	that.conn = nil
	that.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	that.setState(StateDisconnected)

	return nil
}

func (that *Client) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// On - registers a handler for a named notification. The returned function
// deregisters exactly that handler and must be called on teardown; sibling
// subscribers to the same action are untouched.
func (that *Client) On(action string, handler Handler) func() {
	that.handlersMu.Lock()
	that.nextHandlerID++
	id := that.nextHandlerID
	that.handlers[action] = append(that.handlers[action], handlerEntry{id: id, handler: handler})
	that.handlersMu.Unlock()

	return func() {
		that.handlersMu.Lock()
		defer that.handlersMu.Unlock()

		entries := that.handlers[action]
		for i, entry := range entries {
			if entry.id == id {
				that.handlers[action] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

// OnStateChange - registers a listener for connection state transitions.
func (that *Client) OnStateChange(handler func(State)) func() {
	that.handlersMu.Lock()
	that.nextHandlerID++
	id := that.nextHandlerID
	that.stateHandlers = append(that.stateHandlers, stateEntry{id: id, handler: handler})
	that.handlersMu.Unlock()

	return func() {
		that.handlersMu.Lock()
		defer that.handlersMu.Unlock()

		for i, entry := range that.stateHandlers {
			if entry.id == id {
				that.stateHandlers = append(that.stateHandlers[:i:i], that.stateHandlers[i+1:]...)
				break
			}
		}
	}
}

// Invoke - sends one outbound request. Fails immediately when the channel
// is anything but connected.
func (that *Client) Invoke(ctx context.Context, action string, payload any) error {
	that.mu.Lock()
	conn := that.conn
	state := that.state
	that.mu.Unlock()

	if state != StateConnected || conn == nil {
		return apperror.ErrNotConnected
	}

	message, err := newInvocation(action, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s invocation: %w", action, err)
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal %s invocation: %w", action, err)
	}

	// The write deadline sticks to the connection, so it is set per write
	// under the lock and cleared again; a leftover deadline from an earlier
	// call would fail every later write once it passes.
	that.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	err = conn.WriteMessage(websocket.TextMessage, messageJSON)
	_ = conn.SetWriteDeadline(time.Time{})
	that.writeMu.Unlock()

	if err != nil {
		// A failed write leaves the connection unusable; closing it makes
		// the read loop notice and run the reconnect path.
		conn.Close()
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	return nil
}

// readLoop - drains one connection, dispatching every notification in
// delivery order, and hands off to the reconnect loop when it drops.
func (that *Client) readLoop(conn *websocket.Conn) {
	log := that.logger.With("method", "readLoop")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("connection lost", "error", err)
			break
		}

		that.dispatch(data)
	}

	conn.Close()

	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}
	that.conn = nil
	that.mu.Unlock()

	that.setState(StateReconnecting)
	that.reconnect()
}

// reconnect - retries the dial with a growing delay until it succeeds or
// the attempt budget runs out.
func (that *Client) reconnect() {
	log := that.logger.With("method", "reconnect")

	for attempt := 1; attempt <= that.opts.ReconnectAttempts; attempt++ {
		time.Sleep(that.opts.ReconnectDelay * time.Duration(attempt))

		that.mu.Lock()
		if that.closed {
			that.mu.Unlock()
			return
		}
		that.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, resp, err := that.dialer.DialContext(ctx, that.opts.URL, nil)
		cancel()

		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		if err != nil {
			log.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		that.mu.Lock()
		if that.closed {
			that.mu.Unlock()
			conn.Close()
			return
		}
		that.conn = conn
		that.mu.Unlock()

		that.setState(StateConnected)

		go that.readLoop(conn)

		log.Info("reconnected to game server", "attempt", attempt)

		return
	}

	log.Error("reconnect attempts exhausted", "attempts", that.opts.ReconnectAttempts)

	that.setState(StateDisconnected)
}

func (that *Client) dispatch(data []byte) {
	log := that.logger.With("method", "dispatch")

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		log.Error("failed to unmarshal message", "error", err)
		return
	}

	that.handlersMu.Lock()
	entries := make([]handlerEntry, len(that.handlers[message.Action]))
	copy(entries, that.handlers[message.Action])
	that.handlersMu.Unlock()

	if len(entries) == 0 {
		log.Debug("no handler for action", "action", message.Action)
		return
	}

	for _, entry := range entries {
		entry.handler(message.Payload)
	}
}

func (that *Client) setState(state State) {
	that.mu.Lock()
	if that.state == state {
		that.mu.Unlock()
		return
	}
	that.state = state
	that.mu.Unlock()

	that.handlersMu.Lock()
	entries := make([]stateEntry, len(that.stateHandlers))
	copy(entries, that.stateHandlers)
	that.handlersMu.Unlock()

	for _, entry := range entries {
		entry.handler(state)
	}
}
