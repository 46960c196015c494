package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"personal/fluxer_go/src/opcodes"
)

const (
	// Assumed until the first HELLO carries the real value.
	defaultHeartbeatInterval = 41250 * time.Millisecond

	// Fixed delays; the protocol relies on server-driven recovery, so no
	// exponential growth.
	reconnectBackoff    = 5 * time.Second
	invalidSessionDelay = 3 * time.Second

	// Close code the server uses to reject a bad token during the handshake.
	closeCodeAuthenticationFailed = 4004

	eventReady = "READY"
)

// ErrAuthenticationFailed is returned by Run when the server rejects the
// token at handshake time. A bad credential will not self-heal, so the run
// loop halts instead of retrying.
var ErrAuthenticationFailed = errors.New("gateway: authentication failed")

var (
	errReconnectRequested = errors.New("gateway: server requested reconnect")
	errSessionInvalidated = errors.New("gateway: session invalidated")
)

// Session manages a single persistent gateway connection: handshake,
// heartbeat, sequence tracking and transparent resume/re-identify across
// disconnects. The transport is owned exclusively by the session and is
// replaced wholesale on every reconnect.
type Session struct {
	token      string
	gatewayURL string
	intents    Intent
	shardID    int
	shardCount int
	dialer     *websocket.Dialer
	logger     *slog.Logger
	dispatcher *dispatcher

	// Fixed retry delays; shortened in tests.
	backoff            time.Duration
	invalidSessionWait time.Duration

	// mu serializes the message pump and the heartbeat timer over the
	// session's mutable state, and guards writes to the transport.
	mu        sync.Mutex
	conn      *websocket.Conn
	seq       *int64
	sessionID string
	interval  time.Duration
	hb        *heartbeat

	closed atomic.Bool
	// Closed alongside the flag so the run loop's waits can observe Close.
	closedCh chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithIntents sets the capability bitmask sent in Identify.
func WithIntents(intents Intent) Option {
	return func(s *Session) { s.intents = intents }
}

// WithShard sets the shard pair sent in Identify.
func WithShard(id, count int) Option {
	return func(s *Session) {
		s.shardID = id
		s.shardCount = count
	}
}

// WithLogger sets the log sink. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = dialer }
}

// NewSession creates a session for the given token and gateway URL. The URL
// normally comes from the REST client's GatewayURL call.
func NewSession(token, gatewayURL string, opts ...Option) *Session {
	s := &Session{
		token:      token,
		gatewayURL: gatewayURL,
		intents:    IntentsDefault,
		shardID:    0,
		shardCount: 1,
		dialer:     websocket.DefaultDialer,
		interval:   defaultHeartbeatInterval,

		backoff:            reconnectBackoff,
		invalidSessionWait: invalidSessionDelay,
		closedCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.dispatcher = newDispatcher(s.logger)
	return s
}

// On registers a handler for a gateway event name, e.g. "MESSAGE_CREATE".
// Event names match case-insensitively; handlers run in registration order.
func (s *Session) On(event string, fn Handler) {
	s.dispatcher.register(event, fn)
}

// Run connects to the gateway and blocks, reconnecting on failure, until the
// session is closed or an unrecoverable error occurs (bad URL, rejected
// token). Intermediate hiccups only produce log output.
func (s *Session) Run(ctx context.Context) error {
	connectURL, err := buildConnectURL(s.gatewayURL)
	if err != nil {
		return err
	}

	for {
		if s.closed.Load() {
			return nil
		}
		err := s.connectOnce(ctx, connectURL)
		if s.closed.Load() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthenticationFailed) {
			return err
		}

		delay := s.backoff
		if errors.Is(err, errSessionInvalidated) {
			delay = s.invalidSessionWait
		}
		s.logger.Info("reconnecting", "delay", delay, "cause", err)
		select {
		case <-time.After(delay):
		case <-s.closedCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close permanently terminates the run loop. Safe to call more than once and
// from any goroutine. The heartbeat stops before the transport closes so
// nothing is ever written to a closed connection.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.closedCh)
	s.logger.Info("closing session")
	s.stopHeartbeat()
	s.closeConn()
}

// UpdatePresence sends a presence update. status is one of
// "online" | "idle" | "dnd" | "invisible"; activity is optional, e.g.
// {"name": "Listening to commands", "type": 2}.
func (s *Session) UpdatePresence(status string, activity map[string]any) error {
	return s.send(opcodes.PresenceUpdate, newPresence(status, activity))
}

// connectOnce dials the gateway and pumps messages until the connection
// fails, the server asks for a reconnect, or the session is closed.
func (s *Session) connectOnce(ctx context.Context, connectURL string) error {
	s.logger.Info("connecting to gateway", "url", connectURL)
	conn, _, err := s.dialer.DialContext(ctx, connectURL, nil)
	if err != nil {
		return fmt.Errorf("gateway: could not connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if s.closed.Load() {
		s.closeConn()
		return nil
	}

	// LIFO: the heartbeat stops before the transport is released.
	defer s.closeConn()
	defer s.stopHeartbeat()

	// Unblock ReadMessage if the context is cancelled mid-read.
	pumpDone := make(chan struct{})
	defer close(pumpDone)
	go func() {
		select {
		case <-ctx.Done():
			s.closeConn()
		case <-pumpDone:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == closeCodeAuthenticationFailed {
				return fmt.Errorf("gateway: %s: %w", closeErr.Text, ErrAuthenticationFailed)
			}
			return fmt.Errorf("gateway: could not receive message: %w", err)
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		if err := s.handleEnvelope(env); err != nil {
			return err
		}
	}
}

// handleEnvelope applies one inbound envelope to the state machine. A non-nil
// return tears down the current connection; the run loop decides whether to
// retry.
func (s *Session) handleEnvelope(env *Envelope) error {
	if env.S != nil {
		s.updateSequence(*env.S)
	}

	switch env.Op {
	case opcodes.Hello:
		return s.handleHello(env.D)

	case opcodes.HeartbeatACK:
		s.logger.Debug("heartbeat acknowledged")

	case opcodes.Heartbeat:
		s.sendHeartbeat()

	case opcodes.Dispatch:
		s.handleDispatch(env)

	case opcodes.Reconnect:
		s.logger.Info("server requested reconnect")
		return errReconnectRequested

	case opcodes.InvalidSession:
		return s.handleInvalidSession(env.D)

	default:
		s.logger.Warn("received unknown opcode", "op", env.Op)
	}
	return nil
}

func (s *Session) handleHello(data json.RawMessage) error {
	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(data, &hello); err != nil {
		s.logger.Warn("could not parse hello payload, keeping current interval", "error", err)
	}

	s.mu.Lock()
	if hello.HeartbeatInterval > 0 {
		s.interval = time.Duration(hello.HeartbeatInterval) * time.Millisecond
	}
	interval := s.interval
	if s.hb != nil {
		s.hb.stop()
	}
	s.hb = startHeartbeat(interval, s.logger, s.sendHeartbeat)
	sessionID := s.sessionID
	seq := s.seq
	s.mu.Unlock()

	s.logger.Debug("hello received", "interval", interval)

	if sessionID != "" && seq != nil {
		return s.sendResume(sessionID, *seq)
	}
	return s.sendIdentify()
}

func (s *Session) handleDispatch(env *Envelope) {
	if strings.EqualFold(env.T, eventReady) {
		var ready struct {
			SessionID string `json:"session_id"`
			User      struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		if err := json.Unmarshal(env.D, &ready); err != nil {
			s.logger.Warn("could not parse ready payload", "error", err)
		}

		// A READY without a session id must not half-clear resume state.
		if ready.SessionID != "" {
			s.mu.Lock()
			s.sessionID = ready.SessionID
			s.mu.Unlock()
		}

		s.logger.Info("gateway ready", "user", ready.User.Username, "session_id", ready.SessionID)

		if err := s.UpdatePresence("online", nil); err != nil {
			s.logger.Warn("could not send initial presence", "error", err)
		}
	}

	s.dispatcher.dispatch(env.T, env.D)
}

func (s *Session) handleInvalidSession(data json.RawMessage) error {
	resumable := false
	if len(data) > 0 {
		// Best effort; anything unparseable counts as not resumable.
		_ = json.Unmarshal(data, &resumable)
	}
	s.logger.Warn("invalid session", "resumable", resumable)

	if !resumable {
		// Cleared together: a half-reset session must never attempt a resume.
		s.mu.Lock()
		s.sessionID = ""
		s.seq = nil
		s.mu.Unlock()
	}
	return errSessionInvalidated
}

func (s *Session) sendIdentify() error {
	s.logger.Debug("sending identify")
	return s.send(opcodes.Identify, identifyPayload{
		Token:   s.token,
		Intents: s.intents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "fluxer_go",
			Device:  "fluxer_go",
		},
		Presence: newPresence("online", nil),
		Shard:    [2]int{s.shardID, s.shardCount},
	})
}

func (s *Session) sendResume(sessionID string, seq int64) error {
	s.logger.Debug("sending resume", "seq", seq)
	return s.send(opcodes.Resume, resumePayload{
		Token:     s.token,
		SessionID: sessionID,
		Seq:       seq,
	})
}

func (s *Session) sendHeartbeat() {
	var d any
	s.mu.Lock()
	if s.seq != nil {
		d = *s.seq
	}
	s.mu.Unlock()

	if err := s.send(opcodes.Heartbeat, d); err != nil {
		s.logger.Warn("could not send heartbeat", "error", err)
		return
	}
	s.logger.Debug("sent heartbeat", "seq", d)
}

// send marshals d into an envelope and writes it as a text frame. Writes are
// serialized under mu; the transport forbids concurrent writers.
func (s *Session) send(op int, d any) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("gateway: could not marshal payload: %w", err)
	}
	data, err := (&Envelope{Op: op, D: payload}).Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("gateway: connection is not open")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("gateway: could not send message: %w", err)
	}
	return nil
}

// updateSequence records a newly seen sequence number; it never moves
// backwards within one connection.
func (s *Session) updateSequence(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil || seq > *s.seq {
		s.seq = &seq
	}
}

func (s *Session) stopHeartbeat() {
	s.mu.Lock()
	hb := s.hb
	s.hb = nil
	s.mu.Unlock()
	if hb != nil {
		hb.stop()
	}
}

// closeConn sends a close frame and releases the current transport. Safe to
// call more than once; the connection is closed exactly once.
func (s *Session) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err := conn.Close(); err != nil {
		s.logger.Warn("could not close connection", "error", err)
	}
}

// buildConnectURL appends the protocol version and encoding query parameters,
// unless the URL already carries a query string.
func buildConnectURL(gatewayURL string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid gateway URL %q: %w", gatewayURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("gateway: invalid gateway URL %q", gatewayURL)
	}
	if u.RawQuery == "" {
		u.RawQuery = "v=1&encoding=json"
	}
	return u.String(), nil
}
