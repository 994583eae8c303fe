// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package realtime keeps one subscription to the backend's bill-request
stream open, reconnecting with exponential backoff after any closure the
client did not ask for.

Stream Endpoint: {ws|wss}://{host}/api/v1/requests/ws/{restaurantId}?token={token}

Lifecycle:

	Idle -> Connecting -> Open -> Closed -> (scheduled) Connecting ...
	                                     \-> Idle (Disconnect or attempts exhausted)

A failed dial counts as a closure. After MaxAttempts consecutive failures
the client stops, reports ErrReconnectExhausted and stays Idle until Connect
is called again.
*/
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/session"
)

// ErrReconnectExhausted is reported once the attempt cap is reached.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

const (
	writeWait           = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultMaxFrameSize = 64 * 1024
)

// FrameHandler receives every inbound text frame.
type FrameHandler interface {
	HandleFrame(ctx context.Context, payload []byte) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, payload []byte) error

// HandleFrame implements FrameHandler.
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend base URL; see BuildEndpoint.
	BaseURL string

	Policy       Policy
	PingInterval time.Duration
	PongWait     time.Duration
	MaxFrameSize int64

	// Transport defaults to a gorilla/websocket dialer.
	Transport Transport

	// Clock schedules reconnects. Defaults to wall time.
	Clock clock.Scheduler
}

// Transport callbacks, modelled as a closed set of events handled by
// dispatch.
type event interface{ transportEvent() }

type openedEvent struct{ conn Conn }

type messageEvent struct{ payload []byte }

type errorEvent struct{ err error }

type closedEvent struct {
	reason CloseReason
	err    error
}

func (openedEvent) transportEvent()  {}
func (messageEvent) transportEvent() {}
func (errorEvent) transportEvent()   {}
func (closedEvent) transportEvent()  {}

// Client is the reconnecting stream subscriber.
type Client struct {
	cfg     Config
	handler FrameHandler
	clock   clock.Scheduler
	log     zerolog.Logger

	mu          sync.Mutex
	state       State
	attempt     int
	deliberate  bool
	exhausted   bool
	lastErr     error
	connectedAt time.Time
	dialURL     string
	endpoint    string // dialURL without the token
	runCtx      context.Context
	conn        Conn
	connDone    chan struct{}
	gen         uint64 // bumped per connection; stale callbacks compare against it
	reconnect   clock.Timer
	reconnSeq   uint64 // identifies the pending reconnect timer

	// writeMu serializes control frames; the read loop never writes.
	writeMu sync.Mutex

	hooksMu     sync.RWMutex
	onOpen      []func()
	onExhausted []func(error)
	onStatus    []func(Status)
}

// NewClient returns an Idle client delivering frames to handler.
func NewClient(cfg Config, handler FrameHandler) *Client {
	cfg.Policy = cfg.Policy.withDefaults()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultMaxFrameSize
	}
	if cfg.Transport == nil {
		cfg.Transport = NewWSTransport(0)
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		clock:   clock.OrReal(cfg.Clock),
		log:     logging.WithComponent("realtime"),
		state:   StateIdle,
		runCtx:  context.Background(),
	}
}

// OnOpen registers fn to run after every successful open.
func (c *Client) OnOpen(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onOpen = append(c.onOpen, fn)
}

// OnExhausted registers fn to run when reconnecting gives up.
func (c *Client) OnExhausted(fn func(error)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onExhausted = append(c.onExhausted, fn)
}

// OnStatus registers fn to run after every state change.
func (c *Client) OnStatus(fn func(Status)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// Connect opens the subscription for creds. It does nothing when either
// credential is empty or when the client is not Idle, so concurrent calls
// never open two sockets. ctx bounds the whole reconnect cycle, not just
// this dial.
//
// The returned error is the first dial's; a failed dial still enters the
// reconnect cycle.
func (c *Client) Connect(ctx context.Context, creds session.Credentials) error {
	if !creds.Complete() {
		c.log.Debug().Msg("connect skipped: no credentials")
		return nil
	}
	if err := creds.Validate(c.clock.Now()); err != nil {
		c.log.Warn().Err(err).Str("restaurant_id", creds.RestaurantID).Msg("connect refused")
		return err
	}
	dialURL, err := BuildEndpoint(c.cfg.BaseURL, creds.RestaurantID, creds.Token)
	if err != nil {
		return fmt.Errorf("build endpoint: %w", err)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.log.Debug().Stringer("state", state).Msg("connect ignored: subscription already active")
		return nil
	}
	c.deliberate = false
	c.exhausted = false
	c.attempt = 0
	c.lastErr = nil
	c.runCtx = ctx
	c.dialURL = dialURL
	c.endpoint = redactEndpoint(dialURL)
	gen := c.beginConnectLocked()
	c.mu.Unlock()

	metrics.SetExhausted(false)
	c.publishStatus()
	return c.dial(ctx, gen, dialURL)
}

// Disconnect closes the subscription deliberately. A pending reconnect is
// canceled and no new one is scheduled.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.deliberate = true
	c.stopReconnectLocked()
	c.gen++
	conn := c.conn
	c.conn = nil
	c.closeDoneLocked()
	prev := c.state
	c.transitionLocked(StateIdle)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		if err := conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		); err != nil {
			c.log.Debug().Err(err).Msg("failed to send close message")
		}
		c.writeMu.Unlock()
		if err := conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("failed to close connection")
		}
	}
	if prev != StateIdle {
		c.log.Info().Stringer("from", prev).Msg("disconnected")
		c.publishStatus()
	}
}

// Status returns a snapshot of the client.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Client) statusLocked() Status {
	s := Status{
		State:       c.state,
		Attempt:     c.attempt,
		Exhausted:   c.exhausted,
		Endpoint:    c.endpoint,
		ConnectedAt: c.connectedAt,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.exhausted {
		s.Message = ExhaustedMessage
	}
	return s
}

func (c *Client) dial(ctx context.Context, gen uint64, dialURL string) error {
	c.log.Debug().Str("endpoint", redactEndpoint(dialURL)).Msg("connecting")

	conn, err := c.cfg.Transport.Dial(ctx, dialURL)
	metrics.RecordConnectAttempt(err)
	if err != nil {
		reason := ReasonDialFailed
		if ctx.Err() != nil {
			reason = ReasonShutdown
		}
		c.dispatch(ctx, gen, closedEvent{reason: reason, err: err})
		return err
	}
	c.dispatch(ctx, gen, openedEvent{conn: conn})
	return nil
}

func (c *Client) dispatch(ctx context.Context, gen uint64, ev event) {
	switch e := ev.(type) {
	case openedEvent:
		c.handleOpen(ctx, gen, e.conn)
	case messageEvent:
		c.handleMessage(ctx, e.payload)
	case errorEvent:
		if c.isCurrent(gen) {
			c.log.Warn().Err(e.err).Msg("transport error")
		}
	case closedEvent:
		c.handleClose(ctx, gen, e)
	}
}

func (c *Client) handleOpen(ctx context.Context, gen uint64, conn Conn) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateConnecting {
		// Disconnected while dialing.
		c.mu.Unlock()
		_ = conn.Close() //nolint:errcheck // orphaned connection
		return
	}
	c.transitionLocked(StateOpen)
	c.conn = conn
	c.attempt = 0
	c.lastErr = nil
	c.connectedAt = c.clock.Now()
	done := make(chan struct{})
	c.connDone = done
	endpoint := c.endpoint
	c.mu.Unlock()

	c.log.Info().Str("endpoint", endpoint).Msg("subscription open")
	c.publishStatus()
	c.fireOpen()

	go c.readLoop(ctx, gen, conn)
	go c.pingLoop(conn, done)
}

func (c *Client) handleMessage(ctx context.Context, payload []byte) {
	metrics.RealtimeFramesReceived.Inc()
	if c.handler == nil {
		return
	}
	ctx = logging.ContextWithNewCorrelationID(ctx)
	if err := c.handler.HandleFrame(ctx, payload); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int("bytes", len(payload)).Msg("frame rejected")
	}
}

func (c *Client) handleClose(ctx context.Context, gen uint64, ev closedEvent) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.closeDoneLocked()
	c.transitionLocked(StateClosed)
	c.lastErr = ev.err

	reason := ev.reason
	if ctx.Err() != nil {
		reason = ReasonShutdown
	}
	attempt := c.attempt
	decision := c.cfg.Policy.Decide(reason, attempt, c.deliberate)

	switch decision.Action {
	case ActionReconnect:
		c.reconnSeq++
		seq := c.reconnSeq
		c.reconnect = c.clock.AfterFunc(decision.Delay, func() { c.fireReconnect(seq) })
	case ActionGiveUp:
		c.exhausted = true
		c.lastErr = ErrReconnectExhausted
		c.transitionLocked(StateIdle)
	case ActionStop:
		c.transitionLocked(StateIdle)
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close() //nolint:errcheck // already closed by the peer
	}

	switch decision.Action {
	case ActionReconnect:
		metrics.RecordReconnectScheduled(decision.Delay)
		c.log.Warn().Err(ev.err).
			Stringer("reason", reason).
			Int("attempt", attempt).
			Dur("delay", decision.Delay).
			Msg("connection closed, reconnect scheduled")
	case ActionGiveUp:
		metrics.SetExhausted(true)
		c.log.Error().Err(ev.err).
			Int("attempts", attempt).
			Msg(ExhaustedMessage)
	case ActionStop:
		c.log.Info().Stringer("reason", reason).Msg("connection closed")
	}

	c.publishStatus()
	if decision.Action == ActionGiveUp {
		c.fireExhausted(ErrReconnectExhausted)
	}
}

// fireReconnect runs on the timer goroutine. The callback may fire before
// AfterFunc returns, so it only carries the sequence number and waits on mu
// for the timer to be recorded.
func (c *Client) fireReconnect(seq uint64) {
	c.mu.Lock()
	if c.reconnect == nil || seq != c.reconnSeq || c.deliberate || c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	ctx := c.runCtx
	if ctx.Err() != nil {
		c.transitionLocked(StateIdle)
		c.mu.Unlock()
		c.publishStatus()
		return
	}
	c.attempt++
	gen := c.beginConnectLocked()
	dialURL := c.dialURL
	c.mu.Unlock()

	c.publishStatus()
	_ = c.dial(ctx, gen, dialURL) //nolint:errcheck // failure re-enters handleClose
}

func (c *Client) readLoop(ctx context.Context, gen uint64, conn Conn) {
	conn.SetReadLimit(c.cfg.MaxFrameSize)
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Debug().Err(err).Msg("failed to set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			reason := ReasonNetworkError
			if errors.As(err, &closeErr) {
				reason = ReasonServerClosed
			} else {
				c.dispatch(ctx, gen, errorEvent{err: err})
			}
			c.dispatch(ctx, gen, closedEvent{reason: reason, err: err})
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(ctx, gen, messageEvent{payload: payload})
	}
}

func (c *Client) pingLoop(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				// The read deadline ends the connection.
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// The helpers below must be called with mu held.

func (c *Client) beginConnectLocked() uint64 {
	c.transitionLocked(StateConnecting)
	c.gen++
	return c.gen
}

func (c *Client) transitionLocked(to State) bool {
	if c.state == to {
		return true
	}
	if !canTransition(c.state, to) {
		c.log.Warn().Stringer("from", c.state).Stringer("to", to).Msg("illegal state transition rejected")
		return false
	}
	c.state = to
	metrics.RealtimeState.Set(float64(to))
	return true
}

func (c *Client) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconnSeq++
}

func (c *Client) closeDoneLocked() {
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
}

func (c *Client) publishStatus() {
	status := c.Status()
	c.hooksMu.RLock()
	hooks := c.onStatus
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(status)
	}
}

func (c *Client) fireOpen() {
	c.hooksMu.RLock()
	hooks := c.onOpen
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) fireExhausted(err error) {
	c.hooksMu.RLock()
	hooks := c.onExhausted
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(err)
	}
}
