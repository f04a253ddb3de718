package stream

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Conn is one authenticated stream connection. It owns the socket, the
// subscription set, and the handler registry; engines receive ticks through
// registered handlers and never touch the socket directly.
type Conn struct {
	cfg    ConnConfig
	logger *slog.Logger

	// Pacing for subscribe sends. Shared by direct subscribes and
	// resubscribe-all, so batch callers are paced automatically.
	limiter *rate.Limiter

	mu       sync.RWMutex
	state    State
	sock     *socket
	subs     map[string]subscription
	handlers map[Mode][]Handler
	authCh   chan error
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConn creates a stream connection. Call Connect before Subscribe.
func NewConn(cfg ConnConfig, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.SubscribeInterval), 1),
		state:    StateDisconnected,
		subs:     make(map[string]subscription),
		handlers: make(map[Mode][]Handler),
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsAuthenticated reports whether subscribes would currently be accepted.
func (c *Conn) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RegisterHandler registers a handler for one mode. Handlers run in
// registration order; a panicking handler is isolated and logged without
// stopping delivery to the rest.
func (c *Conn) RegisterHandler(mode Mode, h Handler) {
	c.mu.Lock()
	c.handlers[mode] = append(c.handlers[mode], h)
	c.mu.Unlock()
}

// Connect dials the server, sends the authenticate message, and returns once
// the auth ack arrives. A missing ack within ConnectTimeout returns
// ErrConnectTimeout; a rejection returns ErrAuthFailed. The given context
// bounds the whole connection lifetime: canceling it closes the socket.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.state == StateAuthenticated {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	return c.dial()
}

// dial opens a fresh socket, starts its read loop, and performs the
// authenticate handshake with a bounded wait.
func (c *Conn) dial() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	sock := newSocket(c.cfg, c.logger)
	if err := sock.connect(c.ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	authCh := make(chan error, 1)
	c.mu.Lock()
	c.sock = sock
	c.authCh = authCh
	c.state = StateOpen
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(sock)

	auth := authMessage{Action: "authenticate", APIKey: c.cfg.APIKey}
	if err := sock.send(mustJSON(auth)); err != nil {
		sock.close()
		return err
	}

	select {
	case <-c.ctx.Done():
		sock.close()
		return c.ctx.Err()
	case <-time.After(c.cfg.ConnectTimeout):
		sock.close()
		return ErrConnectTimeout
	case err := <-authCh:
		return err
	}
}

// Close stops the read loop and releases the socket. Safe to call twice.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	sock := c.sock
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sock != nil {
		sock.close()
	}
	c.wg.Wait()
	return nil
}

// Subscribe requests market data for one instrument. Rejected unless the
// connection is authenticated. The subscription is recorded (deduplicated by
// its serialized form) and replayed after every successful re-auth.
func (c *Conn) Subscribe(symbol, exchange string, mode Mode) error {
	c.mu.RLock()
	state := c.state
	sock := c.sock
	c.mu.RUnlock()

	if state != StateAuthenticated || sock == nil {
		return ErrNotAuthenticated
	}

	if err := c.limiter.Wait(c.ctx); err != nil {
		return err
	}

	sub := subscription{Symbol: symbol, Exchange: exchange, Mode: mode}
	if err := sock.send(sub.message()); err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[sub.key()] = sub
	c.mu.Unlock()

	return nil
}

// readLoop consumes one socket until it fails or the connection closes.
func (c *Conn) readLoop(sock *socket) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case err := <-sock.errs:
			c.logger.Warn("stream connection error", "error", err)
			c.setState(StateClosed)
			c.wg.Add(1)
			go c.reconnect()
			return

		case data, ok := <-sock.messages:
			if !ok {
				return
			}
			c.handleMessage(data)
		}
	}
}

// handleMessage classifies one inbound frame. Auth results drive the state
// machine and are never forwarded; market data goes to registered handlers.
func (c *Conn) handleMessage(data []byte) {
	f := decodeFrame(data, time.Now())

	switch f.kind {
	case frameAuth:
		if f.authOK {
			c.setState(StateAuthenticated)
			c.signalAuth(nil)
			c.logger.Info("authenticated")

			c.wg.Add(1)
			go c.resubscribeAll()
		} else {
			c.logger.Error("authentication failed", "payload", string(data))
			c.signalAuth(ErrAuthFailed)
		}

	case frameMarket:
		c.dispatch(f.mode, f.tick)
	}
}

// signalAuth completes the pending Connect/dial wait, if any.
func (c *Conn) signalAuth(err error) {
	c.mu.RLock()
	ch := c.authCh
	c.mu.RUnlock()

	if ch != nil {
		select {
		case ch <- err:
		default:
		}
	}
}

// dispatch delivers a tick to every handler for its mode, in registration
// order, isolating per-handler panics.
func (c *Conn) dispatch(mode Mode, t Tick) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[mode]...)
	c.mu.RUnlock()

	for _, h := range handlers {
		c.invoke(mode, h, t)
	}
}

func (c *Conn) invoke(mode Mode, h Handler, t Tick) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic", "mode", mode, "symbol", t.Symbol, "panic", r)
		}
	}()
	h(t)
}

// resubscribeAll replays every recorded subscription, paced. Runs after each
// successful auth so a reconnect restores the full subscription set.
func (c *Conn) resubscribeAll() {
	defer c.wg.Done()

	c.mu.RLock()
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	sock := c.sock
	c.mu.RUnlock()

	if len(subs) == 0 || sock == nil {
		return
	}

	for _, s := range subs {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}
		if err := sock.send(s.message()); err != nil {
			c.logger.Warn("resubscribe failed", "symbol", s.Symbol, "error", err)
			return
		}
	}

	c.logger.Info("resubscribed", "count", len(subs))
}

// reconnect re-dials with capped exponential backoff and jitter, bounded by
// MaxReconnectAttempts. Subscriptions replay via the auth ack path.
func (c *Conn) reconnect() {
	defer c.wg.Done()

	wait := c.cfg.ReconnectBaseDelay

	for attempt := 1; c.cfg.MaxReconnectAttempts == 0 || attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		// Jitter: wait * (0.5 to 1.5)
		jittered := wait/2 + time.Duration(rand.Int64N(int64(wait)))

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(jittered):
		}

		c.mu.RLock()
		old := c.sock
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}
		if old != nil {
			old.close()
		}

		c.logger.Info("attempting reconnection", "attempt", attempt)

		if err := c.dial(); err != nil {
			c.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
			wait *= 2
			if wait > c.cfg.ReconnectMaxDelay {
				wait = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		c.logger.Info("reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("reconnection attempts exhausted", "max_attempts", c.cfg.MaxReconnectAttempts)
	c.setState(StateClosed)
}
