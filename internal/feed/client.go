// Package feed owns the single long-lived connection to the upstream odds
// feed: connect, handshake, subscribe, the receive loop, and reconnection
// with exponential backoff. It is the only writer to the state store.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrandonHuang23/odds-dashboard/internal/metrics"
	"github.com/BrandonHuang23/odds-dashboard/internal/models"
	"github.com/BrandonHuang23/odds-dashboard/internal/store"
)

// State is the connection state machine position.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateListening
	StateReconnecting
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UpdateFunc is invoked once per processed frame with the union of game ids
// whose odds changed. It runs on the receive loop goroutine, so it must not
// block for long.
type UpdateFunc func(gameIDs []string)

// Config tunes the connection lifecycle.
type Config struct {
	// AckTimeout bounds the wait for the feed's handshake acknowledgment
	// after the transport connects.
	AckTimeout time.Duration

	// ReconnectMin and ReconnectMax bound the exponential backoff between
	// reconnect attempts. The delay starts at ReconnectMin, doubles after
	// every failed cycle, and resets on a successful connect.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c *Config) applyDefaults() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 60 * time.Second
	}
}

// Client maintains the persistent upstream feed connection and merges every
// received message into the state store.
type Client struct {
	cfg       Config
	transport Transport
	store     *store.Store
	onUpdate  UpdateFunc
	logger    zerolog.Logger

	mu    sync.RWMutex
	conn  Conn
	state State
	delay time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// sleep waits for the given backoff delay, returning false if the
	// client was stopped while waiting. Swapped out in tests.
	sleep func(d time.Duration) bool
}

// NewClient creates a feed client. The store is the only thing the client
// writes to; onUpdate may be nil when nobody cares about change sets.
func NewClient(cfg Config, transport Transport, st *store.Store, onUpdate UpdateFunc, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	c := &Client{
		cfg:       cfg,
		transport: transport,
		store:     st,
		onUpdate:  onUpdate,
		logger:    logger.With().Str("component", "feed_client").Logger(),
		state:     StateDisconnected,
		delay:     cfg.ReconnectMin,
		done:      make(chan struct{}),
	}
	c.sleep = c.waitOrDone
	return c
}

// Connect opens the transport and waits for the feed's handshake
// acknowledgment. On success the reconnect backoff resets to its floor.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrAlreadyClosed
	default:
	}

	c.setState(StateConnecting)

	conn, err := c.transport.Dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial feed: %w", err)
	}

	// The feed sends an acknowledgment frame before any data.
	conn.SetReadDeadline(time.Now().Add(c.cfg.AckTimeout))
	if _, err := conn.ReadMessage(); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrHandshakeTimeout
		}
		return fmt.Errorf("waiting for feed ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.delay = c.cfg.ReconnectMin
	c.mu.Unlock()

	c.logger.Info().Msg("connected to feed")
	return nil
}

// Subscribe sends one subscription request. Production passes empty filters
// to receive everything; filtering happens per downstream client, which
// keeps the single upstream connection reusable for any combination of
// client interests.
func (c *Client) Subscribe(filters models.SubscribeFilters) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	req := models.SubscribeRequest{Action: "subscribe", Filters: filters}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.setState(StateSubscribed)
	c.logger.Info().Msg("subscribed to feed")
	return nil
}

// Start launches the receive loop in a background goroutine. The loop keeps
// reconnecting until Stop is called or ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop signals the receive loop to exit, waits for it, and closes the
// transport. Idempotent; no reconnection happens afterwards.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.dropConn()
		c.wg.Wait()
		c.setState(StateClosed)
		c.logger.Info().Msg("feed client stopped")
	})
}

// IsConnected reports whether an upstream connection is currently usable.
func (c *Client) IsConnected() bool {
	switch c.State() {
	case StateConnected, StateSubscribed, StateListening:
		return true
	default:
		return false
	}
}

// State returns the current state machine position.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		switch c.State() {
		case StateDisconnected, StateReconnecting:
			if err := c.Connect(ctx); err != nil {
				if errors.Is(err, ErrAlreadyClosed) {
					return
				}
				c.logger.Warn().Err(err).Msg("feed connect failed")
				if !c.backoff() {
					return
				}
				continue
			}
			if err := c.Subscribe(models.SubscribeFilters{}); err != nil {
				c.logger.Warn().Err(err).Msg("feed subscribe failed")
				c.dropConn()
				c.setState(StateReconnecting)
				if !c.backoff() {
					return
				}
				continue
			}
			c.setState(StateListening)

		case StateConnected, StateSubscribed:
			c.setState(StateListening)

		case StateListening:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				c.setState(StateReconnecting)
				continue
			}

			frame, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				default:
				}
				c.logger.Warn().Err(err).Msg("feed connection lost")
				c.dropConn()
				c.setState(StateReconnecting)
				if !c.backoff() {
					return
				}
				continue
			}
			c.processFrame(frame)

		case StateClosed:
			return
		}
	}
}

// processFrame merges every message of one frame into the store and fires
// the change callback at most once. Batching the notification per frame
// bounds the callback rate during the initial burst, where the feed can
// deliver 100+ logical messages in a handful of frames.
func (c *Client) processFrame(frame []byte) {
	metrics.FeedFramesReceived.Inc()

	messages, err := ParseFrame(frame)
	if err != nil {
		metrics.FeedDecodeFailures.Inc()
		c.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping undecodable frame")
		return
	}

	changed := make(map[string]struct{})

	for _, msg := range messages {
		switch msg.Action {
		case models.ActionInitialState, models.ActionLineUpdate:
			for _, id := range c.store.MergeUpdate(msg) {
				changed[id] = struct{}{}
			}
		case models.ActionGameRemoved:
			c.store.RemoveGame(msg)
		case models.ActionPing:
			// Keep-alive, nothing to do.
		case models.ActionError:
			c.logger.Warn().Str("timestamp", msg.Timestamp).Msg("feed reported an error")
		default:
			c.logger.Debug().Str("action", msg.Action).Msg("ignoring unknown feed action")
		}
		metrics.FeedMessagesProcessed.WithLabelValues(actionLabel(msg.Action)).Inc()
	}

	metrics.GamesTracked.Set(float64(c.store.GameCount()))

	if len(changed) > 0 && c.onUpdate != nil {
		ids := make([]string, 0, len(changed))
		for id := range changed {
			ids = append(ids, id)
		}
		c.onUpdate(ids)
	}
}

// backoff sleeps for the current reconnect delay and advances it. Returns
// false when the client was stopped while waiting.
func (c *Client) backoff() bool {
	c.mu.Lock()
	delay := c.delay
	c.delay *= 2
	if c.delay > c.cfg.ReconnectMax {
		c.delay = c.cfg.ReconnectMax
	}
	c.mu.Unlock()

	metrics.FeedReconnects.Inc()
	c.logger.Info().Dur("delay", delay).Msg("reconnecting to feed")
	return c.sleep(delay)
}

func (c *Client) waitOrDone(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.state != StateClosed {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// actionLabel keeps the metrics label set bounded.
func actionLabel(action string) string {
	switch action {
	case models.ActionInitialState, models.ActionLineUpdate, models.ActionGameRemoved, models.ActionPing, models.ActionError:
		return action
	default:
		return "unknown"
	}
}
