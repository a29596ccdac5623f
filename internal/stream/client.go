// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/hublink/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnauthorized indicates the event endpoint rejected the bearer
	// token. This is a reconfiguration problem; the client does not retry.
	ErrUnauthorized = errors.New("event stream unauthorized")

	// errHeartbeatTimeout marks a connection torn down by the watchdog.
	errHeartbeatTimeout = errors.New("heartbeat timeout")
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnState is the observable connection state. It is reported on the
// state channel on every change so callers can always show the current
// connection status.
type ConnState int

// Connection states.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateRetrying
	StateLost
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the stream client configuration.
type Config struct {
	// BaseURL is the Hub origin; the event endpoint is BaseURL + /api/events.
	BaseURL string

	// Token is the optional bearer token.
	Token string

	// BaseDelay is the first reconnection delay (default 1s).
	BaseDelay time.Duration

	// BackoffFactor multiplies the delay per attempt (default 2.0).
	BackoffFactor float64

	// MaxAttempts caps consecutive reconnection attempts (default 10).
	// Exhausting it surfaces a terminal connection-lost event.
	MaxAttempts int

	// HeartbeatTimeout is the silent-connection window (default 45s). Any
	// inbound frame rearms it; expiry tears the connection down.
	HeartbeatTimeout time.Duration

	// BufferSize is the event channel capacity (default 64).
	BufferSize int
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2.0
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 45 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	return c
}

// backoffDelay returns the reconnection delay for the given attempt:
// BaseDelay * BackoffFactor^attempt.
func (c Config) backoffDelay(attempt int) time.Duration {
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt)))
}

// =============================================================================
// CLIENT
// =============================================================================

// Client maintains at most one logical connection to the Hub's event
// endpoint, delivering parsed events in arrival order on Events and state
// changes on States. All connection state lives on the instance; construct
// one at the composition root and inject it.
type Client struct {
	mu      sync.Mutex
	cfg     Config
	state   ConnState
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// httpClient carries no fixed timeout; the stream lives until the
	// connection context is canceled.
	httpClient *http.Client

	events chan model.Event
	states chan ConnState
}

// NewClient creates a stream client. Connect must be called to start it.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		state:      StateDisconnected,
		httpClient: &http.Client{},
		events:     make(chan model.Event, cfg.BufferSize),
		states:     make(chan ConnState, 16),
	}
}

// Events returns the typed event channel. Events arrive in the order the
// transport produced them; the channel stays open across reconnections.
func (c *Client) Events() <-chan model.Event {
	return c.events
}

// States returns the connection state channel. Only the latest states are
// retained if the consumer falls behind.
func (c *Client) States() <-chan ConnState {
	return c.states
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a live stream is established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect starts the connection loop. Calling it while already running is
// a no-op.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx, c.done)
}

// Disconnect aborts the in-flight read, cancels any pending reconnection
// timer, and waits for the loop to exit. Safe to call when already
// disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// setState records and publishes a state change.
func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	for {
		select {
		case c.states <- s:
			return
		default:
			// Consumer is behind: drop the oldest state, keep the newest.
			select {
			case <-c.states:
			default:
			}
		}
	}
}

// deliver pushes an event unless the client is shutting down.
func (c *Client) deliver(ctx context.Context, ev model.Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// =============================================================================
// CONNECTION LOOP
// =============================================================================

// run owns the connect/read/backoff cycle until the context is canceled,
// the token is rejected, or MaxAttempts consecutive failures occur. done is
// this generation's completion channel; closing it releases any Disconnect
// waiting on the loop.
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	attempt := 0
	for {
		if attempt == 0 {
			c.setState(StateConnecting)
		} else {
			c.setState(StateRetrying)
		}

		err := c.streamOnce(ctx, func() {
			// A successful connection resets the attempt counter.
			attempt = 0
			c.setState(StateConnected)
		})

		if ctx.Err() != nil {
			// Caller-initiated disconnect.
			c.setState(StateDisconnected)
			return
		}

		if errors.Is(err, ErrUnauthorized) {
			// Needs reconfiguration; backoff will not fix a bad token.
			c.deliver(ctx, model.Event{Kind: model.EventError, ErrorMessage: err.Error()})
			c.setState(StateLost)
			return
		}

		if err != nil {
			log.Printf("stream: connection failed: %v", err)
		}

		if attempt >= c.cfg.MaxAttempts {
			c.deliver(ctx, model.Event{
				Kind:         model.EventConnectionLost,
				ErrorMessage: fmt.Sprintf("connection lost after %d attempts", attempt),
			})
			c.setState(StateLost)
			return
		}

		delay := c.cfg.backoffDelay(attempt)
		attempt++

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}
	}
}

// streamOnce establishes one connection and reads frames until it ends.
// onConnected fires once the Hub accepts the stream. A nil return means
// the server closed the stream cleanly; that still re-enters the
// reconnection path.
func (c *Client) streamOnce(ctx context.Context, onConnected func()) error {
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.cfg.BaseURL+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	onConnected()

	// The watchdog cancels the connection context if no frame arrives
	// within the heartbeat window. This catches half-open connections the
	// transport never reports as closed.
	watchdog := time.AfterFunc(c.cfg.HeartbeatTimeout, cancelConn)
	defer watchdog.Stop()

	reader := newFrameReader(resp.Body)
	for {
		kind, data, err := reader.ReadFrame()
		if err != nil {
			if connCtx.Err() != nil && ctx.Err() == nil {
				return errHeartbeatTimeout
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		watchdog.Reset(c.cfg.HeartbeatTimeout)

		ev, perr := model.ParseEvent(kind, data)
		if perr != nil {
			// Malformed frames are skipped; they never block the stream.
			log.Printf("stream: skipping frame: %v", perr)
			continue
		}
		if ev.Kind == model.EventUnknown {
			log.Printf("stream: unknown event kind %q", ev.RawKind)
		}

		c.deliver(ctx, ev)
	}
}
