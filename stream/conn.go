package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// Defaults for the reconnection policy.
const (
	DefaultMaxRetries = 5
	DefaultBackoff    = 2 * time.Second
)

// Socket is the minimal websocket surface the connection manager needs.
// *websocket.Conn satisfies it; tests substitute fakes.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a socket to the event channel endpoint.
type Dialer func(ctx context.Context, url string) (Socket, error)

func gorillaDialer(ctx context.Context, url string) (Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Conn.
type Config struct {
	// URL is the websocket endpoint of the editor session's event channel.
	URL string

	// Handler receives every decoded event.
	Handler pocketgraph.EventHandler

	// MaxRetries bounds consecutive connection failures before the manager
	// gives up silently. Defaults to DefaultMaxRetries.
	MaxRetries int

	// Backoff is the fixed delay between reconnection attempts. Defaults
	// to DefaultBackoff.
	Backoff time.Duration

	// Dialer overrides the websocket dialer (tests).
	Dialer Dialer

	Logger *slog.Logger
}

// Conn owns the lifetime of the event channel for one editor session:
// dialing, reading, bounded reconnection, and teardown. After the retry
// budget is exhausted it stops silently, leaving whatever execution state
// was last projected in place.
type Conn struct {
	url        string
	handler    pocketgraph.EventHandler
	maxRetries int
	backoff    time.Duration
	dialer     Dialer
	logger     *slog.Logger

	mu      sync.Mutex
	sock    Socket
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a connection manager. Start must be called to connect.
func New(cfg Config) *Conn {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = gorillaDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Conn{
		url:        cfg.URL,
		handler:    cfg.Handler,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		dialer:     cfg.Dialer,
		logger:     cfg.Logger,
	}
}

// Start launches the connect/read loop. It returns immediately; events are
// delivered on the manager's goroutine.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("stream connection already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true
	go c.run(ctx)
	return nil
}

// Stop tears the connection down and waits for the loop to exit. Safe to
// call more than once.
func (c *Conn) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.cancel()
	if c.sock != nil {
		_ = c.sock.Close()
	}
	done := c.done
	c.mu.Unlock()
	<-done
}

// Send marshals v as JSON and writes it to the channel. The channel is
// bidirectional; the editor uses it for protocol-level messages only.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding outbound frame: %w", err)
	}
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("stream not connected")
	}
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to stream: %w", err)
	}
	return nil
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		sock, err := c.dialer(ctx, c.url)
		if err != nil {
			failures++
			if failures >= c.maxRetries {
				// Give up silently: report once, never retry again.
				c.logger.Warn("event channel unavailable, giving up",
					"url", c.url, "attempts", failures)
				return
			}
			c.logger.Debug("event channel connect failed, will retry",
				"url", c.url, "attempt", failures, "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		failures = 0
		c.setSocket(sock)
		c.logger.Info("event channel connected", "url", c.url)
		c.readLoop(ctx, sock)
		c.setSocket(nil)
		_ = sock.Close()
	}
}

func (c *Conn) readLoop(ctx context.Context, sock Socket) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("event channel read failed", "error", err)
			}
			return
		}
		event, err := DecodeEvent(data)
		if err != nil {
			// Malformed frames are per-message failures; the stream
			// itself stays up.
			c.logger.Warn("skipping malformed stream frame", "error", err)
			continue
		}
		if c.handler != nil {
			c.handler(event)
		}
	}
}

func (c *Conn) setSocket(sock Socket) {
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
}
