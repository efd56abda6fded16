// Package live maintains the single push connection that streams station
// updates into shared state. One connection exists per engine: Open while a
// handle exists is a no-op, Close clears the handle so a later Open
// reconnects. Missed events are never buffered or replayed; a client that was
// disconnected sees stale values until the next push or a fresh snapshot.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/gorilla/websocket"
)

// eventAQIUpdate is the single logical event the channel carries.
const eventAQIUpdate = "aqi_update"

// Sink receives decoded updates in arrival order. DropLiveUpdates is invoked
// on every disconnect: live records are ephemeral and the next connection
// repopulates them.
type Sink interface {
	ApplyLiveUpdate(u domain.LiveUpdate)
	DropLiveUpdates()
}

// envelope is the wire frame: an event name plus its payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel is the reconnecting websocket client.
type Channel struct {
	url        string
	sink       Sink
	logger     *slog.Logger
	metrics    *observability.Metrics
	minBackoff time.Duration
	maxBackoff time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Channel. It does not connect until Open is called.
func New(url string, sink Sink, minBackoff, maxBackoff time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Channel {
	return &Channel{
		url:        url,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// Open starts the connection loop. Calling Open while a handle exists is a
// no-op, so repeated mounts of consuming surfaces cannot duplicate sockets.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.run(runCtx, done)
}

// Close tears the connection down and clears the handle; a later Open
// establishes a fresh connection.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether a live connection is currently established.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := c.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("live channel dial failed", "url", c.url, "backoff", backoff, "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.metrics.ChannelConnects.Inc()
		c.metrics.ChannelConnected.Set(1)
		c.logger.Info("live channel connected", "url", c.url)
		backoff = c.minBackoff

		c.readUntilClosed(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.metrics.ChannelDisconnects.Inc()
		c.metrics.ChannelConnected.Set(0)
		// Live records do not outlive the connection that delivered them.
		c.sink.DropLiveUpdates()

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("live channel disconnected, reconnecting", "backoff", backoff)
		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.maxBackoff)
	}
}

// readUntilClosed pumps frames into the sink until the connection fails or
// the context is cancelled.
func (c *Channel) readUntilClosed(ctx context.Context, conn *websocket.Conn) {
	readDone := make(chan struct{})
	defer close(readDone)

	// Unblock the read when the context ends.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
			conn.Close()
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("live channel read failed", "error", err)
			}
			return
		}
		if env.Event != eventAQIUpdate {
			continue
		}

		var update domain.LiveUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			c.logger.Warn("live channel payload malformed, skipping", "error", err)
			continue
		}
		c.sink.ApplyLiveUpdate(update)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-domain.Clock().After(d):
		return true
	}
}
