package live

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aqify/aqify-edge/internal/domain"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	applied []domain.LiveUpdate
	drops   int
}

func (s *recordingSink) ApplyLiveUpdate(u domain.LiveUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, u)
}

func (s *recordingSink) DropLiveUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops++
}

func (s *recordingSink) appliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

func (s *recordingSink) dropCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// wsServer upgrades each request and passes the connection to handle.
// It counts connections so tests can assert the singleton invariant.
func wsServer(t *testing.T, handle func(conn *websocket.Conn)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var upgrader websocket.Upgrader
	var conns atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestChannel(url string, sink Sink) *Channel {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(url, sink, 5*time.Millisecond, 20*time.Millisecond, logger, observability.NewMetricsForTesting())
}

func TestChannel_DeliversUpdatesInArrivalOrder(t *testing.T) {
	srv, _ := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteJSON(envelope{Event: eventAQIUpdate, Data: []byte(`{"station_id":7,"city_id":1,"aqi":55}`)})  //nolint:errcheck
		conn.WriteJSON(envelope{Event: eventAQIUpdate, Data: []byte(`{"station_id":7,"city_id":1,"aqi":60}`)})  //nolint:errcheck
		conn.WriteJSON(envelope{Event: "heartbeat", Data: []byte(`{}`)})                                        //nolint:errcheck
		conn.WriteJSON(envelope{Event: eventAQIUpdate, Data: []byte(`{"station_id":9,"city_id":2,"aqi":100}`)}) //nolint:errcheck
		time.Sleep(50 * time.Millisecond)
	})

	sink := &recordingSink{}
	ch := newTestChannel(wsURL(srv), sink)
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return sink.appliedCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 7, sink.applied[0].StationID)
	require.NotNil(t, sink.applied[1].AQI)
	assert.Equal(t, 60.0, *sink.applied[1].AQI)
	assert.Equal(t, 9, sink.applied[2].StationID)
}

func TestChannel_OpenTwiceKeepsOneConnection(t *testing.T) {
	srv, conns := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sink := &recordingSink{}
	ch := newTestChannel(wsURL(srv), sink)
	ch.Open(context.Background())
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, ch.Connected, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), conns.Load())
}

func TestChannel_ReconnectsAndDropsLiveState(t *testing.T) {
	srv, conns := wsServer(t, func(conn *websocket.Conn) {
		// Drop every connection immediately; the client must keep retrying.
		conn.Close()
	})

	sink := &recordingSink{}
	ch := newTestChannel(wsURL(srv), sink)
	ch.Open(context.Background())
	defer ch.Close()

	require.Eventually(t, func() bool { return conns.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, sink.dropCount(), 2)
}

func TestChannel_CloseClearsHandleSoOpenReconnects(t *testing.T) {
	srv, conns := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sink := &recordingSink{}
	ch := newTestChannel(wsURL(srv), sink)

	ch.Open(context.Background())
	require.Eventually(t, ch.Connected, 2*time.Second, 5*time.Millisecond)

	ch.Close()
	assert.False(t, ch.Connected())

	ch.Open(context.Background())
	defer ch.Close()
	require.Eventually(t, func() bool { return conns.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestChannel_CloseWithoutOpenIsSafe(t *testing.T) {
	sink := &recordingSink{}
	ch := newTestChannel("ws://127.0.0.1:0", sink)
	ch.Close()
	assert.False(t, ch.Connected())
}
