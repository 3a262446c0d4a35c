package lnd

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WatcherConfig configures ChannelEventWatcher behavior.
type WatcherConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// ChannelEventWatcher streams the node's channel event notifications over a
// websocket and turns each one into a poll nudge. The watcher is advisory:
// a lost connection means slower reaction, never missed state, because the
// poll loop still fires on its own interval.
type ChannelEventWatcher struct {
	endpoint    string
	macaroonHex string
	config      WatcherConfig
	logger      *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewChannelEventWatcher connects to the node's channel event stream at
// baseURL (same address as the REST API) and starts reading. Pass the empty
// string as macaroonHex for an unauthenticated node.
func NewChannelEventWatcher(ctx context.Context, baseURL, macaroonHex string, config *WatcherConfig, logger *log.Logger) (*ChannelEventWatcher, error) {
	cfg := DefaultWatcherConfig()
	if config != nil {
		cfg = *config
	}

	w := &ChannelEventWatcher{
		endpoint:    wsEndpoint(baseURL),
		macaroonHex: macaroonHex,
		config:      cfg,
		logger:      logger,
		events:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()

	return w, nil
}

// Events returns the nudge channel. A receive means at least one channel
// event arrived since the last receive; events are coalesced, never queued.
func (w *ChannelEventWatcher) Events() <-chan struct{} {
	return w.events
}

// Close closes the websocket connection and stops the read loop.
func (w *ChannelEventWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil // Already closed
	}

	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	return nil
}

// wsEndpoint rewrites the REST base URL into the websocket URL of the
// channel event stream.
func wsEndpoint(baseURL string) string {
	endpoint := strings.TrimRight(baseURL, "/")
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	return endpoint + "/v1/channels/subscribe?method=GET"
}

// connect establishes the websocket connection.
func (w *ChannelEventWatcher) connect(ctx context.Context) error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var header http.Header
	if w.macaroonHex != "" {
		header = http.Header{"Grpc-Metadata-Macaroon": []string{w.macaroonHex}}
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, header)
	if err != nil {
		return err
	}

	w.conn = conn
	return nil
}

// readLoop reads event messages and coalesces them into nudges, reconnecting
// with exponential backoff on connection loss.
func (w *ChannelEventWatcher) readLoop() {
	defer w.wg.Done()

	reconnectDelay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			select {
			case <-w.done:
				return
			case <-time.After(reconnectDelay):
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > w.config.MaxReconnectDelay {
				reconnectDelay = w.config.MaxReconnectDelay
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := w.connect(ctx)
			cancel()
			if err != nil {
				w.logger.Printf("channel event stream reconnect failed: %v", err)
				continue
			}

			w.logger.Printf("channel event stream reconnected")
			continue
		}

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))

		if _, _, err := conn.ReadMessage(); err != nil {
			if w.closed.Load() {
				return
			}

			w.logger.Printf("channel event stream read failed: %v", err)
			w.connMu.Lock()
			w.conn.Close()
			w.conn = nil
			w.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = w.config.ReconnectDelay

		// Coalescing send: a nudge already pending covers this event too
		select {
		case w.events <- struct{}{}:
		default:
		}
	}
}
