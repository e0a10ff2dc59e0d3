package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/infra/bondora"

	"github.com/gorilla/websocket"
)

const (
	maxRetries  = 10
	baseDelay   = 1 * time.Second
	maxDelay    = 60 * time.Second
	readTimeout = 90 * time.Second
)

// Sink accepts a decoded event without blocking. It reports false when the event was dropped.
type Sink func(domain.MarketEvent) bool

// Worker streams marketplace events over a WebSocket and reconnects on failure.
type Worker struct {
	url      string
	token    string
	sink     Sink
	metrics  *infra.Metrics
	maxDelay time.Duration
	logger   *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a new event stream worker. metrics may be nil.
func NewWorker(url, token string, sink Sink, metrics *infra.Metrics) *Worker {
	return &Worker{
		url:      url,
		token:    token,
		sink:     sink,
		metrics:  metrics,
		maxDelay: maxDelay,
		logger:   slog.Default().With("module", "feed_ws"),
	}
}

// WithMaxBackoff caps the reconnect delay.
func (w *Worker) WithMaxBackoff(d time.Duration) *Worker {
	if d > 0 {
		w.maxDelay = d
	}
	return w
}

// Connect starts the WebSocket connection loop and returns immediately
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports whether a connection is currently open.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			delay := infra.CalculateBackoff(retryCount, baseDelay, w.maxDelay)
			w.logger.Warn("Event feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount), slog.Duration("delay", delay))
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", infra.DefaultUserAgent)
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	w.metrics.SetFeedConnected(true)

	w.logger.Info("Event feed connected", slog.String("url", w.url))
	return nil
}

func (w *Worker) readLoop(ctx context.Context) {
	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, w.closeConnection)
	defer stop()

	for {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("Event feed read failed", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	ev, err := bondora.DecodeEvent(msg)
	if err != nil {
		w.logger.Warn("Undecodable event dropped", slog.Any("error", err))
		return
	}
	if !w.sink(ev) {
		w.logger.Warn("Event dropped", slog.String("event_type", string(ev.Type)))
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if w.connected {
		w.metrics.SetFeedConnected(false)
	}
	w.connected = false
}

// Disconnect stops the loop and waits for it to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
