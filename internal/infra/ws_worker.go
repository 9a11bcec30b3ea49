package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSHandler is the feed-specific half of a WebSocket worker.
type WSHandler interface {
	URL() string
	ID() string
	OnConnect(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte)
	OnPing(ctx context.Context, conn *websocket.Conn) error
}

// WSWorker keeps one WebSocket session alive for its handler: dial, hand
// frames over, ping on an interval, redial with exponential backoff when the
// session drops. The connection lives inside a single session; consumers
// must tolerate gaps across reconnects.
type WSWorker struct {
	handler WSHandler
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
}

// NewWSWorker creates a worker for handler.
func NewWSWorker(handler WSHandler, logger *slog.Logger) *WSWorker {
	return &WSWorker{
		handler:          handler,
		logger:           logger,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Start launches the session loop.
func (w *WSWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop ends the session loop and waits for it to exit.
func (w *WSWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *WSWorker) run(ctx context.Context) {
	retry := 0
	for {
		connected, err := w.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			// A session that reached a live connection resets the
			// escalation; only consecutive dial failures back off harder.
			retry = 0
		}
		w.logger.Warn("WS_SESSION_ENDED",
			slog.String("id", w.handler.ID()),
			slog.Int("retry", retry),
			slog.Any("err", err))

		delay := CalculateBackoff(retry)
		retry++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session dials, runs OnConnect and the read loop, and returns when the
// connection dies or ctx is cancelled. connected reports whether the dial
// itself succeeded.
func (w *WSWorker) session(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.handler.URL(), nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Cancellation must unblock the read loop.
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessCtx.Done()
		conn.Close()
	}()

	if err := w.handler.OnConnect(sessCtx, conn); err != nil {
		return true, fmt.Errorf("on connect: %w", err)
	}
	w.logger.Info("WS_CONNECTED", slog.String("id", w.handler.ID()))

	if w.PingInterval > 0 {
		go w.pingLoop(sessCtx, conn)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		w.handler.OnMessage(sessCtx, msg)
	}
}

func (w *WSWorker) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.handler.OnPing(ctx, conn); err != nil {
				w.logger.Warn("WS_PING_FAILED",
					slog.String("id", w.handler.ID()),
					slog.Any("err", err))
				conn.Close()
				return
			}
		}
	}
}
