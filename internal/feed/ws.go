package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// WSFeed receives streamed price frames over a WebSocket instead of polling.
// It implements infra.WSHandler; wrap it in an infra.WSWorker to run it.
//
// Frame format, one JSON object per message:
//
//	{"mint": "...", "price": "151.237", "ts": 1735689600123}
//
// ts is the source timestamp in milliseconds.
type WSFeed struct {
	url    string
	logger *slog.Logger
	out    chan Sample

	mu    sync.Mutex
	conn  *websocket.Conn
	mints map[string]struct{}
}

// NewWSFeed creates a streaming feed against url.
func NewWSFeed(url string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:    url,
		logger: logger,
		out:    make(chan Sample, 256),
		mints:  map[string]struct{}{},
	}
}

// Samples returns the observation stream.
func (f *WSFeed) Samples() <-chan Sample { return f.out }

// URL implements infra.WSHandler.
func (f *WSFeed) URL() string { return f.url }

// ID implements infra.WSHandler.
func (f *WSFeed) ID() string { return "price-feed" }

// OnConnect resubscribes every registered mint. Runs again after each
// reconnect, so subscriptions survive connection drops.
func (f *WSFeed) OnConnect(_ context.Context, conn *websocket.Conn) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.conn = conn
	for mint := range f.mints {
		if err := f.writeSubscribe(conn, mint); err != nil {
			return err
		}
	}
	return nil
}

// OnMessage implements infra.WSHandler.
func (f *WSFeed) OnMessage(_ context.Context, msg []byte) {
	var frame struct {
		Mint  string `json:"mint"`
		Price string `json:"price"`
		Ts    int64  `json:"ts"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		f.logger.Warn("FEED_FRAME_INVALID", slog.Any("err", err))
		return
	}
	price, err := decimal.NewFromString(frame.Price)
	if err != nil || price.Sign() <= 0 {
		f.logger.Warn("FEED_FRAME_INVALID",
			slog.String("mint", frame.Mint),
			slog.String("price", frame.Price))
		return
	}

	observed := time.UnixMilli(frame.Ts)
	if frame.Ts == 0 {
		observed = time.Now()
	}

	select {
	case f.out <- Sample{Mint: frame.Mint, Price: price, ObservedAt: observed}:
	default:
		f.logger.Warn("FEED_SAMPLE_DROPPED", slog.String("mint", frame.Mint))
	}
}

// OnPing implements infra.WSHandler.
func (f *WSFeed) OnPing(_ context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Watch subscribes a mint on the live connection, or queues the subscription
// for the next connect. Idempotent.
func (f *WSFeed) Watch(mint string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.mints[mint]; ok {
		return
	}
	f.mints[mint] = struct{}{}
	if f.conn != nil {
		if err := f.writeSubscribe(f.conn, mint); err != nil {
			f.logger.Warn("FEED_SUBSCRIBE_FAILED",
				slog.String("mint", mint),
				slog.Any("err", err))
		}
	}
}

func (f *WSFeed) writeSubscribe(conn *websocket.Conn, mint string) error {
	return conn.WriteJSON(map[string]string{"op": "subscribe", "mint": mint})
}
