package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sasiyaluba/Jup-limit-order/internal/infra"
)

// Sample is one price observation for a mint.
type Sample struct {
	Mint       string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceSource fetches the current price for a mint.
type PriceSource interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Watcher polls a PriceSource for every watched mint and fans samples out on
// a single channel. One poll loop per mint; the shared rate limiter keeps the
// aggregate request rate bounded no matter how many mints are live, and the
// circuit breaker turns an oracle outage into skipped ticks.
type Watcher struct {
	source   PriceSource
	interval time.Duration
	limiter  *infra.RateLimiter
	breaker  *infra.CircuitBreaker
	logger   *slog.Logger
	out      chan Sample

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	mints  map[string]struct{}
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher polling source every interval.
func NewWatcher(source PriceSource, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		source:   source,
		interval: interval,
		limiter:  infra.NewRateLimiter(10, 10),
		breaker:  infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("price-oracle")),
		logger:   logger,
		out:      make(chan Sample, 256),
		mints:    map[string]struct{}{},
	}
}

// Samples returns the observation stream.
func (w *Watcher) Samples() <-chan Sample { return w.out }

// Start launches poll loops for every mint registered so far. Mints added
// later via Watch get their loop immediately.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ctx, w.cancel = context.WithCancel(ctx)
	for mint := range w.mints {
		w.wg.Add(1)
		go w.pollLoop(w.ctx, mint)
	}
}

// Watch registers a mint for polling. Idempotent.
func (w *Watcher) Watch(mint string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.mints[mint]; ok {
		return
	}
	w.mints[mint] = struct{}{}
	if w.ctx != nil {
		w.wg.Add(1)
		go w.pollLoop(w.ctx, mint)
	}
}

// Stop cancels all poll loops and waits for them to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) pollLoop(ctx context.Context, mint string) {
	defer w.wg.Done()

	w.logger.Info("WATCH_STARTED", slog.String("mint", mint))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !w.breaker.Allow() {
			continue
		}
		w.limiter.Wait()

		fetchCtx, cancel := context.WithTimeout(ctx, w.interval*4)
		price, err := w.source.Price(fetchCtx, mint)
		cancel()
		if err != nil {
			w.breaker.RecordFailure()
			w.logger.Warn("PRICE_FETCH_FAILED",
				slog.String("mint", mint),
				slog.Any("err", err))
			continue
		}
		w.breaker.RecordSuccess()

		w.publish(Sample{Mint: mint, Price: price, ObservedAt: time.Now()})
	}
}

// publish never blocks a poll loop. A full channel means the consumer is
// behind; dropping the oldest observation keeps the stream fresh.
func (w *Watcher) publish(s Sample) {
	for {
		select {
		case w.out <- s:
			return
		default:
			select {
			case <-w.out:
			default:
			}
		}
	}
}
