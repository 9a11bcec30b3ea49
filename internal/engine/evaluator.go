package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
	"github.com/sasiyaluba/Jup-limit-order/internal/feed"
	"github.com/sasiyaluba/Jup-limit-order/internal/storage"
)

// Executor runs the submission pipeline for a triggered order.
type Executor interface {
	Execute(ctx context.Context, orderID string)
}

// Evaluator consumes price samples and fires orders whose trigger condition
// the sample satisfies. The compare-and-transition on the store is the only
// gate, so a price observed by several samples at once still fires each
// order exactly once.
type Evaluator struct {
	store     *storage.OrderStore
	samples   <-chan feed.Sample
	executor  Executor
	staleness time.Duration
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator over the store and sample stream.
func NewEvaluator(store *storage.OrderStore, samples <-chan feed.Sample, executor Executor, staleness time.Duration, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:     store,
		samples:   samples,
		executor:  executor,
		staleness: staleness,
		logger:    logger,
	}
}

// Run blocks consuming samples until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-e.samples:
			if !ok {
				return
			}
			e.evaluate(ctx, s)
		}
	}
}

func (e *Evaluator) evaluate(ctx context.Context, s feed.Sample) {
	if age := time.Since(s.ObservedAt); age > e.staleness {
		e.logger.Warn("PRICE_STALE",
			slog.String("mint", s.Mint),
			slog.Duration("age", age),
			slog.Any("err", domain.ErrStalePrice))
		return
	}

	for _, o := range e.store.ListActive() {
		if o.State != domain.StatePending || o.InputMint != s.Mint {
			continue
		}
		if !o.Satisfied(s.Price) {
			continue
		}
		if !e.store.CompareAndTransition(o.ID, domain.StatePending, domain.StateTriggered) {
			continue
		}
		e.logger.Info("ORDER_TRIGGERED",
			slog.String("order_id", o.ID),
			slog.String("mint", s.Mint),
			slog.String("price", s.Price.String()),
			slog.String("target", o.TargetPrice.String()),
			slog.String("direction", o.Trigger.String()))
		go e.executor.Execute(ctx, o.ID)
	}
}
