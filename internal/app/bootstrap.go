package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sasiyaluba/Jup-limit-order/internal/engine"
	"github.com/sasiyaluba/Jup-limit-order/internal/feed"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/jito"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/jupiter"
	"github.com/sasiyaluba/Jup-limit-order/internal/infra/solana"
	"github.com/sasiyaluba/Jup-limit-order/internal/secure"
	"github.com/sasiyaluba/Jup-limit-order/internal/service"
	"github.com/sasiyaluba/Jup-limit-order/internal/storage"
)

// feedSource is either the polling watcher or the WS stream; both expose the
// same sample channel and subscription entry point.
type feedSource interface {
	Samples() <-chan feed.Sample
	Watch(mint string)
}

// Bootstrap wires the full order engine and owns its lifecycle.
type Bootstrap struct {
	Config  *infra.Config
	Logger  *slog.Logger
	Journal *storage.OrderJournal
	Store   *storage.OrderStore
	Service *service.Service

	evaluator *engine.Evaluator
	watcher   *feed.Watcher
	wsWorker  *infra.WSWorker
	source    feedSource
	unlock    func()
}

// NewBootstrap creates an empty bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, opens the journal, and wires every component.
// Nothing runs until Start.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping swap order engine...")

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	b.Logger = logger

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	journal, err := storage.NewOrderJournal(filepath.Join(dataDir, "orders.db"))
	if err != nil {
		return fmt.Errorf("failed to open order journal: %w", err)
	}
	b.Journal = journal
	slog.Info("✅ Order journal ready (WAL-mode)", "dir", dataDir)

	codec, err := secure.NewCodec(cfg.AESKey)
	if err != nil {
		return fmt.Errorf("failed to init key codec: %w", err)
	}

	b.Store = storage.NewOrderStore(journal)

	// Price feed: polling oracle by default, streaming when configured.
	switch cfg.API.Feed.Mode {
	case "ws":
		wsFeed := feed.NewWSFeed(cfg.API.Feed.WSURL, logger)
		b.wsWorker = infra.NewWSWorker(wsFeed, logger)
		b.source = wsFeed
	default:
		priceClient := jupiter.NewPriceClient(cfg.API.Jupiter.PriceURL)
		interval := time.Duration(cfg.Engine.PollIntervalMS) * time.Millisecond
		b.watcher = feed.NewWatcher(priceClient, interval, logger)
		b.source = b.watcher
	}

	router := jupiter.NewRouter(cfg.API.Jupiter.SwapURL)
	rpc := solana.NewClient(cfg.API.Solana.RPCURL)

	var bundles engine.BundleSender
	if cfg.API.Jito.URL != "" {
		bundles = jito.NewClient(cfg.API.Jito.URL)
	}

	coordinator := engine.NewCoordinator(engine.CoordinatorConfig{
		Store:         b.Store,
		Codec:         codec,
		Router:        router,
		RPC:           rpc,
		Bundles:       bundles,
		Logger:        logger,
		QuoteTimeout:  time.Duration(cfg.Engine.QuoteTimeoutMS) * time.Millisecond,
		SubmitTimeout: time.Duration(cfg.Engine.SubmitTimeoutMS) * time.Millisecond,
		FeeAccount:    cfg.Engine.FeeAccount,
		FeeBps:        uint16(cfg.Engine.FeeBps),
	})

	staleness := time.Duration(cfg.Engine.StalenessMS) * time.Millisecond
	b.evaluator = engine.NewEvaluator(b.Store, b.source.Samples(), coordinator, staleness, logger)

	b.Service = service.NewService(b.Store, codec, b.source, logger)
	return nil
}

// Start runs the feed and the evaluator until ctx is cancelled.
func (b *Bootstrap) Start(ctx context.Context) {
	if b.wsWorker != nil {
		b.wsWorker.Start(ctx)
		slog.InfoContext(ctx, "✅ Streaming price feed started", "url", b.Config.API.Feed.WSURL)
	}
	if b.watcher != nil {
		b.watcher.Start(ctx)
		slog.InfoContext(ctx, "✅ Polling price feed started",
			"interval_ms", b.Config.Engine.PollIntervalMS)
	}

	go b.evaluator.Run(ctx)
	slog.InfoContext(ctx, "✅ Trigger evaluator started")
}

// Shutdown stops the feed and releases the workspace.
func (b *Bootstrap) Shutdown() {
	if b.wsWorker != nil {
		b.wsWorker.Stop()
	}
	if b.watcher != nil {
		b.watcher.Stop()
	}
	if b.Journal != nil {
		b.Journal.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}
