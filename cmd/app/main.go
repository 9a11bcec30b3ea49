package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sasiyaluba/Jup-limit-order/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof server, localhost only.
	go func() {
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.Start(ctx)

	slog.InfoContext(ctx, "✨ Swap order engine operational. Press Ctrl+C to exit.")
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
