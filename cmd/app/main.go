package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kimmove-blip/Stock-sub000/internal/api"
	"github.com/kimmove-blip/Stock-sub000/internal/app"
	"github.com/kimmove-blip/Stock-sub000/internal/engine"
	"github.com/kimmove-blip/Stock-sub000/internal/event"
	"github.com/kimmove-blip/Stock-sub000/internal/infra"
	"github.com/kimmove-blip/Stock-sub000/internal/infra/brokerage"
	"github.com/kimmove-blip/Stock-sub000/internal/infra/quotes"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, err := brokerage.NewFromConfig(cfg)
	if err != nil {
		slog.Error("Brokerage init failed", slog.Any("error", err))
		os.Exit(1)
	}
	coord := engine.New(broker, bootstrap.Journal, engine.Options{
		SettleDelay: cfg.SettleDelay(),
		NoticeTTL:   cfg.NoticeTTL(),
	})
	go coord.Run(ctx)

	// Initial load plus periodic background refetch.
	if err := coord.Refresh(event.RefreshBackground); err != nil {
		slog.Error("Initial refresh failed", slog.Any("error", err))
	}
	go pollLoop(ctx, coord, cfg.PollInterval())

	var quoteWorker *quotes.Worker
	if cfg.Backend.WSURL != "" {
		quoteWorker = quotes.NewWorker(cfg.Backend.WSURL, cfg.Backend.APIToken, coord.StockCodes, coord.Inbox())
		quoteWorker.Start(ctx)
		defer quoteWorker.Stop()
		go resubscribeLoop(ctx, coord, quoteWorker, cfg.PollInterval())
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, coord, bootstrap.Journal, broker)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: router}
	go func() {
		slog.Info("Intent API listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Intent API failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Intent API shutdown failed", slog.Any("error", err))
	}
}

func pollLoop(ctx context.Context, coord *engine.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := coord.Refresh(event.RefreshBackground); err != nil {
				return
			}
		}
	}
}

// resubscribeLoop keeps the quote subscription aligned with the codes
// the book currently holds.
func resubscribeLoop(ctx context.Context, coord *engine.Coordinator, w *quotes.Worker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			codes := coord.StockCodes()
			if !sameCodes(last, codes) {
				w.Resubscribe()
				last = codes
			}
		}
	}
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		if !seen[c] {
			return false
		}
	}
	return true
}
