package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/internal/infra"
	"github.com/kimmove-blip/Stock-sub000/internal/infra/brokerage"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// apicheck exercises the read-only backend endpoints against the
// configured credentials. Run it before a trading session to confirm
// connectivity and auth without placing any orders.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("Starting backend connectivity check")

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	client := brokerage.NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, side := range []tick.Side{tick.Buy, tick.Sell} {
		list, err := client.Suggestions(ctx, side, domain.FilterPending)
		if err != nil {
			slog.Error("Suggestion fetch failed", "side", side, slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("Suggestions OK", "side", side, "count", len(list))
	}

	snap, err := client.Account(ctx)
	if err != nil {
		slog.Error("Account fetch failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Account OK", "buying_power", snap.BuyingPower.String())

	orders, err := client.PendingOrders(ctx)
	if err != nil {
		slog.Error("Pending order fetch failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Pending orders OK", "count", len(orders))

	slog.Info("Connectivity check passed")
}
