package brokerage

import (
	"fmt"
	"os"
	"strings"

	"github.com/kimmove-blip/Stock-sub000/internal/engine"
	"github.com/kimmove-blip/Stock-sub000/internal/infra"
)

// NewFromConfig selects the brokerage implementation for the configured
// trading mode. Live mode moves real money and therefore requires an
// explicit second confirmation via STOCKSUB_CONFIRM_LIVE.
func NewFromConfig(cfg *infra.Config) (engine.Brokerage, error) {
	switch strings.ToLower(cfg.Trading.Mode) {
	case "demo":
		return NewDemo(), nil
	case "live":
		if os.Getenv("STOCKSUB_CONFIRM_LIVE") != "true" {
			return nil, fmt.Errorf("live trading requires STOCKSUB_CONFIRM_LIVE=true")
		}
		return NewClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown trading mode: %s", cfg.Trading.Mode)
	}
}
