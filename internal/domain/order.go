package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// ApproveRequest is the payload for one approval round trip.
// ForceAdjusted is only ever set by the explicit adjustment-acceptance
// path; a plain approval must never carry it.
type ApproveRequest struct {
	SuggestionID  string
	Price         int64 // 0 for market orders
	Quantity      int
	IsMarketOrder bool
	ForceAdjusted bool
}

// Validate rejects requests that must not reach the network.
func (r ApproveRequest) Validate() error {
	if r.SuggestionID == "" {
		return fmt.Errorf("approve request without suggestion id")
	}
	if r.Quantity < 1 {
		return fmt.Errorf("approve %s: quantity %d < 1", r.SuggestionID, r.Quantity)
	}
	if !r.IsMarketOrder && r.Price <= 0 {
		return fmt.Errorf("approve %s: limit order without a positive price", r.SuggestionID)
	}
	return nil
}

// ApproveResult is the structured outcome of an approval call that reached
// the backend. A non-nil Offer means no order was placed and the backend
// is asking for a smaller one.
type ApproveResult struct {
	Message string
	Offer   *AdjustmentOffer
}

// NeedsAdjustment reports whether the backend countered instead of filling.
func (r ApproveResult) NeedsAdjustment() bool {
	return r.Offer != nil
}

// AccountSnapshot is a cached read of the brokerage account.
type AccountSnapshot struct {
	CashBalance decimal.Decimal
	BuyingPower decimal.Decimal
	TotalEval   decimal.Decimal
	FetchedAt   time.Time
}

// PendingOrder is a resting order reported by the brokerage.
type PendingOrder struct {
	OrderID        string
	StockCode      string
	StockName      string
	Side           tick.Side
	Price          int64
	Quantity       int
	FilledQuantity int
	CreatedAt      time.Time
}
