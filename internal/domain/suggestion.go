package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// Status is the server-owned suggestion status. The client never advances
// it on its own; it only reflects what the backend reported last.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
	StatusExpired  Status = "expired"
)

// Filter narrows a suggestion list fetch.
type Filter string

const (
	FilterPending  Filter = "pending"
	FilterExecuted Filter = "executed"
	FilterAll      Filter = "all"
)

// Suggestion is an AI-generated trade proposal awaiting user disposition.
// Exactly one of Score (buy) or ProfitRate (sell) is set.
type Suggestion struct {
	ID             string
	Side           tick.Side
	StockCode      string
	StockName      string
	SuggestedPrice int64 // won
	CurrentPrice   int64 // won, updated by the quote stream
	Quantity       int
	Score          *decimal.Decimal // buy-side quality metric
	ProfitRate     *decimal.Decimal // sell-side signed percentage
	Status         Status
	Reason         string
	CreatedAt      time.Time
}

// IsPending reports whether the suggestion is still open for user action.
func (s *Suggestion) IsPending() bool {
	return s.Status == StatusPending
}

// PriceVersion tags the suggestion's backend-observed price. Order tickets
// are keyed by it so a backend price change invalidates stale edits.
func (s *Suggestion) PriceVersion() int64 {
	return s.CurrentPrice
}

// Validate checks the structural invariants of a suggestion as delivered
// by the backend.
func (s *Suggestion) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("suggestion without id")
	}
	if !s.Side.Valid() {
		return fmt.Errorf("suggestion %s: unknown side %q", s.ID, s.Side)
	}
	if s.SuggestedPrice < 0 || s.CurrentPrice < 0 {
		return fmt.Errorf("suggestion %s: negative price", s.ID)
	}
	if s.Quantity < 1 {
		return fmt.Errorf("suggestion %s: quantity %d < 1", s.ID, s.Quantity)
	}
	switch s.Side {
	case tick.Buy:
		if s.Score == nil || s.ProfitRate != nil {
			return fmt.Errorf("suggestion %s: buy side must carry score only", s.ID)
		}
	case tick.Sell:
		if s.ProfitRate == nil || s.Score != nil {
			return fmt.Errorf("suggestion %s: sell side must carry profit rate only", s.ID)
		}
	}
	return nil
}
