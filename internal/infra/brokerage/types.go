package brokerage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// Wire types for the backend trading service. Amounts that can carry
// fractions (valuations, rates) are decimals; won prices are int64.

type suggestionPayload struct {
	ID             string           `json:"id"`
	Side           string           `json:"side"`
	StockCode      string           `json:"stock_code"`
	StockName      string           `json:"stock_name"`
	SuggestedPrice int64            `json:"suggested_price"`
	CurrentPrice   int64            `json:"current_price"`
	Quantity       int              `json:"quantity"`
	Score          *decimal.Decimal `json:"score,omitempty"`
	ProfitRate     *decimal.Decimal `json:"profit_rate,omitempty"`
	Status         string           `json:"status"`
	Reason         string           `json:"reason"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (p suggestionPayload) toDomain() domain.Suggestion {
	return domain.Suggestion{
		ID:             p.ID,
		Side:           tick.Side(p.Side),
		StockCode:      p.StockCode,
		StockName:      p.StockName,
		SuggestedPrice: p.SuggestedPrice,
		CurrentPrice:   p.CurrentPrice,
		Quantity:       p.Quantity,
		Score:          p.Score,
		ProfitRate:     p.ProfitRate,
		Status:         domain.Status(p.Status),
		Reason:         p.Reason,
		CreatedAt:      p.CreatedAt,
	}
}

type suggestionListPayload struct {
	Suggestions []suggestionPayload `json:"suggestions"`
}

type approvePayload struct {
	CustomPrice    *int64 `json:"custom_price,omitempty"` // omitted for market orders
	CustomQuantity int    `json:"custom_quantity"`
	IsMarketOrder  bool   `json:"is_market_order"`
	ForceAdjusted  bool   `json:"force_adjusted,omitempty"`
}

// approveResponse covers both the "ok" and "need_adjustment" shapes.
type approveResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`

	MaxBuyAmt        decimal.Decimal `json:"max_buy_amt"`
	OriginalQuantity int             `json:"original_quantity"`
	Price            int64           `json:"price"`
	AdjustedQuantity int             `json:"adjusted_quantity"`
	AdjustedAmount   decimal.Decimal `json:"adjusted_amount"`
}

type rejectResponse struct {
	Status string `json:"status"`
}

type errorPayload struct {
	Detail string `json:"detail"`
}

type accountPayload struct {
	CashBalance decimal.Decimal `json:"cash_balance"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	TotalEval   decimal.Decimal `json:"total_eval"`
}

type pendingOrderPayload struct {
	OrderID        string    `json:"order_id"`
	StockCode      string    `json:"stock_code"`
	StockName      string    `json:"stock_name"`
	Side           string    `json:"side"`
	Price          int64     `json:"price"`
	Quantity       int       `json:"quantity"`
	FilledQuantity int       `json:"filled_quantity"`
	CreatedAt      time.Time `json:"created_at"`
}

type pendingOrderListPayload struct {
	Orders []pendingOrderPayload `json:"orders"`
}

// APIError is a business or transport failure reported by the backend.
// Error() is the server's human-readable detail, verbatim, because it is
// shown to the user unmodified.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string { return e.Detail }
