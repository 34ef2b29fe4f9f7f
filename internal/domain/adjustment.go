package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentOffer is the backend's counter-proposal when a requested order
// exceeds available buying power. It is never applied silently: the user
// either accepts it (which re-submits with the forced flag) or discards it.
type AdjustmentOffer struct {
	SuggestionID     string
	StockName        string
	MaxBuyAmount     decimal.Decimal
	OriginalQuantity int
	Price            int64
	AdjustedQuantity int
	AdjustedAmount   decimal.Decimal
	CreatedAt        time.Time
}
