package brokerage

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// Demo is an in-memory brokerage for demo mode. It serves a fixed set
// of sample suggestions and simulates the backend's order flow,
// including the insufficient-funds adjustment round trip, without
// touching a real account.
type Demo struct {
	mu          sync.Mutex
	buy, sell   []domain.Suggestion
	cash        decimal.Decimal
	buyingPower decimal.Decimal
	pending     []domain.PendingOrder
}

func NewDemo() *Demo {
	score := decimal.NewFromFloat(0.91)
	score2 := decimal.NewFromFloat(0.77)
	profit := decimal.NewFromFloat(4.2)
	now := time.Now()

	return &Demo{
		cash:        decimal.NewFromInt(500_000),
		buyingPower: decimal.NewFromInt(500_000),
		buy: []domain.Suggestion{
			{
				ID: uuid.NewString(), Side: tick.Buy,
				StockCode: "005930", StockName: "삼성전자",
				SuggestedPrice: 71_200, CurrentPrice: 71_500, Quantity: 5,
				Score: &score, Status: domain.StatusPending,
				Reason: "거래량 급증 + 기관 순매수", CreatedAt: now,
			},
			{
				ID: uuid.NewString(), Side: tick.Buy,
				StockCode: "000660", StockName: "SK하이닉스",
				SuggestedPrice: 131_000, CurrentPrice: 132_500, Quantity: 10,
				Score: &score2, Status: domain.StatusPending,
				Reason: "업황 개선 시그널", CreatedAt: now,
			},
		},
		sell: []domain.Suggestion{
			{
				ID: uuid.NewString(), Side: tick.Sell,
				StockCode: "035420", StockName: "NAVER",
				SuggestedPrice: 182_000, CurrentPrice: 184_300, Quantity: 3,
				ProfitRate: &profit, Status: domain.StatusPending,
				Reason: "목표 수익률 도달", CreatedAt: now,
			},
		},
	}
}

func (d *Demo) Suggestions(ctx context.Context, side tick.Side, filter domain.Filter) ([]domain.Suggestion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src := d.buy
	if side == tick.Sell {
		src = d.sell
	}
	out := make([]domain.Suggestion, len(src))
	copy(out, src)
	return out, nil
}

func (d *Demo) Approve(ctx context.Context, req domain.ApproveRequest) (domain.ApproveResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ApproveResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sug, ok := d.find(req.SuggestionID)
	if !ok {
		return domain.ApproveResult{}, &APIError{StatusCode: http.StatusNotFound, Detail: "존재하지 않는 추천입니다"}
	}

	price := req.Price
	if req.IsMarketOrder {
		price = sug.CurrentPrice
	}

	if sug.Side == tick.Buy {
		amount := decimal.NewFromInt(price).Mul(decimal.NewFromInt(int64(req.Quantity)))
		if !req.ForceAdjusted && amount.GreaterThan(d.buyingPower) {
			adjusted := int(d.buyingPower.Div(decimal.NewFromInt(price)).IntPart())
			if adjusted < 1 {
				return domain.ApproveResult{}, &APIError{StatusCode: http.StatusBadRequest, Detail: "주문가능금액이 부족합니다"}
			}
			return domain.ApproveResult{Offer: &domain.AdjustmentOffer{
				SuggestionID:     sug.ID,
				StockName:        sug.StockName,
				MaxBuyAmount:     d.buyingPower,
				OriginalQuantity: req.Quantity,
				Price:            price,
				AdjustedQuantity: adjusted,
				AdjustedAmount:   decimal.NewFromInt(price).Mul(decimal.NewFromInt(int64(adjusted))),
				CreatedAt:        time.Now(),
			}}, nil
		}

		spend := decimal.NewFromInt(price).Mul(decimal.NewFromInt(int64(req.Quantity)))
		if spend.GreaterThan(d.buyingPower) {
			spend = d.buyingPower
		}
		d.buyingPower = d.buyingPower.Sub(spend)
		d.cash = d.cash.Sub(spend)
	}

	d.pending = append(d.pending, domain.PendingOrder{
		OrderID:   uuid.NewString(),
		StockCode: sug.StockCode,
		StockName: sug.StockName,
		Side:      sug.Side,
		Price:     price,
		Quantity:  req.Quantity,
		CreatedAt: time.Now(),
	})
	d.remove(req.SuggestionID)

	return domain.ApproveResult{Message: "주문이 접수되었습니다 (모의)"}, nil
}

func (d *Demo) Reject(ctx context.Context, suggestionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.find(suggestionID); !ok {
		return &APIError{StatusCode: http.StatusNotFound, Detail: "존재하지 않는 추천입니다"}
	}
	d.remove(suggestionID)
	return nil
}

func (d *Demo) Account(ctx context.Context) (domain.AccountSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return domain.AccountSnapshot{
		CashBalance: d.cash,
		BuyingPower: d.buyingPower,
		TotalEval:   d.cash,
		FetchedAt:   time.Now(),
	}, nil
}

func (d *Demo) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.PendingOrder, len(d.pending))
	copy(out, d.pending)
	return out, nil
}

func (d *Demo) find(id string) (domain.Suggestion, bool) {
	for _, s := range d.buy {
		if s.ID == id {
			return s, true
		}
	}
	for _, s := range d.sell {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Suggestion{}, false
}

func (d *Demo) remove(id string) {
	filter := func(list []domain.Suggestion) []domain.Suggestion {
		out := list[:0]
		for _, s := range list {
			if s.ID != id {
				out = append(out, s)
			}
		}
		return out
	}
	d.buy = filter(d.buy)
	d.sell = filter(d.sell)
}
