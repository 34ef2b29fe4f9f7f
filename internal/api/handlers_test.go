package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/internal/engine"
	"github.com/kimmove-blip/Stock-sub000/internal/event"
	"github.com/kimmove-blip/Stock-sub000/internal/storage"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

type stubBroker struct {
	mu          sync.Mutex
	buy, sell   []domain.Suggestion
	approveRes  domain.ApproveResult
	approveErr  error
	approveReqs []domain.ApproveRequest
	rejectIDs   []string
}

func (s *stubBroker) Suggestions(ctx context.Context, side tick.Side, filter domain.Filter) ([]domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == tick.Sell {
		return append([]domain.Suggestion(nil), s.sell...), nil
	}
	return append([]domain.Suggestion(nil), s.buy...), nil
}

func (s *stubBroker) Approve(ctx context.Context, req domain.ApproveRequest) (domain.ApproveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approveReqs = append(s.approveReqs, req)
	return s.approveRes, s.approveErr
}

func (s *stubBroker) Reject(ctx context.Context, suggestionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectIDs = append(s.rejectIDs, suggestionID)
	return nil
}

func (s *stubBroker) Account(ctx context.Context) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{
		CashBalance: decimal.NewFromInt(500_000),
		BuyingPower: decimal.NewFromInt(1_200_000),
		TotalEval:   decimal.NewFromInt(2_000_000),
		FetchedAt:   time.Now(),
	}, nil
}

func (s *stubBroker) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	return []domain.PendingOrder{{
		OrderID: "o1", StockCode: "005930", StockName: "삼성전자",
		Side: tick.Buy, Price: 71_000, Quantity: 3,
	}}, nil
}

func (s *stubBroker) approveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.approveReqs)
}

func (s *stubBroker) lastApprove() domain.ApproveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approveReqs[len(s.approveReqs)-1]
}

type stubDecisions struct {
	rows []storage.Decision
}

func (s *stubDecisions) Recent(ctx context.Context, limit int) ([]storage.Decision, error) {
	return s.rows, nil
}

func (s *stubDecisions) BySuggestion(ctx context.Context, suggestionID string) ([]storage.Decision, error) {
	var out []storage.Decision
	for _, d := range s.rows {
		if d.SuggestionID == suggestionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func newSuggestion(id string, side tick.Side, suggested, current int64, qty int) domain.Suggestion {
	score := decimal.NewFromFloat(0.82)
	s := domain.Suggestion{
		ID: id, Side: side, StockCode: "005930", StockName: "삼성전자",
		SuggestedPrice: suggested, CurrentPrice: current, Quantity: qty,
		Status: domain.StatusPending, CreatedAt: time.Now(),
	}
	if side == tick.Buy {
		s.Score = &score
	} else {
		s.ProfitRate = &score
	}
	return s
}

func setup(t *testing.T, broker *stubBroker, decisions DecisionReader) (*gin.Engine, *engine.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coord := engine.New(broker, nil, engine.Options{SettleDelay: 20 * time.Millisecond, InboxSize: 64})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	router := gin.New()
	RegisterRoutes(router, coord, decisions, broker)
	return router, coord
}

func populate(t *testing.T, coord *engine.Coordinator) {
	t.Helper()
	require.NoError(t, coord.Refresh(event.RefreshBackground))
	waitFor(t, "book populated", func() bool { return len(coord.Snapshot(tick.Buy)) > 0 })
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListSuggestions(t *testing.T) {
	broker := &stubBroker{buy: []domain.Suggestion{newSuggestion("s1", tick.Buy, 71_200, 71_500, 10)}}
	router, coord := setup(t, broker, nil)
	populate(t, coord)

	rec := do(router, http.MethodGet, "/api/suggestions?side=buy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Suggestions []suggestionResponse `json:"suggestions"`
		Refreshing  bool                 `json:"refreshing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Suggestions, 1)

	got := body.Suggestions[0]
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "idle", got.Lifecycle)
	assert.Equal(t, int64(71_200), got.Ticket.SelectedPrice)
	assert.Equal(t, int64(100), got.Ticket.TickSize)
	assert.Equal(t, "0.82", got.Score)
}

func TestListSuggestionsRejectsBadSide(t *testing.T) {
	router, _ := setup(t, &stubBroker{}, nil)

	rec := do(router, http.MethodGet, "/api/suggestions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/suggestions?side=hold", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSuggestionsHistoryFilter(t *testing.T) {
	broker := &stubBroker{buy: []domain.Suggestion{newSuggestion("s1", tick.Buy, 71_200, 71_500, 10)}}
	router, _ := setup(t, broker, nil)

	rec := do(router, http.MethodGet, "/api/suggestions?side=buy&filter=all", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Suggestions []historyResponse `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, "pending", body.Suggestions[0].Status)

	rec = do(router, http.MethodGet, "/api/suggestions?side=buy&filter=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveAndNotice(t *testing.T) {
	broker := &stubBroker{
		buy:        []domain.Suggestion{newSuggestion("s1", tick.Buy, 71_200, 71_500, 10)},
		approveRes: domain.ApproveResult{Message: "주문이 접수되었습니다"},
	}
	router, coord := setup(t, broker, nil)
	populate(t, coord)

	rec := do(router, http.MethodPost, "/api/suggestions/s1/approve", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitFor(t, "notice published", func() bool {
		return do(router, http.MethodGet, "/api/notice", "").Code == http.StatusOK
	})

	rec = do(router, http.MethodGet, "/api/notice", "")
	var notice map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notice))
	assert.Equal(t, "success", notice["kind"])
	assert.Equal(t, "주문이 접수되었습니다", notice["message"])
}

func TestNoticeEmpty(t *testing.T) {
	router, _ := setup(t, &stubBroker{}, nil)
	rec := do(router, http.MethodGet, "/api/notice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTicketEditValidation(t *testing.T) {
	broker := &stubBroker{buy: []domain.Suggestion{newSuggestion("s1", tick.Buy, 71_200, 71_500, 10)}}
	router, coord := setup(t, broker, nil)
	populate(t, coord)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no fields", `{}`, http.StatusBadRequest},
		{"two fields", `{"price": 71000, "quantity": 5}`, http.StatusBadRequest},
		{"zero quantity", `{"quantity": 0}`, http.StatusBadRequest},
		{"negative price", `{"price": -100}`, http.StatusBadRequest},
		{"valid quantity", `{"quantity": 5}`, http.StatusAccepted},
		{"valid step", `{"step_ticks": -2}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPut, "/api/suggestions/s1/ticket", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	waitFor(t, "edits applied", func() bool {
		v := coord.Snapshot(tick.Buy)[0]
		return v.Ticket.Quantity == 5 && v.Ticket.SelectedPrice == 71_000
	})
}

func TestAdjustmentRoundTrip(t *testing.T) {
	offer := domain.AdjustmentOffer{
		SuggestionID:     "s1",
		MaxBuyAmount:     decimal.NewFromInt(300_000),
		OriginalQuantity: 10,
		Price:            50_000,
		AdjustedQuantity: 6,
		AdjustedAmount:   decimal.NewFromInt(300_000),
	}
	broker := &stubBroker{
		buy:        []domain.Suggestion{newSuggestion("s1", tick.Buy, 50_000, 50_000, 10)},
		approveRes: domain.ApproveResult{Offer: &offer},
	}
	router, coord := setup(t, broker, nil)
	populate(t, coord)

	require.Equal(t, http.StatusNoContent, do(router, http.MethodGet, "/api/adjustment", "").Code)

	do(router, http.MethodPost, "/api/suggestions/s1/approve", "")
	waitFor(t, "offer pending", func() bool {
		return do(router, http.MethodGet, "/api/adjustment", "").Code == http.StatusOK
	})

	rec := do(router, http.MethodGet, "/api/adjustment", "")
	var got adjustmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 6, got.AdjustedQuantity)
	assert.Equal(t, "300000", got.MaxBuyAmount)
	assert.Equal(t, "삼성전자", got.StockName)

	broker.mu.Lock()
	broker.approveRes = domain.ApproveResult{Message: "ok"}
	broker.mu.Unlock()

	require.Equal(t, http.StatusAccepted, do(router, http.MethodPost, "/api/adjustment/accept", "").Code)
	waitFor(t, "forced re-submission", func() bool { return broker.approveCount() == 2 })

	req := broker.lastApprove()
	assert.True(t, req.ForceAdjusted)
	assert.Equal(t, 6, req.Quantity)

	waitFor(t, "offer cleared", func() bool {
		return do(router, http.MethodGet, "/api/adjustment", "").Code == http.StatusNoContent
	})
}

func TestRefreshEndpoint(t *testing.T) {
	broker := &stubBroker{buy: []domain.Suggestion{newSuggestion("s1", tick.Buy, 71_200, 71_500, 10)}}
	router, coord := setup(t, broker, nil)

	rec := do(router, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitFor(t, "refresh landed", func() bool {
		return !coord.Refreshing() && len(coord.Snapshot(tick.Buy)) == 1
	})
}

func TestAccountEndpoints(t *testing.T) {
	router, _ := setup(t, &stubBroker{}, nil)

	rec := do(router, http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var acct map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	assert.Equal(t, "1200000", acct["buying_power"])

	rec = do(router, http.MethodGet, "/api/orders/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var orders struct {
		Orders []pendingOrderResponse `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, "005930", orders.Orders[0].StockCode)
}

func TestListDecisions(t *testing.T) {
	rows := []storage.Decision{
		{SuggestionID: "s1", Action: "approve", Outcome: "ok", Quantity: 10, Price: 71_200, CreatedAt: time.Now()},
		{SuggestionID: "s2", Action: "reject", Outcome: "ok", CreatedAt: time.Now()},
	}
	router, _ := setup(t, &stubBroker{}, &stubDecisions{rows: rows})

	rec := do(router, http.MethodGet, "/api/decisions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Decisions []decisionResponse `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Decisions, 2)

	rec = do(router, http.MethodGet, "/api/decisions?suggestion_id=s1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Decisions, 1)
	assert.Equal(t, "approve", body.Decisions[0].Action)
}

func TestDecisionsDisabled(t *testing.T) {
	router, _ := setup(t, &stubBroker{}, nil)
	rec := do(router, http.MethodGet, "/api/decisions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
