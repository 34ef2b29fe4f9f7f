package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/internal/engine"
	"github.com/kimmove-blip/Stock-sub000/internal/event"
	"github.com/kimmove-blip/Stock-sub000/internal/storage"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// DecisionReader exposes the journal's query side.
type DecisionReader interface {
	Recent(ctx context.Context, limit int) ([]storage.Decision, error)
	BySuggestion(ctx context.Context, suggestionID string) ([]storage.Decision, error)
}

// SuggestionLister serves historical suggestion queries that bypass the
// coordinator's pending book.
type SuggestionLister interface {
	Suggestions(ctx context.Context, side tick.Side, filter domain.Filter) ([]domain.Suggestion, error)
}

// Handler serves the local intent API consumed by the desktop client.
type Handler struct {
	Coord     *engine.Coordinator
	Decisions DecisionReader
	Lister    SuggestionLister
	Validator *validator.Validate
}

func NewHandler(coord *engine.Coordinator, decisions DecisionReader, lister SuggestionLister) *Handler {
	return &Handler{
		Coord:     coord,
		Decisions: decisions,
		Lister:    lister,
		Validator: validator.New(),
	}
}

func formatValidationError(err error) map[string]string {
	errs := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			errs[e.Field()] = "failed on tag '" + e.Tag() + "'"
		}
	}
	return errs
}

type suggestionResponse struct {
	ID             string `json:"id"`
	Side           string `json:"side"`
	StockCode      string `json:"stock_code"`
	StockName      string `json:"stock_name"`
	SuggestedPrice int64  `json:"suggested_price"`
	CurrentPrice   int64  `json:"current_price"`
	Quantity       int    `json:"quantity"`
	Score          string `json:"score,omitempty"`
	ProfitRate     string `json:"profit_rate,omitempty"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Lifecycle      string `json:"lifecycle"`

	Ticket ticketResponse `json:"ticket"`
}

type ticketResponse struct {
	SelectedPrice int64 `json:"selected_price"`
	PriceVersion  int64 `json:"price_version"`
	IsMarketOrder bool  `json:"is_market_order"`
	Quantity      int   `json:"quantity"`
	TickSize      int64 `json:"tick_size"`
}

func toSuggestionResponse(v engine.SuggestionView) suggestionResponse {
	resp := suggestionResponse{
		ID:             v.Suggestion.ID,
		Side:           string(v.Suggestion.Side),
		StockCode:      v.Suggestion.StockCode,
		StockName:      v.Suggestion.StockName,
		SuggestedPrice: v.Suggestion.SuggestedPrice,
		CurrentPrice:   v.Suggestion.CurrentPrice,
		Quantity:       v.Suggestion.Quantity,
		Status:         string(v.Suggestion.Status),
		Reason:         v.Suggestion.Reason,
		Lifecycle:      string(v.Lifecycle),
		Ticket: ticketResponse{
			SelectedPrice: v.Ticket.SelectedPrice,
			PriceVersion:  v.Ticket.PriceVersion,
			IsMarketOrder: v.Ticket.IsMarketOrder,
			Quantity:      v.Ticket.Quantity,
			TickSize:      tick.Size(v.Ticket.SelectedPrice),
		},
	}
	if v.Suggestion.Score != nil {
		resp.Score = v.Suggestion.Score.String()
	}
	if v.Suggestion.ProfitRate != nil {
		resp.ProfitRate = v.Suggestion.ProfitRate.String()
	}
	return resp
}

// GET /api/suggestions?side=buy|sell&filter=pending|executed|all
//
// Pending suggestions are served from the coordinator's book, with
// tickets and lifecycle tags. History filters go straight to the
// backend; those rows carry no ticket.
func (h *Handler) ListSuggestions(c *gin.Context) {
	side := tick.Side(c.Query("side"))
	if !side.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be buy or sell"})
		return
	}

	filter := domain.Filter(c.Query("filter"))
	switch filter {
	case "", domain.FilterPending:
		views := h.Coord.Snapshot(side)
		out := make([]suggestionResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toSuggestionResponse(v))
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": out, "refreshing": h.Coord.Refreshing()})

	case domain.FilterExecuted, domain.FilterAll:
		if h.Lister == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "history queries disabled"})
			return
		}
		list, err := h.Lister.Suggestions(c.Request.Context(), side, filter)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		out := make([]historyResponse, 0, len(list))
		for _, s := range list {
			out = append(out, toHistoryResponse(s))
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": out})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be pending, executed or all"})
	}
}

type historyResponse struct {
	ID             string `json:"id"`
	Side           string `json:"side"`
	StockCode      string `json:"stock_code"`
	StockName      string `json:"stock_name"`
	SuggestedPrice int64  `json:"suggested_price"`
	CurrentPrice   int64  `json:"current_price"`
	Quantity       int    `json:"quantity"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
}

func toHistoryResponse(s domain.Suggestion) historyResponse {
	return historyResponse{
		ID:             s.ID,
		Side:           string(s.Side),
		StockCode:      s.StockCode,
		StockName:      s.StockName,
		SuggestedPrice: s.SuggestedPrice,
		CurrentPrice:   s.CurrentPrice,
		Quantity:       s.Quantity,
		Status:         string(s.Status),
		Reason:         s.Reason,
	}
}

// TicketEditRequest mutates one field of an order ticket. Exactly one
// field must be set.
type TicketEditRequest struct {
	Price       *int64 `json:"price" validate:"omitempty,min=1"`
	StepTicks   *int   `json:"step_ticks"`
	Quantity    *int   `json:"quantity" validate:"omitempty,min=1"`
	MarketOrder *bool  `json:"market_order"`
}

func (r TicketEditRequest) fieldCount() int {
	n := 0
	if r.Price != nil {
		n++
	}
	if r.StepTicks != nil {
		n++
	}
	if r.Quantity != nil {
		n++
	}
	if r.MarketOrder != nil {
		n++
	}
	return n
}

// PUT /api/suggestions/:id/ticket
func (h *Handler) EditTicket(c *gin.Context) {
	var req TicketEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.fieldCount() != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one ticket field must be set"})
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"validation_errors": formatValidationError(err)})
		return
	}

	err := h.Coord.EditTicket(event.TicketEdit{
		SuggestionID: c.Param("id"),
		Price:        req.Price,
		StepTicks:    req.StepTicks,
		Quantity:     req.Quantity,
		MarketOrder:  req.MarketOrder,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// POST /api/suggestions/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	if err := h.Coord.Approve(c.Param("id")); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// POST /api/suggestions/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	if err := h.Coord.Reject(c.Param("id")); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type adjustmentResponse struct {
	SuggestionID     string `json:"suggestion_id"`
	StockName        string `json:"stock_name"`
	MaxBuyAmount     string `json:"max_buy_amount"`
	OriginalQuantity int    `json:"original_quantity"`
	Price            int64  `json:"price"`
	AdjustedQuantity int    `json:"adjusted_quantity"`
	AdjustedAmount   string `json:"adjusted_amount"`
}

// GET /api/adjustment
func (h *Handler) GetAdjustment(c *gin.Context) {
	offer, ok := h.Coord.AdjustmentOffer()
	if !ok {
		c.JSON(http.StatusNoContent, nil)
		return
	}
	c.JSON(http.StatusOK, adjustmentResponse{
		SuggestionID:     offer.SuggestionID,
		StockName:        offer.StockName,
		MaxBuyAmount:     offer.MaxBuyAmount.String(),
		OriginalQuantity: offer.OriginalQuantity,
		Price:            offer.Price,
		AdjustedQuantity: offer.AdjustedQuantity,
		AdjustedAmount:   offer.AdjustedAmount.String(),
	})
}

// POST /api/adjustment/accept
func (h *Handler) AcceptAdjustment(c *gin.Context) {
	if err := h.Coord.AcceptAdjustment(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// POST /api/adjustment/discard
func (h *Handler) DiscardAdjustment(c *gin.Context) {
	if err := h.Coord.DiscardAdjustment(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// POST /api/refresh
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.Coord.Refresh(event.RefreshManual); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

// GET /api/notice
func (h *Handler) GetNotice(c *gin.Context) {
	n, ok := h.Coord.Notice()
	if !ok {
		c.JSON(http.StatusNoContent, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         n.ID,
		"kind":       string(n.Kind),
		"message":    n.Message,
		"expires_at": n.ExpiresAt.Format(time.RFC3339),
	})
}

// GET /api/account
func (h *Handler) GetAccount(c *gin.Context) {
	snap, err := h.Coord.Accounts().Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cash_balance": snap.CashBalance.String(),
		"buying_power": snap.BuyingPower.String(),
		"total_eval":   snap.TotalEval.String(),
		"fetched_at":   snap.FetchedAt.Format(time.RFC3339),
	})
}

type pendingOrderResponse struct {
	OrderID        string `json:"order_id"`
	StockCode      string `json:"stock_code"`
	StockName      string `json:"stock_name"`
	Side           string `json:"side"`
	Price          int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	FilledQuantity int    `json:"filled_quantity"`
}

// GET /api/orders/pending
func (h *Handler) ListPendingOrders(c *gin.Context) {
	orders, err := h.Coord.Accounts().PendingOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	out := make([]pendingOrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, pendingOrderResponse{
			OrderID:        o.OrderID,
			StockCode:      o.StockCode,
			StockName:      o.StockName,
			Side:           string(o.Side),
			Price:          o.Price,
			Quantity:       o.Quantity,
			FilledQuantity: o.FilledQuantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

type decisionResponse struct {
	SuggestionID string `json:"suggestion_id"`
	Side         string `json:"side"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Quantity     int    `json:"quantity,omitempty"`
	Price        int64  `json:"price,omitempty"`
	Forced       bool   `json:"forced,omitempty"`
	Detail       string `json:"detail,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// GET /api/decisions?suggestion_id=&limit=
func (h *Handler) ListDecisions(c *gin.Context) {
	if h.Decisions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision journal disabled"})
		return
	}

	var (
		rows []storage.Decision
		err  error
	)
	if id := c.Query("suggestion_id"); id != "" {
		rows, err = h.Decisions.BySuggestion(c.Request.Context(), id)
	} else {
		limit, _ := strconv.Atoi(c.Query("limit"))
		rows, err = h.Decisions.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]decisionResponse, 0, len(rows))
	for _, d := range rows {
		out = append(out, decisionResponse{
			SuggestionID: d.SuggestionID,
			Side:         d.Side,
			Action:       d.Action,
			Outcome:      d.Outcome,
			Quantity:     d.Quantity,
			Price:        d.Price,
			Forced:       d.Forced,
			Detail:       d.Detail,
			CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out})
}
