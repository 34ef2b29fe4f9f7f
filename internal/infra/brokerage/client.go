// Package brokerage implements the HTTP client for the backend trading
// service: suggestion lists, the approve/reject protocol including the
// two-phase funds-adjustment negotiation, and the informational account
// reads.
package brokerage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/internal/infra"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

const (
	// Informational reads may retry; trade actions never do.
	readAttempts = 3
	readRetryGap = 1 * time.Second
)

// Client talks to the backend trading service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *infra.CircuitBreaker
	retryGap   time.Duration
}

// NewClient creates a backend client from config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL:    cfg.Backend.BaseURL,
		token:      cfg.Backend.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		breaker:    infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("brokerage-reads")),
		retryGap:   readRetryGap,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do executes the request and decodes a 2xx body into out. Non-2xx
// responses become *APIError carrying the server detail verbatim.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ep errorPayload
		if json.Unmarshal(raw, &ep) == nil && ep.Detail != "" {
			return &APIError{StatusCode: resp.StatusCode, Detail: ep.Detail}
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("backend returned %s", resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

// doRead wraps do with circuit breaking and a small bounded retry for
// the informational endpoints.
func (c *Client) doRead(ctx context.Context, path string, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("backend reads temporarily unavailable (circuit open)")
	}

	var lastErr error
	for attempt := 0; attempt < readAttempts; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying backend read", slog.String("path", path), slog.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(infra.BackoffFrom(c.retryGap, attempt-1)):
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if lastErr = c.do(req, out); lastErr == nil {
			c.breaker.RecordSuccess()
			return nil
		}
		// Client-side rejections (4xx) won't improve on retry.
		if ae, ok := lastErr.(*APIError); ok && ae.StatusCode < 500 {
			break
		}
	}

	c.breaker.RecordFailure()
	return lastErr
}

// Suggestions fetches the suggestion list for one side.
func (c *Client) Suggestions(ctx context.Context, side tick.Side, filter domain.Filter) ([]domain.Suggestion, error) {
	path := fmt.Sprintf("/api/v1/suggestions?side=%s&filter=%s",
		url.QueryEscape(string(side)), url.QueryEscape(string(filter)))

	var payload suggestionListPayload
	if err := c.doRead(ctx, path, &payload); err != nil {
		return nil, err
	}

	out := make([]domain.Suggestion, 0, len(payload.Suggestions))
	for _, p := range payload.Suggestions {
		s := p.toDomain()
		if err := s.Validate(); err != nil {
			slog.Warn("Dropping malformed suggestion", slog.Any("error", err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Approve submits one approval. Exactly one round trip: trade actions
// are never retried blindly. The returned ApproveResult distinguishes a
// placed order from a funds-adjustment counter-offer.
func (c *Client) Approve(ctx context.Context, req domain.ApproveRequest) (domain.ApproveResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ApproveResult{}, err
	}

	payload := approvePayload{
		CustomQuantity: req.Quantity,
		IsMarketOrder:  req.IsMarketOrder,
		ForceAdjusted:  req.ForceAdjusted,
	}
	if !req.IsMarketOrder {
		price := req.Price
		payload.CustomPrice = &price
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost,
		"/api/v1/suggestions/"+url.PathEscape(req.SuggestionID)+"/approve", payload)
	if err != nil {
		return domain.ApproveResult{}, err
	}

	var resp approveResponse
	if err := c.do(httpReq, &resp); err != nil {
		return domain.ApproveResult{}, err
	}

	switch resp.Status {
	case "ok":
		return domain.ApproveResult{Message: resp.Message}, nil
	case "need_adjustment":
		return domain.ApproveResult{
			Offer: &domain.AdjustmentOffer{
				SuggestionID:     req.SuggestionID,
				MaxBuyAmount:     resp.MaxBuyAmt,
				OriginalQuantity: resp.OriginalQuantity,
				Price:            resp.Price,
				AdjustedQuantity: resp.AdjustedQuantity,
				AdjustedAmount:   resp.AdjustedAmount,
				CreatedAt:        time.Now(),
			},
		}, nil
	default:
		return domain.ApproveResult{}, fmt.Errorf("unexpected approve status %q", resp.Status)
	}
}

// Reject submits one rejection. Like Approve, never retried.
func (c *Client) Reject(ctx context.Context, suggestionID string) error {
	httpReq, err := c.newRequest(ctx, http.MethodPost,
		"/api/v1/suggestions/"+url.PathEscape(suggestionID)+"/reject", struct{}{})
	if err != nil {
		return err
	}

	var resp rejectResponse
	if err := c.do(httpReq, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected reject status %q", resp.Status)
	}
	return nil
}

// Account fetches the account snapshot.
func (c *Client) Account(ctx context.Context) (domain.AccountSnapshot, error) {
	var payload accountPayload
	if err := c.doRead(ctx, "/api/v1/account", &payload); err != nil {
		return domain.AccountSnapshot{}, err
	}
	return domain.AccountSnapshot{
		CashBalance: payload.CashBalance,
		BuyingPower: payload.BuyingPower,
		TotalEval:   payload.TotalEval,
		FetchedAt:   time.Now(),
	}, nil
}

// PendingOrders fetches the resting orders on the account.
func (c *Client) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	var payload pendingOrderListPayload
	if err := c.doRead(ctx, "/api/v1/orders/pending", &payload); err != nil {
		return nil, err
	}

	out := make([]domain.PendingOrder, 0, len(payload.Orders))
	for _, p := range payload.Orders {
		out = append(out, domain.PendingOrder{
			OrderID:        p.OrderID,
			StockCode:      p.StockCode,
			StockName:      p.StockName,
			Side:           tick.Side(p.Side),
			Price:          p.Price,
			Quantity:       p.Quantity,
			FilledQuantity: p.FilledQuantity,
			CreatedAt:      p.CreatedAt,
		})
	}
	return out, nil
}
