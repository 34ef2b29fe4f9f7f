// Package event defines the messages flowing through the coordinator's
// single-threaded inbox: user intents going in, network completions and
// timer expiries coming back.
package event

import (
	"time"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// Type defines the type of event.
type Type uint16

const (
	EvApproveIntent Type = iota + 1
	EvRejectIntent
	EvTicketEdit
	EvAdjustmentAccept
	EvAdjustmentDiscard
	EvRefreshIntent
	EvApproveDone
	EvRejectDone
	EvRefreshDone
	EvSettleElapsed
	EvQuote
)

// Event is the interface for all coordinator inbox messages.
type Event interface {
	GetTs() time.Time
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts time.Time `json:"ts"`
}

func (e BaseEvent) GetTs() time.Time { return e.Ts }

// ApproveIntent asks the coordinator to approve a suggestion with its
// current ticket snapshot.
type ApproveIntent struct {
	BaseEvent
	SuggestionID string `json:"suggestion_id"`
}

func (e ApproveIntent) GetType() Type { return EvApproveIntent }

// RejectIntent asks the coordinator to reject a suggestion.
type RejectIntent struct {
	BaseEvent
	SuggestionID string `json:"suggestion_id"`
}

func (e RejectIntent) GetType() Type { return EvRejectIntent }

// TicketEdit mutates one field of a suggestion's order ticket.
// Exactly one of the pointers is non-nil.
type TicketEdit struct {
	BaseEvent
	SuggestionID string `json:"suggestion_id"`
	Price        *int64 `json:"price,omitempty"`
	StepTicks    *int   `json:"step_ticks,omitempty"`
	Quantity     *int   `json:"quantity,omitempty"`
	MarketOrder  *bool  `json:"market_order,omitempty"`
}

func (e TicketEdit) GetType() Type { return EvTicketEdit }

// AdjustmentAccept confirms the pending adjustment offer. This is the only
// path that produces a force_adjusted approval.
type AdjustmentAccept struct {
	BaseEvent
}

func (e AdjustmentAccept) GetType() Type { return EvAdjustmentAccept }

// AdjustmentDiscard drops the pending adjustment offer.
type AdjustmentDiscard struct {
	BaseEvent
}

func (e AdjustmentDiscard) GetType() Type { return EvAdjustmentDiscard }

// RefreshMode distinguishes a soft background refetch from a
// user-initiated hard refresh.
type RefreshMode string

const (
	RefreshBackground RefreshMode = "background"
	RefreshManual     RefreshMode = "manual"
)

// RefreshIntent asks the coordinator to refetch the suggestion lists.
type RefreshIntent struct {
	BaseEvent
	Mode RefreshMode `json:"mode"`
}

func (e RefreshIntent) GetType() Type { return EvRefreshIntent }

// ApproveDone carries the result of an approval round trip back into the
// loop. Err and Result are mutually exclusive. Side and StockName are
// stamped at dispatch so the outcome can be journaled even when a refresh
// has replaced the book in the meantime.
type ApproveDone struct {
	BaseEvent
	SuggestionID string
	Side         tick.Side
	StockName    string
	Request      domain.ApproveRequest
	Result       domain.ApproveResult
	Err          error
}

func (e ApproveDone) GetType() Type { return EvApproveDone }

// RejectDone carries the result of a rejection round trip. Side is
// stamped at dispatch.
type RejectDone struct {
	BaseEvent
	SuggestionID string
	Side         tick.Side
	Err          error
}

func (e RejectDone) GetType() Type { return EvRejectDone }

// RefreshDone delivers freshly fetched suggestion lists. Gen identifies
// the refresh round; a stale generation is discarded so an older fetch
// can never overwrite a newer one.
type RefreshDone struct {
	BaseEvent
	Mode RefreshMode
	Gen  uint64
	Buy  []domain.Suggestion
	Sell []domain.Suggestion
	Err  error
}

func (e RefreshDone) GetType() Type { return EvRefreshDone }

// SettleElapsed fires after the post-approval settle delay and triggers
// cache invalidation.
type SettleElapsed struct {
	BaseEvent
	SuggestionID string
	Side         tick.Side
	Action       string // "approve" or "reject"
}

func (e SettleElapsed) GetType() Type { return EvSettleElapsed }

// Quote is a realtime price update from the quote stream. It applies to
// every suggestion carrying the stock code, on both sides.
type Quote struct {
	BaseEvent
	StockCode string `json:"code"`
	Price     int64  `json:"price"`
}

func (e Quote) GetType() Type { return EvQuote }
