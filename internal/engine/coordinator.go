// Package engine drives the suggestion lifecycle: a single-goroutine
// coordinator serializes user intents and network completions through an
// inbox channel, so the in-flight check and insert are always ordered
// before any network dispatch, regardless of how fast the user clicks.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/internal/event"
	"github.com/kimmove-blip/Stock-sub000/internal/storage"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

var (
	ErrUnknownSuggestion = errors.New("engine: unknown suggestion")
	ErrStopped           = errors.New("engine: coordinator stopped")
)

// Lifecycle is the client-observed state of one suggestion, kept apart
// from the server-owned Status and never merged into it.
type Lifecycle string

const (
	LifecycleIdle      Lifecycle = "idle"
	LifecycleApproving Lifecycle = "in-flight-approve"
	LifecycleRejecting Lifecycle = "in-flight-reject"
	LifecycleSettling  Lifecycle = "settling"
)

// Brokerage is the backend trading service as the coordinator consumes it.
type Brokerage interface {
	Suggestions(ctx context.Context, side tick.Side, filter domain.Filter) ([]domain.Suggestion, error)
	Approve(ctx context.Context, req domain.ApproveRequest) (domain.ApproveResult, error)
	Reject(ctx context.Context, suggestionID string) error
	Account(ctx context.Context) (domain.AccountSnapshot, error)
	PendingOrders(ctx context.Context) ([]domain.PendingOrder, error)
}

// Recorder appends decisions to the audit journal.
type Recorder interface {
	Record(ctx context.Context, d storage.Decision) error
}

// Options tunes the coordinator.
type Options struct {
	SettleDelay time.Duration // delay before cache invalidation after a settled action
	NoticeTTL   time.Duration // visible lifetime of a notification
	AccountTTL  time.Duration // staleness bound for informational reads
	InboxSize   int
}

func (o *Options) applyDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 1500 * time.Millisecond
	}
	if o.NoticeTTL <= 0 {
		o.NoticeTTL = 5 * time.Second
	}
	if o.AccountTTL <= 0 {
		o.AccountTTL = 30 * time.Second
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
}

// SuggestionView is a read snapshot of one suggestion with its ticket
// and client lifecycle tag.
type SuggestionView struct {
	Suggestion domain.Suggestion
	Ticket     domain.OrderTicket
	Lifecycle  Lifecycle
}

// Coordinator is the approval state machine. All mutation happens on the
// Run goroutine; the mutex exists only for external read snapshots.
type Coordinator struct {
	inbox    chan event.Event
	done     chan struct{}
	stopOnce sync.Once

	broker   Brokerage
	journal  Recorder
	notifier *Notifier
	accounts *AccountCache

	settleDelay time.Duration

	mu       sync.RWMutex
	book     *SuggestionBook
	inflight map[string]Lifecycle
	offer    *domain.AdjustmentOffer

	refreshing  atomic.Bool // the synchronous "hard refresh in progress" signal
	refreshGen  uint64      // loop-owned; stamps each refresh round
	manualFloor uint64      // lowest generation whose settle may clear the refreshing signal
}

// New creates a coordinator. Run must be started before intents make
// progress.
func New(broker Brokerage, journal Recorder, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		inbox:       make(chan event.Event, opts.InboxSize),
		done:        make(chan struct{}),
		broker:      broker,
		journal:     journal,
		notifier:    NewNotifier(opts.NoticeTTL),
		accounts:    NewAccountCache(broker, opts.AccountTTL),
		settleDelay: opts.SettleDelay,
		book:        NewSuggestionBook(),
		inflight:    make(map[string]Lifecycle),
	}
}

// Inbox returns the event channel for external producers (quote stream).
func (c *Coordinator) Inbox() chan<- event.Event {
	return c.inbox
}

// Run starts the coordinator loop. It must run in a single goroutine and
// returns when ctx is cancelled. After teardown every late completion,
// settle timer and intent is a no-op.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("Coordinator started")
	defer c.stopOnce.Do(func() { close(c.done) })
	defer c.notifier.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Coordinator stopping...")
			return
		case ev := <-c.inbox:
			c.processEvent(ctx, ev)
		}
	}
}

// post delivers an event unless the coordinator has been torn down.
func (c *Coordinator) post(ev event.Event) bool {
	select {
	case <-c.done:
		return false
	case c.inbox <- ev:
		return true
	}
}

func (c *Coordinator) processEvent(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.ApproveIntent:
		c.handleApprove(ctx, e.SuggestionID)
	case event.RejectIntent:
		c.handleReject(ctx, e.SuggestionID)
	case event.TicketEdit:
		c.handleTicketEdit(e)
	case event.AdjustmentAccept:
		c.handleAdjustmentAccept(ctx)
	case event.AdjustmentDiscard:
		c.handleAdjustmentDiscard(ctx)
	case event.RefreshIntent:
		c.handleRefreshIntent(ctx, e.Mode)
	case event.RefreshDone:
		c.handleRefreshDone(e)
	case event.ApproveDone:
		c.handleApproveDone(ctx, e)
	case event.RejectDone:
		c.handleRejectDone(ctx, e)
	case event.SettleElapsed:
		c.handleSettle(ctx, e)
	case event.Quote:
		c.handleQuote(e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// --- intents -----------------------------------------------------------

// Approve asks for the suggestion to be approved with its current ticket
// snapshot. A duplicate while the id is in flight is silently ignored.
func (c *Coordinator) Approve(suggestionID string) error {
	if !c.post(event.ApproveIntent{BaseEvent: now(), SuggestionID: suggestionID}) {
		return ErrStopped
	}
	return nil
}

// Reject asks for the suggestion to be rejected.
func (c *Coordinator) Reject(suggestionID string) error {
	if !c.post(event.RejectIntent{BaseEvent: now(), SuggestionID: suggestionID}) {
		return ErrStopped
	}
	return nil
}

// EditTicket applies one ticket mutation.
func (c *Coordinator) EditTicket(edit event.TicketEdit) error {
	edit.BaseEvent = now()
	if !c.post(edit) {
		return ErrStopped
	}
	return nil
}

// AcceptAdjustment confirms the pending adjustment offer; the forced
// re-submission carries the server-suggested quantity.
func (c *Coordinator) AcceptAdjustment() error {
	if !c.post(event.AdjustmentAccept{BaseEvent: now()}) {
		return ErrStopped
	}
	return nil
}

// DiscardAdjustment drops the pending adjustment offer.
func (c *Coordinator) DiscardAdjustment() error {
	if !c.post(event.AdjustmentDiscard{BaseEvent: now()}) {
		return ErrStopped
	}
	return nil
}

// Refresh refetches the suggestion lists. In manual mode the refreshing
// signal is raised synchronously, before the eviction is even scheduled,
// so the UI can switch to its loading state without a stale frame.
func (c *Coordinator) Refresh(mode event.RefreshMode) error {
	if mode == event.RefreshManual {
		// The signal may only be cleared by a fetch generation the
		// manual intent has yet to receive. A background completion
		// already sitting in the inbox carries an older generation and
		// must not clear it.
		c.mu.Lock()
		if c.refreshGen+1 > c.manualFloor {
			c.manualFloor = c.refreshGen + 1
		}
		c.mu.Unlock()
		c.refreshing.Store(true)
	}
	if !c.post(event.RefreshIntent{BaseEvent: now(), Mode: mode}) {
		if mode == event.RefreshManual {
			c.refreshing.Store(false)
		}
		return ErrStopped
	}
	return nil
}

// --- reads -------------------------------------------------------------

// Snapshot returns one side's suggestions with tickets and lifecycle tags.
func (c *Coordinator) Snapshot(side tick.Side) []SuggestionView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.book.List(side)
	out := make([]SuggestionView, 0, len(list))
	for _, s := range list {
		ticket, _ := c.book.Ticket(s.ID)
		lc, ok := c.inflight[s.ID]
		if !ok {
			lc = LifecycleIdle
		}
		out = append(out, SuggestionView{Suggestion: s, Ticket: ticket, Lifecycle: lc})
	}
	return out
}

// InFlight reports whether the suggestion currently has a round trip (or
// settle window) outstanding.
func (c *Coordinator) InFlight(suggestionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inflight[suggestionID]
	return ok
}

// AdjustmentOffer returns the pending adjustment offer, if any.
func (c *Coordinator) AdjustmentOffer() (domain.AdjustmentOffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.offer == nil {
		return domain.AdjustmentOffer{}, false
	}
	return *c.offer, true
}

// Refreshing reports whether a manual hard refresh is in progress.
func (c *Coordinator) Refreshing() bool {
	return c.refreshing.Load()
}

// Notice returns the currently visible notification, if any.
func (c *Coordinator) Notice() (domain.Notice, bool) {
	return c.notifier.Current()
}

// Accounts exposes the cached informational reads.
func (c *Coordinator) Accounts() *AccountCache {
	return c.accounts
}

// StockCodes returns the stock codes currently tracked, for the quote
// stream subscription.
func (c *Coordinator) StockCodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.book.StockCodes()
}

// --- loop handlers -----------------------------------------------------

func (c *Coordinator) handleApprove(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sug, ok := c.book.Get(id)
	if !ok {
		slog.Warn("Approve for unknown suggestion", slog.String("id", id))
		return
	}
	if _, busy := c.inflight[id]; busy {
		// Second click racing the first round trip: idempotent no-op.
		slog.Debug("Duplicate approve ignored", slog.String("id", id))
		return
	}

	ticket, ok := c.book.Ticket(id)
	if !ok {
		slog.Warn("Approve without ticket", slog.String("id", id))
		return
	}
	if err := ticket.Validate(); err != nil {
		slog.Warn("Approve blocked by ticket validation", slog.Any("error", err))
		return
	}

	req := domain.ApproveRequest{
		SuggestionID:  id,
		Quantity:      ticket.Quantity,
		IsMarketOrder: ticket.IsMarketOrder,
	}
	if !ticket.IsMarketOrder {
		req.Price = ticket.SelectedPrice
	}

	c.inflight[id] = LifecycleApproving
	c.record(ctx, storage.Decision{
		SuggestionID: id, Side: string(sug.Side), Action: "approve", Outcome: "dispatched",
		Quantity: req.Quantity, Price: req.Price, CreatedAt: time.Now(),
	})

	go c.dispatchApprove(ctx, req, sug.Side, sug.StockName)
}

// dispatchApprove stamps the completion with the side and name known at
// dispatch; the book may have been replaced by the time it lands.
func (c *Coordinator) dispatchApprove(ctx context.Context, req domain.ApproveRequest, side tick.Side, stockName string) {
	res, err := c.broker.Approve(ctx, req)
	c.post(event.ApproveDone{
		BaseEvent: now(), SuggestionID: req.SuggestionID,
		Side: side, StockName: stockName,
		Request: req, Result: res, Err: err,
	})
}

func (c *Coordinator) handleApproveDone(ctx context.Context, e event.ApproveDone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case e.Err != nil:
		// The in-flight marker clears on every outcome path; a failure
		// must never leave the suggestion stuck "removing".
		delete(c.inflight, e.SuggestionID)
		c.notifier.Notify(domain.NoticeError, e.Err.Error())
		c.record(ctx, storage.Decision{
			SuggestionID: e.SuggestionID, Side: string(e.Side), Action: "approve", Outcome: "error",
			Quantity: e.Request.Quantity, Price: e.Request.Price, Forced: e.Request.ForceAdjusted,
			Detail: e.Err.Error(), CreatedAt: time.Now(),
		})

	case e.Result.NeedsAdjustment():
		// No order was placed. Free the id for retry and hold the offer
		// for an explicit user decision; never auto-apply it.
		delete(c.inflight, e.SuggestionID)
		offer := *e.Result.Offer
		if offer.StockName == "" {
			offer.StockName = e.StockName
		}
		c.offer = &offer
		c.record(ctx, storage.Decision{
			SuggestionID: e.SuggestionID, Side: string(e.Side), Action: "approve", Outcome: "need_adjustment",
			Quantity: e.Request.Quantity, Price: e.Request.Price,
			Detail: "max_buy_amt " + offer.MaxBuyAmount.String(), CreatedAt: time.Now(),
		})

	default:
		msg := e.Result.Message
		if msg == "" {
			msg = "order accepted"
		}
		c.notifier.Notify(domain.NoticeSuccess, msg)
		c.inflight[e.SuggestionID] = LifecycleSettling
		c.record(ctx, storage.Decision{
			SuggestionID: e.SuggestionID, Side: string(e.Side), Action: "approve", Outcome: "ok",
			Quantity: e.Request.Quantity, Price: e.Request.Price, Forced: e.Request.ForceAdjusted,
			Detail: e.Result.Message, CreatedAt: time.Now(),
		})
		c.scheduleSettle(e.SuggestionID, e.Side, "approve")
	}
}

func (c *Coordinator) handleReject(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sug, ok := c.book.Get(id)
	if !ok {
		slog.Warn("Reject for unknown suggestion", slog.String("id", id))
		return
	}
	if _, busy := c.inflight[id]; busy {
		slog.Debug("Duplicate reject ignored", slog.String("id", id))
		return
	}

	c.inflight[id] = LifecycleRejecting
	c.record(ctx, storage.Decision{
		SuggestionID: id, Side: string(sug.Side), Action: "reject", Outcome: "dispatched",
		CreatedAt: time.Now(),
	})

	side := sug.Side
	go func() {
		err := c.broker.Reject(ctx, id)
		c.post(event.RejectDone{BaseEvent: now(), SuggestionID: id, Side: side, Err: err})
	}()
}

func (c *Coordinator) handleRejectDone(ctx context.Context, e event.RejectDone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Err != nil {
		delete(c.inflight, e.SuggestionID)
		c.notifier.Notify(domain.NoticeError, e.Err.Error())
		c.record(ctx, storage.Decision{
			SuggestionID: e.SuggestionID, Side: string(e.Side), Action: "reject", Outcome: "error",
			Detail: e.Err.Error(), CreatedAt: time.Now(),
		})
		return
	}

	c.notifier.Notify(domain.NoticeSuccess, "suggestion rejected")
	c.inflight[e.SuggestionID] = LifecycleSettling
	c.record(ctx, storage.Decision{
		SuggestionID: e.SuggestionID, Side: string(e.Side), Action: "reject", Outcome: "ok",
		CreatedAt: time.Now(),
	})
	c.scheduleSettle(e.SuggestionID, e.Side, "reject")
}

// scheduleSettle delays cache invalidation to give the backend's
// read-replica window time to reflect the just-placed order. Best-effort
// only: a manual refresh always self-corrects.
func (c *Coordinator) scheduleSettle(id string, side tick.Side, action string) {
	time.AfterFunc(c.settleDelay, func() {
		c.post(event.SettleElapsed{BaseEvent: now(), SuggestionID: id, Side: side, Action: action})
	})
}

func (c *Coordinator) handleSettle(ctx context.Context, e event.SettleElapsed) {
	c.mu.Lock()
	delete(c.inflight, e.SuggestionID)
	c.mu.Unlock()

	c.accounts.Invalidate()
	c.record(ctx, storage.Decision{
		SuggestionID: e.SuggestionID, Side: string(e.Side), Action: e.Action, Outcome: "settled",
		CreatedAt: time.Now(),
	})
	c.handleRefreshIntent(ctx, event.RefreshBackground)
}

func (c *Coordinator) handleAdjustmentAccept(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offer == nil {
		slog.Debug("Adjustment accept with no pending offer")
		return
	}
	offer := *c.offer
	if _, busy := c.inflight[offer.SuggestionID]; busy {
		slog.Debug("Adjustment accept ignored, id back in flight", slog.String("id", offer.SuggestionID))
		return
	}
	c.offer = nil

	// The forced flag and the server-suggested quantity travel together;
	// this is the only code path that sets ForceAdjusted.
	req := domain.ApproveRequest{
		SuggestionID:  offer.SuggestionID,
		Price:         offer.Price,
		Quantity:      offer.AdjustedQuantity,
		ForceAdjusted: true,
	}

	// Funds adjustments only arise from buy orders.
	side := tick.Buy
	if s, ok := c.book.Get(offer.SuggestionID); ok {
		side = s.Side
	}

	c.inflight[offer.SuggestionID] = LifecycleApproving
	c.record(ctx, storage.Decision{
		SuggestionID: offer.SuggestionID, Side: string(side), Action: "adjustment", Outcome: "accepted",
		Quantity: req.Quantity, Price: req.Price, Forced: true, CreatedAt: time.Now(),
	})

	go c.dispatchApprove(ctx, req, side, offer.StockName)
}

func (c *Coordinator) handleAdjustmentDiscard(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offer == nil {
		return
	}
	offer := *c.offer
	c.offer = nil
	side := tick.Buy
	if s, ok := c.book.Get(offer.SuggestionID); ok {
		side = s.Side
	}
	c.record(ctx, storage.Decision{
		SuggestionID: offer.SuggestionID, Side: string(side), Action: "adjustment", Outcome: "discarded",
		Quantity: offer.AdjustedQuantity, Price: offer.Price, CreatedAt: time.Now(),
	})
}

func (c *Coordinator) handleTicketEdit(e event.TicketEdit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.book.UpdateTicket(e.SuggestionID, func(t *domain.OrderTicket) error {
		switch {
		case e.Price != nil:
			return t.SetPrice(*e.Price)
		case e.StepTicks != nil:
			return t.StepPrice(*e.StepTicks)
		case e.Quantity != nil:
			return t.SetQuantity(*e.Quantity)
		case e.MarketOrder != nil:
			t.IsMarketOrder = *e.MarketOrder
			return nil
		}
		return nil
	})
	if err != nil {
		slog.Warn("Ticket edit rejected", slog.String("id", e.SuggestionID), slog.Any("error", err))
	}
}

func (c *Coordinator) handleRefreshIntent(ctx context.Context, mode event.RefreshMode) {
	c.mu.Lock()
	c.refreshGen++
	gen := c.refreshGen
	if mode == event.RefreshManual {
		// Hard refresh: evict before the fetch is issued so stale and
		// fresh data never interleave.
		c.book.Evict()
	}
	c.mu.Unlock()

	go func() {
		buy, err := c.broker.Suggestions(ctx, tick.Buy, domain.FilterPending)
		var sell []domain.Suggestion
		if err == nil {
			sell, err = c.broker.Suggestions(ctx, tick.Sell, domain.FilterPending)
		}
		c.post(event.RefreshDone{BaseEvent: now(), Mode: mode, Gen: gen, Buy: buy, Sell: sell, Err: err})
	}()
}

func (c *Coordinator) handleRefreshDone(e event.RefreshDone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Gen != c.refreshGen {
		// A newer refresh superseded this one; applying it would
		// resurrect old items next to new ones.
		slog.Debug("Stale refresh discarded", slog.Uint64("gen", e.Gen))
		return
	}

	if e.Err != nil {
		slog.Warn("Suggestion refresh failed", slog.Any("error", e.Err))
	} else {
		c.book.Replace(tick.Buy, e.Buy)
		c.book.Replace(tick.Sell, e.Sell)
	}
	if e.Gen >= c.manualFloor {
		c.refreshing.Store(false)
	}
}

func (c *Coordinator) handleQuote(e event.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reset := c.book.ApplyQuote(e.StockCode, e.Price); len(reset) > 0 {
		slog.Debug("Quote reset tickets", slog.String("code", e.StockCode), slog.Int("count", len(reset)))
	}
}

func (c *Coordinator) record(ctx context.Context, d storage.Decision) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, d); err != nil {
		// The journal is an audit trail, not the source of truth; a
		// write failure must not block trading.
		slog.Warn("Journal write failed", slog.Any("error", err))
	}
}

func now() event.BaseEvent {
	return event.BaseEvent{Ts: time.Now()}
}
