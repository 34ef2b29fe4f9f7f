package domain

import (
	"fmt"

	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// OrderTicket is the user-editable order customisation for one suggestion.
// It is client-owned and transient: recreated from defaults whenever the
// suggestion's price version moves.
type OrderTicket struct {
	SuggestionID  string
	Side          tick.Side
	PriceVersion  int64
	SelectedPrice int64
	IsMarketOrder bool
	Quantity      int
}

// NewOrderTicket builds the default ticket for a suggestion: buy orders
// start at the suggested price, sell orders at the current market price,
// both snapped onto the tick grid.
func NewOrderTicket(s *Suggestion) OrderTicket {
	base := s.SuggestedPrice
	if s.Side == tick.Sell {
		base = s.CurrentPrice
	}
	price, err := tick.Normalize(base, s.Side)
	if err != nil {
		// Degenerate backend price; leave zero, Validate blocks submission.
		price = 0
	}
	return OrderTicket{
		SuggestionID:  s.ID,
		Side:          s.Side,
		PriceVersion:  s.PriceVersion(),
		SelectedPrice: price,
		Quantity:      s.Quantity,
	}
}

// Matches reports whether the ticket still belongs to this incarnation of
// the suggestion, i.e. the backend price has not moved underneath it.
func (t *OrderTicket) Matches(s *Suggestion) bool {
	return t.SuggestionID == s.ID && t.PriceVersion == s.PriceVersion()
}

// SetPrice replaces the selected limit price, normalising it onto the grid
// and clearing the market-order flag.
func (t *OrderTicket) SetPrice(price int64) error {
	p, err := tick.Normalize(price, t.Side)
	if err != nil {
		return err
	}
	t.SelectedPrice = p
	t.IsMarketOrder = false
	return nil
}

// StepPrice moves the selected price by a signed number of ticks.
func (t *OrderTicket) StepPrice(ticks int) error {
	p, err := tick.Step(t.SelectedPrice, t.Side, ticks)
	if err != nil {
		return err
	}
	t.SelectedPrice = p
	t.IsMarketOrder = false
	return nil
}

// SetQuantity replaces the order quantity. Non-positive values are
// rejected, never clamped silently into a submittable state.
func (t *OrderTicket) SetQuantity(q int) error {
	if q < 1 {
		return fmt.Errorf("ticket %s: quantity %d < 1", t.SuggestionID, q)
	}
	t.Quantity = q
	return nil
}

// Validate checks the ticket is submittable.
func (t *OrderTicket) Validate() error {
	if t.Quantity < 1 {
		return fmt.Errorf("ticket %s: quantity %d < 1", t.SuggestionID, t.Quantity)
	}
	if !t.IsMarketOrder && t.SelectedPrice <= 0 {
		return fmt.Errorf("ticket %s: limit order without a positive price", t.SuggestionID)
	}
	return nil
}
