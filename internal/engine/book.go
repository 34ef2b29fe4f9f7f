package engine

import (
	"github.com/kimmove-blip/Stock-sub000/internal/domain"
	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// SuggestionBook holds the authoritative per-side suggestion lists and
// the transient order ticket for each suggestion. It is owned by the
// coordinator loop and is NOT safe for concurrent use; external readers
// go through the coordinator's snapshot methods.
type SuggestionBook struct {
	lists   map[tick.Side][]domain.Suggestion
	tickets map[string]domain.OrderTicket
}

// NewSuggestionBook creates an empty book.
func NewSuggestionBook() *SuggestionBook {
	return &SuggestionBook{
		lists:   make(map[tick.Side][]domain.Suggestion),
		tickets: make(map[string]domain.OrderTicket),
	}
}

// Replace swaps one side's list wholesale. Tickets whose suggestion id
// and price version both survive the swap are kept; everything else is
// rebuilt from defaults.
func (b *SuggestionBook) Replace(side tick.Side, list []domain.Suggestion) {
	b.lists[side] = list

	for i := range list {
		s := &list[i]
		if t, ok := b.tickets[s.ID]; ok && t.Matches(s) {
			continue
		}
		b.tickets[s.ID] = domain.NewOrderTicket(s)
	}

	// Drop tickets for suggestions no longer present on any side.
	alive := make(map[string]bool)
	for _, l := range b.lists {
		for i := range l {
			alive[l[i].ID] = true
		}
	}
	for id := range b.tickets {
		if !alive[id] {
			delete(b.tickets, id)
		}
	}
}

// Evict clears everything, used by the manual hard refresh before the
// new fetch is issued.
func (b *SuggestionBook) Evict() {
	b.lists = make(map[tick.Side][]domain.Suggestion)
	b.tickets = make(map[string]domain.OrderTicket)
}

// Get returns a copy of the suggestion with the given id.
func (b *SuggestionBook) Get(id string) (domain.Suggestion, bool) {
	for _, l := range b.lists {
		for i := range l {
			if l[i].ID == id {
				return l[i], true
			}
		}
	}
	return domain.Suggestion{}, false
}

// Ticket returns a copy of the order ticket for the given suggestion.
func (b *SuggestionBook) Ticket(id string) (domain.OrderTicket, bool) {
	t, ok := b.tickets[id]
	return t, ok
}

// UpdateTicket applies fn to the ticket for id. The mutation is dropped
// if fn errors, so a rejected edit never leaves a half-applied ticket.
func (b *SuggestionBook) UpdateTicket(id string, fn func(*domain.OrderTicket) error) error {
	t, ok := b.tickets[id]
	if !ok {
		return ErrUnknownSuggestion
	}
	if err := fn(&t); err != nil {
		return err
	}
	b.tickets[id] = t
	return nil
}

// ApplyQuote updates the current price of every suggestion carrying the
// stock code and resets the tickets the price move invalidated.
// Returns the ids whose tickets were reset.
func (b *SuggestionBook) ApplyQuote(stockCode string, price int64) []string {
	var reset []string
	for _, l := range b.lists {
		for i := range l {
			s := &l[i]
			if s.StockCode != stockCode || s.CurrentPrice == price {
				continue
			}
			s.CurrentPrice = price
			if t, ok := b.tickets[s.ID]; !ok || !t.Matches(s) {
				b.tickets[s.ID] = domain.NewOrderTicket(s)
				reset = append(reset, s.ID)
			}
		}
	}
	return reset
}

// List returns a copy of one side's suggestions.
func (b *SuggestionBook) List(side tick.Side) []domain.Suggestion {
	l := b.lists[side]
	out := make([]domain.Suggestion, len(l))
	copy(out, l)
	return out
}

// StockCodes returns the distinct stock codes currently in the book,
// used by the quote stream to scope its subscription.
func (b *SuggestionBook) StockCodes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range b.lists {
		for i := range l {
			if !seen[l[i].StockCode] {
				seen[l[i].StockCode] = true
				out = append(out, l[i].StockCode)
			}
		}
	}
	return out
}
