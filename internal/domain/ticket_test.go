package domain

import (
	"testing"

	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

func TestNewOrderTicket_Defaults(t *testing.T) {
	buy := buySuggestion()
	bt := NewOrderTicket(&buy)
	if bt.SelectedPrice != 71_200 {
		t.Errorf("buy ticket price = %d, want suggested 71200", bt.SelectedPrice)
	}
	if bt.Quantity != buy.Quantity {
		t.Errorf("buy ticket quantity = %d, want %d", bt.Quantity, buy.Quantity)
	}
	if bt.PriceVersion != buy.CurrentPrice {
		t.Errorf("buy ticket version = %d, want %d", bt.PriceVersion, buy.CurrentPrice)
	}

	sell := sellSuggestion()
	st := NewOrderTicket(&sell)
	if st.SelectedPrice != 133_500 {
		t.Errorf("sell ticket price = %d, want current 133500", st.SelectedPrice)
	}
	if st.IsMarketOrder {
		t.Error("default ticket should be a limit order")
	}
}

func TestNewOrderTicket_SnapsToGrid(t *testing.T) {
	s := buySuggestion()
	s.SuggestedPrice = 71_234 // off-grid, tick 100 in this band
	ticket := NewOrderTicket(&s)
	if ticket.SelectedPrice != 71_200 {
		t.Errorf("buy default not rounded down: %d", ticket.SelectedPrice)
	}

	sl := sellSuggestion()
	sl.CurrentPrice = 133_489 // tick 500 band
	ticket = NewOrderTicket(&sl)
	if ticket.SelectedPrice != 133_500 {
		t.Errorf("sell default not rounded up: %d", ticket.SelectedPrice)
	}
}

func TestOrderTicket_Matches(t *testing.T) {
	s := buySuggestion()
	ticket := NewOrderTicket(&s)
	if !ticket.Matches(&s) {
		t.Fatal("fresh ticket must match its suggestion")
	}
	s.CurrentPrice += 500 // backend price moved
	if ticket.Matches(&s) {
		t.Error("ticket must not survive a price-version bump")
	}
}

func TestOrderTicket_SetQuantity(t *testing.T) {
	s := buySuggestion()
	ticket := NewOrderTicket(&s)
	for _, q := range []int{0, -5} {
		if err := ticket.SetQuantity(q); err == nil {
			t.Errorf("SetQuantity(%d) should fail", q)
		}
	}
	if ticket.Quantity != s.Quantity {
		t.Errorf("rejected SetQuantity mutated ticket: %d", ticket.Quantity)
	}
	if err := ticket.SetQuantity(3); err != nil {
		t.Fatalf("SetQuantity(3): %v", err)
	}
	if ticket.Quantity != 3 {
		t.Errorf("Quantity = %d, want 3", ticket.Quantity)
	}
}

func TestOrderTicket_SetPrice(t *testing.T) {
	s := buySuggestion()
	ticket := NewOrderTicket(&s)
	ticket.IsMarketOrder = true

	if err := ticket.SetPrice(71_234); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if ticket.SelectedPrice != 71_200 {
		t.Errorf("SetPrice did not normalise down for buy: %d", ticket.SelectedPrice)
	}
	if ticket.IsMarketOrder {
		t.Error("setting a limit price must clear the market flag")
	}
	if err := ticket.SetPrice(0); err == nil {
		t.Error("SetPrice(0) should fail")
	}
}

func TestOrderTicket_StepPrice(t *testing.T) {
	s := buySuggestion()
	s.SuggestedPrice = 4_970
	ticket := NewOrderTicket(&s)

	if err := ticket.StepPrice(2); err != nil {
		t.Fatalf("StepPrice: %v", err)
	}
	if ticket.SelectedPrice != 4_980 {
		t.Errorf("price after +2 ticks = %d, want 4980", ticket.SelectedPrice)
	}
	if err := ticket.StepPrice(-1); err != nil {
		t.Fatalf("StepPrice: %v", err)
	}
	if ticket.SelectedPrice != 4_975 {
		t.Errorf("price after -1 tick = %d, want 4975", ticket.SelectedPrice)
	}
}

func TestOrderTicket_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ticket  OrderTicket
		wantErr bool
	}{
		{"limit ok", OrderTicket{SuggestionID: "a", Side: tick.Buy, SelectedPrice: 1_000, Quantity: 1}, false},
		{"market without price", OrderTicket{SuggestionID: "a", Side: tick.Buy, IsMarketOrder: true, Quantity: 2}, false},
		{"limit without price", OrderTicket{SuggestionID: "a", Side: tick.Buy, Quantity: 1}, true},
		{"zero quantity", OrderTicket{SuggestionID: "a", Side: tick.Buy, SelectedPrice: 1_000, Quantity: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
