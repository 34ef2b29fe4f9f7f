// Package tick implements the KRX price-band tick grid.
// All prices are whole won as int64; float64 never enters order math.
package tick

import (
	"errors"
	"fmt"
)

// Side identifies the order direction. It decides the rounding bias:
// a buy must never be rounded above what the user asked to pay,
// a sell must never be rounded below what the user asked to receive.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool { return s == Buy || s == Sell }

// ErrInvalidPrice is returned for zero or negative prices.
var ErrInvalidPrice = errors.New("tick: price must be positive")

// band boundaries are ascending; each boundary is a multiple of the
// next band's tick, so rounding across a boundary stays on the grid.
var bands = []struct {
	upTo int64 // exclusive upper bound, 0 = open-ended
	size int64
}{
	{1_000, 1},
	{5_000, 5},
	{10_000, 10},
	{50_000, 50},
	{100_000, 100},
	{500_000, 500},
	{0, 1_000},
}

// Size returns the minimum price increment for the band containing price.
// price must be positive; callers guard, Size itself never errors.
func Size(price int64) int64 {
	for _, b := range bands {
		if b.upTo != 0 && price < b.upTo {
			return b.size
		}
	}
	return bands[len(bands)-1].size
}

// Normalize snaps price onto the tick grid. Buy rounds down, sell rounds up.
// Idempotent: a price already on the grid is returned unchanged.
func Normalize(price int64, side Side) (int64, error) {
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	if !side.Valid() {
		return 0, fmt.Errorf("tick: unknown side %q", side)
	}
	size := Size(price)
	rem := price % size
	if rem == 0 {
		return price, nil
	}
	if side == Buy {
		return price - rem, nil
	}
	return price - rem + size, nil
}

// Step moves price by a signed number of tick units. The tick size is
// recomputed at each intermediate price, so stepping across a band
// boundary uses the new band's increment, and the result is re-snapped
// onto the grid in the direction of travel. The result never drops
// below one tick of the lowest band.
func Step(price int64, side Side, ticks int) (int64, error) {
	p, err := Normalize(price, side)
	if err != nil {
		return 0, err
	}
	if ticks == 0 {
		return p, nil
	}

	dir := Buy // moving down rounds down
	unit := int64(-1)
	if ticks > 0 {
		dir = Sell // moving up rounds up
		unit = 1
		ticks = -ticks
	}
	for n := ticks; n < 0; n++ {
		size := Size(p)
		next := p + unit*size
		if next < 1 {
			next = 1
		}
		// A band change can leave next off the new grid; re-snap.
		next, err = Normalize(next, dir)
		if err != nil {
			return 0, err
		}
		p = next
	}
	return p, nil
}
