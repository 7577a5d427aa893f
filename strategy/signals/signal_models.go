package signals

import (
	"time"
)

// Frame holds the per-bar signal columns produced by the generator,
// aligned 1:1 with the indicator frame it was computed from. Setup and
// trigger columns are diagnostic; only the confirmed columns drive
// entries.
type Frame struct {
	BuySetup  []bool
	SellSetup []bool

	BuyTrigger  []bool
	SellTrigger []bool

	BuyConfirmed  []bool
	SellConfirmed []bool
}

// NewFrame allocates an empty signal frame for n bars
func NewFrame(n int) *Frame {
	return &Frame{
		BuySetup:      make([]bool, n),
		SellSetup:     make([]bool, n),
		BuyTrigger:    make([]bool, n),
		SellTrigger:   make([]bool, n),
		BuyConfirmed:  make([]bool, n),
		SellConfirmed: make([]bool, n),
	}
}

// Len returns the number of bars in the frame
func (f *Frame) Len() int { return len(f.BuyConfirmed) }

// LastConfirmedBefore returns the index of the last confirmed signal
// (buy or sell) strictly before bar i, or -1 if there is none. Used to
// carry the gap-filter state when signals are regenerated mid-series.
func (f *Frame) LastConfirmedBefore(i int) int {
	if i > f.Len() {
		i = f.Len()
	}
	for j := i - 1; j >= 0; j-- {
		if f.BuyConfirmed[j] || f.SellConfirmed[j] {
			return j
		}
	}
	return -1
}

// Event is a fired signal with the context a notifier or executor needs
type Event struct {
	Direction string    `json:"direction"` // "LONG" or "SHORT"
	Price     float64   `json:"price"`
	Time      time.Time `json:"time"`
	Regime    string    `json:"regime"`
	RSI       float64   `json:"rsi"`
	Histogram float64   `json:"histogram"`
}
