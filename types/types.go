package types

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV candle. Immutable once produced.
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// Direction of a position or signal
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Exit reasons recorded on closed trades
const (
	ExitOppositeSignal = "Opposite Signal"
	ExitStopLoss       = "Stop Loss"
	ExitTakeProfit2    = "Take Profit 2"
	ExitTrailingStop   = "Trailing Stop"
	ExitEndOfData      = "End of Data"
)

// intervalDurations maps venue interval tokens to bar durations.
// The month token uses 30 days, which is what the venue itself assumes
// when paginating kline history.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// IntervalDuration returns the duration of one bar for an interval token
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("unknown interval %q", interval)
	}
	return d, nil
}

// BarsPerDay returns how many bars of the given interval fit in one day.
// Intervals longer than a day map to a fractional day count rounded up to
// at least one bar.
func BarsPerDay(interval string) (int, error) {
	d, err := IntervalDuration(interval)
	if err != nil {
		return 0, err
	}
	n := int(24 * time.Hour / d)
	if n < 1 {
		n = 1
	}
	return n, nil
}

// DaysToBars converts a trailing day count to a bar count for an interval
func DaysToBars(days int, interval string) (int, error) {
	perDay, err := BarsPerDay(interval)
	if err != nil {
		return 0, err
	}
	n := days * perDay
	if n < 1 {
		n = 1
	}
	return n, nil
}
