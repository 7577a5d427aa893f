package interfaces

import (
	"context"
	"time"

	"pro-trader/position"
	"pro-trader/types"
)

// MarketDataSource supplies candle history and a live stream of closed
// bars. History requests larger than the venue per-call cap are served
// by chunked sequential calls under the hood.
type MarketDataSource interface {
	GetHistory(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.Bar, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	// Stream delivers closed bars only, at least once, never a
	// duplicate bar index in a row. It blocks until ctx is done.
	Stream(ctx context.Context, symbol, interval string, onBarClosed func(types.Bar)) error
}

// OrderResult reports a filled or rejected market order
type OrderResult struct {
	OrderID   string
	FilledQty float64
	AvgPrice  float64
	Status    string
}

// OrderExecutor routes market orders to a venue
type OrderExecutor interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side types.Direction, quantity float64) (*OrderResult, error)
	GetAccountBalance(ctx context.Context, asset string) (float64, error)
}

// PositionStore persists positions and completed trades. It enforces
// the one-active-position-per-symbol invariant independently of the
// in-memory state machine.
type PositionStore interface {
	SavePosition(ctx context.Context, p *position.Position) (int64, error)
	GetActivePosition(ctx context.Context, symbol string) (*position.Position, error)
	ClosePosition(ctx context.Context, id int64, exitPrice float64, exitTime time.Time, reason string) (*position.Trade, error)
	GetTradeHistory(ctx context.Context, symbol string, limit int) ([]position.Trade, error)
	GetStatistics(ctx context.Context, symbol string) (position.Stats, error)
}

// Notifier delivers fire-and-forget event notifications. Delivery
// failure must never propagate into the caller's control flow.
type Notifier interface {
	SignalDetected(direction types.Direction, symbol string, price float64, regime string)
	OrderExecuted(symbol string, side types.Direction, qty, price float64)
	OrderFailed(symbol string, side types.Direction, reason string)
	PositionOpened(p *position.Position)
	PositionClosed(t *position.Trade)
	Error(message string)
	SystemStarted(symbol, interval string)
	SystemStopped(reason string)
}
