package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pro-trader/position"
	"pro-trader/types"
)

func TestMemorySaveAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &position.Position{
		Symbol:     "BTCUSDT",
		EntryPrice: 100,
		EntryTime:  time.Now(),
		Direction:  types.Long,
		Quantity:   1,
	}
	id, err := m.SavePosition(ctx, p)
	if err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected a non-zero store id")
	}

	got, err := m.GetActivePosition(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetActivePosition failed: %v", err)
	}
	if got == nil || got.StoreID != id || got.EntryPrice != 100 {
		t.Errorf("Wrong active position: %+v", got)
	}

	// Unknown symbol is nil, not an error
	got, err = m.GetActivePosition(ctx, "ETHUSDT")
	if err != nil || got != nil {
		t.Errorf("Expected nil for unknown symbol, got %+v %v", got, err)
	}
}

func TestMemoryOneActivePerSymbol(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := &position.Position{Symbol: "BTCUSDT", EntryPrice: 100, Direction: types.Long, Quantity: 1}
	if _, err := m.SavePosition(ctx, first); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}
	second := &position.Position{Symbol: "BTCUSDT", EntryPrice: 105, Direction: types.Short, Quantity: 1}
	if _, err := m.SavePosition(ctx, second); !errors.Is(err, position.ErrAlreadyOpen) {
		t.Errorf("Expected ErrAlreadyOpen, got %v", err)
	}

	// Updating the same position is allowed
	first.TrailingStop = 102
	if _, err := m.SavePosition(ctx, first); err != nil {
		t.Errorf("Re-saving the open position failed: %v", err)
	}

	// A different symbol is independent
	other := &position.Position{Symbol: "ETHUSDT", EntryPrice: 50, Direction: types.Long, Quantity: 1}
	if _, err := m.SavePosition(ctx, other); err != nil {
		t.Errorf("SavePosition for another symbol failed: %v", err)
	}
}

func TestMemoryCloseAndHistory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	entry := time.Now()

	p := &position.Position{Symbol: "BTCUSDT", EntryPrice: 100, EntryTime: entry, Direction: types.Long, Quantity: 2}
	id, err := m.SavePosition(ctx, p)
	if err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	trade, err := m.ClosePosition(ctx, id, 110, entry.Add(time.Hour), types.ExitTakeProfit2)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if math.Abs(trade.PnLPercent-10.0) > 1e-9 {
		t.Errorf("Expected 10%% P&L, got %.4f", trade.PnLPercent)
	}

	// Closed means no longer active, and double close errors
	if got, _ := m.GetActivePosition(ctx, "BTCUSDT"); got != nil {
		t.Error("Expected no active position after close")
	}
	if _, err := m.ClosePosition(ctx, id, 110, entry, types.ExitStopLoss); !errors.Is(err, position.ErrNotInTrade) {
		t.Errorf("Expected ErrNotInTrade on double close, got %v", err)
	}

	history, err := m.GetTradeHistory(ctx, "BTCUSDT", 0)
	if err != nil {
		t.Fatalf("GetTradeHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].ExitReason != types.ExitTakeProfit2 {
		t.Errorf("Wrong trade history: %+v", history)
	}

	stats, err := m.GetStatistics(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalTrades != 1 || stats.WinningTrades != 1 {
		t.Errorf("Wrong stats: %+v", stats)
	}
}

func TestMemoryHistoryLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p := &position.Position{Symbol: "BTCUSDT", EntryPrice: 100, Direction: types.Long, Quantity: 1}
		id, err := m.SavePosition(ctx, p)
		if err != nil {
			t.Fatalf("SavePosition failed: %v", err)
		}
		if _, err := m.ClosePosition(ctx, id, 100+float64(i), time.Now(), types.ExitEndOfData); err != nil {
			t.Fatalf("ClosePosition failed: %v", err)
		}
	}

	history, err := m.GetTradeHistory(ctx, "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("GetTradeHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 trades with the limit, got %d", len(history))
	}
	// The newest trades are kept
	if history[1].ExitPrice != 104 || history[0].ExitPrice != 103 {
		t.Errorf("Expected the two newest trades, got exits %.0f and %.0f",
			history[0].ExitPrice, history[1].ExitPrice)
	}
}
