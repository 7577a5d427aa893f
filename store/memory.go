package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pro-trader/position"
)

// Memory is an in-process PositionStore used by paper trading and
// tests. It applies the same one-active-position-per-symbol rule as
// the ClickHouse store.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	active map[string]*position.Position // keyed by symbol
	byID   map[int64]*position.Position
	trades map[string][]position.Trade
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		active: make(map[string]*position.Position),
		byID:   make(map[int64]*position.Position),
		trades: make(map[string][]position.Trade),
	}
}

func (m *Memory) SavePosition(ctx context.Context, p *position.Position) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[p.Symbol]; ok && existing.StoreID != p.StoreID {
		return 0, fmt.Errorf("%w: %s already has position %d", position.ErrAlreadyOpen, p.Symbol, existing.StoreID)
	}

	if p.StoreID == 0 {
		p.StoreID = m.nextID
		m.nextID++
	}
	stored := *p
	stored.IsActive = true
	m.active[stored.Symbol] = &stored
	m.byID[stored.StoreID] = &stored
	return stored.StoreID, nil
}

func (m *Memory) GetActivePosition(ctx context.Context, symbol string) (*position.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.active[symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ClosePosition(ctx context.Context, id int64, exitPrice float64, exitTime time.Time, reason string) (*position.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok || !p.IsActive {
		return nil, fmt.Errorf("%w: store id %d", position.ErrNotInTrade, id)
	}

	t := position.CloseTrade(p, exitPrice, exitTime, reason, 0)
	p.IsActive = false
	delete(m.active, p.Symbol)
	m.trades[p.Symbol] = append(m.trades[p.Symbol], t)
	return &t, nil
}

func (m *Memory) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]position.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.trades[symbol]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]position.Trade, len(all))
	copy(out, all)
	return out, nil
}

func (m *Memory) GetStatistics(ctx context.Context, symbol string) (position.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return position.ComputeStats(m.trades[symbol]), nil
}
