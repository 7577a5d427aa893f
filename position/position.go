package position

import (
	"errors"
	"fmt"
	"time"

	"pro-trader/config"
	"pro-trader/logging"
	"pro-trader/types"
)

var (
	// ErrAlreadyOpen is returned when an entry is attempted while a
	// position is already open for the symbol
	ErrAlreadyOpen = errors.New("position already open")
	// ErrNotInTrade is returned when an exit or update is attempted
	// with no open position
	ErrNotInTrade = errors.New("no open position")
	// ErrGapTooSmall is returned when the minimum bar gap since the
	// last entry has not elapsed
	ErrGapTooSmall = errors.New("minimum bar gap not elapsed")
)

// Position is the mutable state of one open trade
type Position struct {
	Symbol       string
	EntryPrice   float64
	EntryTime    time.Time
	Direction    types.Direction
	StopLoss     float64
	TakeProfit1  float64
	TakeProfit2  float64
	TrailingStop float64 // 0 means not yet activated
	Quantity     float64
	EntryBar     int
	IsActive     bool
	StoreID      int64
}

// Trade is an immutable record of a completed round trip
type Trade struct {
	Symbol       string
	EntryPrice   float64
	ExitPrice    float64
	EntryTime    time.Time
	ExitTime     time.Time
	Direction    types.Direction
	PnLPercent   float64
	PnLAmount    float64
	ExitReason   string
	DurationBars int
	Quantity     float64
}

// Manager is the FLAT/OPEN state machine for one symbol. At most one
// position may be open at any time; entries while open or inside the
// minimum bar gap are refused with an error, not a panic, since these
// are expected races in live mode.
type Manager struct {
	cfg    *config.Config
	symbol string
	logger logging.LoggerInterface

	current     *Position
	history     []Trade
	lastBuyBar  int
	lastSellBar int
	currentBar  int
}

// NewManager creates a position manager for a symbol
func NewManager(cfg *config.Config, symbol string, logger logging.LoggerInterface) *Manager {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Manager{
		cfg:         cfg,
		symbol:      symbol,
		logger:      logger,
		lastBuyBar:  -1 << 30,
		lastSellBar: -1 << 30,
	}
}

// Reset clears all state for a fresh backtest run
func (m *Manager) Reset() {
	m.current = nil
	m.history = nil
	m.lastBuyBar = -1 << 30
	m.lastSellBar = -1 << 30
	m.currentBar = 0
}

// SetConfig swaps the risk parameters, used when a regime change
// applies a recommended override mid-run
func (m *Manager) SetConfig(cfg *config.Config) { m.cfg = cfg }

// Restore adopts a persisted position, used at startup to reconcile
// with the store after a restart or shutdown race
func (m *Manager) Restore(p *Position) error {
	if m.InTrade() {
		return fmt.Errorf("%w: cannot restore over open position", ErrAlreadyOpen)
	}
	cp := *p
	cp.IsActive = true
	m.current = &cp
	if cp.Direction == types.Long {
		m.lastBuyBar = cp.EntryBar
	} else {
		m.lastSellBar = cp.EntryBar
	}
	m.logger.Info("%s: restored %s position from store (id %d, entry %.2f)",
		m.symbol, cp.Direction, cp.StoreID, cp.EntryPrice)
	return nil
}

// UpdateBar advances the manager's bar cursor
func (m *Manager) UpdateBar(index int) { m.currentBar = index }

// InTrade reports whether a position is currently open
func (m *Manager) InTrade() bool {
	return m.current != nil && m.current.IsActive
}

// Current returns the open position, or nil when flat
func (m *Manager) Current() *Position { return m.current }

// History returns the completed trades in entry order
func (m *Manager) History() []Trade { return m.history }

// CanEnter reports whether a new entry is allowed: flat, and the
// minimum gap since both the last long and last short entry elapsed
func (m *Manager) CanEnter() bool {
	if m.InTrade() {
		return false
	}
	return m.currentBar-m.lastBuyBar >= m.cfg.MinBarsGap &&
		m.currentBar-m.lastSellBar >= m.cfg.MinBarsGap
}

// Levels computes stop and target prices for an entry
func (m *Manager) Levels(entryPrice float64, dir types.Direction, atr float64) (stopLoss, tp1, tp2 float64) {
	if dir == types.Long {
		stopLoss = entryPrice - atr*m.cfg.StopLossMultiplier
		tp1 = entryPrice + atr*m.cfg.TakeProfit1Mult
		tp2 = entryPrice + atr*m.cfg.TakeProfit2Mult
	} else {
		stopLoss = entryPrice + atr*m.cfg.StopLossMultiplier
		tp1 = entryPrice - atr*m.cfg.TakeProfit1Mult
		tp2 = entryPrice - atr*m.cfg.TakeProfit2Mult
	}
	return
}

// Enter opens a position. FLAT -> OPEN.
func (m *Manager) Enter(dir types.Direction, price float64, t time.Time, atr, quantity float64) (*Position, error) {
	if m.InTrade() {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadyOpen, m.symbol, m.current.Direction)
	}
	if !m.CanEnter() {
		return nil, fmt.Errorf("%w: bar %d, last buy %d, last sell %d, gap %d",
			ErrGapTooSmall, m.currentBar, m.lastBuyBar, m.lastSellBar, m.cfg.MinBarsGap)
	}

	stopLoss, tp1, tp2 := m.Levels(price, dir, atr)
	m.current = &Position{
		Symbol:      m.symbol,
		EntryPrice:  price,
		EntryTime:   t,
		Direction:   dir,
		StopLoss:    stopLoss,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		Quantity:    quantity,
		EntryBar:    m.currentBar,
		IsActive:    true,
	}

	if dir == types.Long {
		m.lastBuyBar = m.currentBar
	} else {
		m.lastSellBar = m.currentBar
	}

	m.logger.Info("%s: entered %s at %.2f (SL %.2f, TP1 %.2f, TP2 %.2f, qty %.6f)",
		m.symbol, dir, price, stopLoss, tp1, tp2, quantity)
	return m.current, nil
}

// UpdateTrailingStop moves the trailing stop in the favorable
// direction only. It activates past the configured profit fraction and
// tightens as profit grows.
func (m *Manager) UpdateTrailingStop(price, atr float64) {
	if !m.InTrade() {
		return
	}
	p := m.current

	var profit float64
	if p.Direction == types.Long {
		profit = (price - p.EntryPrice) / p.EntryPrice
	} else {
		profit = (p.EntryPrice - price) / p.EntryPrice
	}
	if profit <= m.cfg.TrailingActivation {
		return
	}

	factor := m.cfg.TrailingStopFactor
	if m.cfg.DynamicTrailing {
		switch {
		case profit > 0.06:
			factor = 0.40
		case profit > 0.04:
			factor = 0.50
		case profit > 0.02:
			factor = 0.60
		}
	}

	trailDist := atr * m.cfg.StopLossMultiplier * factor
	if p.Direction == types.Long {
		candidate := price - trailDist
		if p.TrailingStop == 0 || candidate > p.TrailingStop {
			p.TrailingStop = candidate
			m.logger.Debug("%s: trailing stop raised to %.2f (profit %.2f%%)", m.symbol, candidate, profit*100)
		}
	} else {
		candidate := price + trailDist
		if p.TrailingStop == 0 || candidate < p.TrailingStop {
			p.TrailingStop = candidate
			m.logger.Debug("%s: trailing stop lowered to %.2f (profit %.2f%%)", m.symbol, candidate, profit*100)
		}
	}
}

// CheckExit evaluates exit conditions at the current price. The first
// matching condition wins: opposite signal, stop loss, second take
// profit, trailing stop.
func (m *Manager) CheckExit(price float64, buySignal, sellSignal bool) (bool, string) {
	if !m.InTrade() {
		return false, ""
	}
	p := m.current

	if p.Direction == types.Long {
		switch {
		case sellSignal:
			return true, types.ExitOppositeSignal
		case price <= p.StopLoss:
			return true, types.ExitStopLoss
		case price >= p.TakeProfit2:
			return true, types.ExitTakeProfit2
		case p.TrailingStop != 0 && price <= p.TrailingStop:
			return true, types.ExitTrailingStop
		}
		return false, ""
	}

	switch {
	case buySignal:
		return true, types.ExitOppositeSignal
	case price >= p.StopLoss:
		return true, types.ExitStopLoss
	case price <= p.TakeProfit2:
		return true, types.ExitTakeProfit2
	case p.TrailingStop != 0 && price >= p.TrailingStop:
		return true, types.ExitTrailingStop
	}
	return false, ""
}

// CloseTrade builds the immutable trade record for a position closed
// at the given price. P&L percent is relative to entry; the amount is
// percent applied to the entry notional.
func CloseTrade(p *Position, exitPrice float64, exitTime time.Time, reason string, durationBars int) Trade {
	var pnlPercent float64
	if p.Direction == types.Long {
		pnlPercent = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	} else {
		pnlPercent = (p.EntryPrice - exitPrice) / p.EntryPrice * 100
	}
	var pnlAmount float64
	if p.Quantity > 0 {
		pnlAmount = pnlPercent / 100 * p.Quantity * p.EntryPrice
	}

	return Trade{
		Symbol:       p.Symbol,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    exitPrice,
		EntryTime:    p.EntryTime,
		ExitTime:     exitTime,
		Direction:    p.Direction,
		PnLPercent:   pnlPercent,
		PnLAmount:    pnlAmount,
		ExitReason:   reason,
		DurationBars: durationBars,
		Quantity:     p.Quantity,
	}
}

// Exit closes the open position and records the trade. OPEN -> FLAT.
func (m *Manager) Exit(price float64, t time.Time, reason string) (*Trade, error) {
	if !m.InTrade() {
		return nil, fmt.Errorf("%w: cannot exit %s (%s)", ErrNotInTrade, m.symbol, reason)
	}
	trade := CloseTrade(m.current, price, t, reason, m.currentBar-m.current.EntryBar)
	m.history = append(m.history, trade)
	m.current = nil

	m.logger.Info("%s: exited %s at %.2f (%s, P&L %+.2f%%)",
		m.symbol, trade.Direction, price, reason, trade.PnLPercent)
	return &trade, nil
}

// CloseAtEnd force-closes any open position at the final bar
func (m *Manager) CloseAtEnd(price float64, t time.Time) (*Trade, error) {
	if !m.InTrade() {
		return nil, nil
	}
	return m.Exit(price, t, types.ExitEndOfData)
}

// UnrealizedPnL returns the open position's current profit percent
func (m *Manager) UnrealizedPnL(price float64) float64 {
	if !m.InTrade() {
		return 0
	}
	p := m.current
	if p.Direction == types.Long {
		return (price - p.EntryPrice) / p.EntryPrice * 100
	}
	return (p.EntryPrice - price) / p.EntryPrice * 100
}
