package position

import "math"

// Stats aggregates a trade history
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent
	AvgWin        float64 // percent
	AvgLoss       float64 // percent
	TotalPnL      float64 // percent, summed per trade
	TotalAmount   float64 // quote currency
	MaxDrawdown   float64 // percent, peak-to-trough of cumulative P&L
	ProfitFactor  float64 // gross profit / gross loss
}

// Statistics computes aggregate performance over the recorded trades
func (m *Manager) Statistics() Stats {
	return ComputeStats(m.history)
}

// ComputeStats aggregates an arbitrary trade slice
func ComputeStats(trades []Trade) Stats {
	var s Stats
	s.TotalTrades = len(trades)
	if s.TotalTrades == 0 {
		return s
	}

	var grossProfit, grossLoss float64
	var cumulative, peak, maxDD float64
	for _, t := range trades {
		if t.PnLPercent > 0 {
			s.WinningTrades++
			grossProfit += t.PnLPercent
		} else if t.PnLPercent < 0 {
			s.LosingTrades++
			grossLoss += -t.PnLPercent
		}
		s.TotalPnL += t.PnLPercent
		s.TotalAmount += t.PnLAmount

		cumulative += t.PnLPercent
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	if s.WinningTrades > 0 {
		s.AvgWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = -grossLoss / float64(s.LosingTrades)
	}
	s.MaxDrawdown = maxDD
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
