package backtest

import (
	"fmt"
	"math"
	"time"

	"pro-trader/config"
	"pro-trader/indicators"
	"pro-trader/logging"
	"pro-trader/position"
	"pro-trader/strategy"
	"pro-trader/strategy/signals"
	"pro-trader/types"
)

// RegimeChange records a regime switch accepted by the runner
type RegimeChange struct {
	Index int
	Time  time.Time
	From  strategy.Regime
	To    strategy.Regime
}

// Result is the outcome of one backtest run
type Result struct {
	Trades        []position.Trade
	Stats         position.Stats
	Signals       *signals.Frame
	Frame         *indicators.Frame
	RegimeChanges []RegimeChange
	FinalRegime   strategy.Regime
	Bars          int
}

// Runner drives the indicator, regime, signal and position components
// bar by bar over a historical window. Bars are processed strictly in
// order; the regime is re-evaluated periodically over a trailing slice
// and a switch is only accepted after the candidate persists across
// two consecutive checks.
type Runner struct {
	baseCfg  *config.Config
	logger   logging.LoggerInterface
	gen      *strategy.Generator
	detector *strategy.RegimeDetector
}

// NewRunner creates a backtest runner for the configured symbol and
// interval
func NewRunner(cfg *config.Config, logger logging.LoggerInterface) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	detector, err := strategy.NewRegimeDetector(cfg.Interval, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{
		baseCfg:  cfg,
		logger:   logger,
		gen:      strategy.NewGenerator(logger),
		detector: detector,
	}, nil
}

// Run executes the backtest over the given bars
func (r *Runner) Run(bars []types.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: empty bar series")
	}

	cfg := r.baseCfg
	frame := indicators.Compute(bars, cfg)
	closes := frame.Close

	regime := strategy.RegimeSideways
	sf := r.gen.Generate(frame, regime, cfg)

	mgr := position.NewManager(cfg, cfg.Symbol, r.logger)
	mgr.Reset()

	checkEvery, err := r.regimeCheckBars(cfg)
	if err != nil {
		return nil, err
	}
	lookbackBars, err := types.DaysToBars(cfg.RegimeLookbackDays, cfg.Interval)
	if err != nil {
		return nil, err
	}

	result := &Result{Bars: len(bars)}
	var pending strategy.Regime
	pendingSet := false

	r.logger.Info("backtest: %d bars of %s %s, regime check every %d bars",
		len(bars), cfg.Symbol, cfg.Interval, checkEvery)

	for i := range bars {
		mgr.UpdateBar(i)

		if checkEvery > 0 && i > 0 && i%checkEvery == 0 {
			start := i + 1 - lookbackBars
			if start < 0 {
				start = 0
			}
			det, err := r.detector.Detect(closes[start : i+1])
			if err != nil {
				r.logger.Warning("backtest: regime detection failed at bar %d: %v", i, err)
			} else if det.Label != regime {
				if pendingSet && pending == det.Label {
					result.RegimeChanges = append(result.RegimeChanges, RegimeChange{
						Index: i, Time: bars[i].Time, From: regime, To: det.Label,
					})
					r.logger.Info("backtest: regime switch %s -> %s at bar %d (confidence %.2f)",
						regime, det.Label, i, det.Confidence)
					regime = det.Label
					cfg = r.baseCfg.WithOverride(strategy.RecommendedConfig(regime))
					mgr.SetConfig(cfg)
					r.gen.Resume(frame, regime, cfg, sf, i)
					pendingSet = false
				} else {
					pending = det.Label
					pendingSet = true
				}
			} else {
				pendingSet = false
			}
		}

		price := bars[i].Close
		if mgr.InTrade() {
			if !math.IsNaN(frame.ATR[i]) {
				mgr.UpdateTrailingStop(price, frame.ATR[i])
			}
			if hit, reason := mgr.CheckExit(price, sf.BuyConfirmed[i], sf.SellConfirmed[i]); hit {
				if _, err := mgr.Exit(price, bars[i].Time, reason); err != nil {
					return nil, fmt.Errorf("backtest: exit at bar %d: %w", i, err)
				}
			}
			continue
		}

		if !mgr.CanEnter() || math.IsNaN(frame.ATR[i]) {
			continue
		}
		qty := r.quantity(cfg, price)
		if sf.BuyConfirmed[i] {
			if _, err := mgr.Enter(types.Long, price, bars[i].Time, frame.ATR[i], qty); err != nil {
				r.logger.Warning("backtest: long entry refused at bar %d: %v", i, err)
			}
		} else if sf.SellConfirmed[i] {
			if _, err := mgr.Enter(types.Short, price, bars[i].Time, frame.ATR[i], qty); err != nil {
				r.logger.Warning("backtest: short entry refused at bar %d: %v", i, err)
			}
		}
	}

	last := bars[len(bars)-1]
	if _, err := mgr.CloseAtEnd(last.Close, last.Time); err != nil {
		return nil, fmt.Errorf("backtest: end-of-data close: %w", err)
	}

	result.Trades = mgr.History()
	result.Stats = mgr.Statistics()
	result.Signals = sf
	result.Frame = frame
	result.FinalRegime = regime
	return result, nil
}

// regimeCheckBars resolves the re-detection cadence, defaulting to
// weekly in bar counts
func (r *Runner) regimeCheckBars(cfg *config.Config) (int, error) {
	if cfg.RegimeCheckBars > 0 {
		return cfg.RegimeCheckBars, nil
	}
	return types.DaysToBars(7, cfg.Interval)
}

// quantity sizes an entry as a fraction of the paper balance
func (r *Runner) quantity(cfg *config.Config, price float64) float64 {
	if price <= 0 || cfg.PositionSizeFraction <= 0 {
		return 0
	}
	return cfg.InitialPaperAmount * cfg.PositionSizeFraction / price
}
