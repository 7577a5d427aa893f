package live

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"pro-trader/config"
	"pro-trader/indicators"
	"pro-trader/interfaces"
	"pro-trader/logging"
	"pro-trader/position"
	"pro-trader/strategy"
	"pro-trader/strategy/signals"
	"pro-trader/types"
)

// warmupBars is the minimum history pulled at startup on top of the
// regime lookback, enough to seed the slowest indicator (EMA 200)
const warmupBars = 250

// Snapshot is a point-in-time view of the orchestrator state, served
// by the status endpoint
type Snapshot struct {
	Symbol        string             `json:"symbol"`
	Interval      string             `json:"interval"`
	Regime        string             `json:"regime"`
	LastBarTime   time.Time          `json:"last_bar_time"`
	BarsProcessed int                `json:"bars_processed"`
	InTrade       bool               `json:"in_trade"`
	Position      *position.Position `json:"position,omitempty"`
	UnrealizedPnL float64            `json:"unrealized_pnl_percent"`
	LastSignal    *signals.Event     `json:"last_signal,omitempty"`
	Stats         position.Stats     `json:"stats"`
}

// Orchestrator runs the live decision loop: it seeds state from
// history, consumes closed bars from the stream and routes decisions
// through the executor, store and notifier. A nil executor means
// paper trading; store and notifier failures never roll back decision
// state, they only surface reconciliation warnings.
type Orchestrator struct {
	baseCfg  *config.Config
	logger   logging.LoggerInterface
	source   interfaces.MarketDataSource
	executor interfaces.OrderExecutor
	store    interfaces.PositionStore
	notifier interfaces.Notifier

	gen      *strategy.Generator
	detector *strategy.RegimeDetector
	mgr      *position.Manager

	mu            sync.RWMutex
	cfg           *config.Config
	bars          []types.Bar
	frame         *indicators.Frame
	sig           *signals.Frame
	regime        strategy.Regime
	pending       strategy.Regime
	pendingSet    bool
	lastSignal    *signals.Event
	lastProcessed time.Time
	barsProcessed int
	// cursor is the bar index the position manager sees. It only ever
	// increases; slice indices into bars shift when the window trims.
	cursor       int
	maxBars      int
	checkEvery   int
	lookbackBars int
}

// New creates a live orchestrator. executor may be nil for paper
// trading; store and notifier must be non-nil.
func New(cfg *config.Config, source interfaces.MarketDataSource, executor interfaces.OrderExecutor,
	store interfaces.PositionStore, notifier interfaces.Notifier, logger logging.LoggerInterface) (*Orchestrator, error) {
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
	lookbackBars, err := types.DaysToBars(cfg.RegimeLookbackDays, cfg.Interval)
	if err != nil {
		return nil, err
	}
	checkEvery := cfg.RegimeCheckBars
	if checkEvery <= 0 {
		if checkEvery, err = types.DaysToBars(7, cfg.Interval); err != nil {
			return nil, err
		}
	}

	return &Orchestrator{
		baseCfg:      cfg,
		cfg:          cfg,
		logger:       logger,
		source:       source,
		executor:     executor,
		store:        store,
		notifier:     notifier,
		gen:          strategy.NewGenerator(logger),
		detector:     detector,
		mgr:          position.NewManager(cfg, cfg.Symbol, logger),
		regime:       strategy.RegimeSideways,
		maxBars:      lookbackBars + warmupBars,
		checkEvery:   checkEvery,
		lookbackBars: lookbackBars,
	}, nil
}

// Run seeds state from history, reconciles with the store and then
// processes closed bars until the context is cancelled. The in-flight
// bar decision always completes before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.warmup(ctx); err != nil {
		return err
	}
	if err := o.reconcile(ctx); err != nil {
		return err
	}

	o.notifier.SystemStarted(o.baseCfg.Symbol, o.baseCfg.Interval)
	defer o.notifier.SystemStopped("shutdown")

	// Buffer of one: the newest pending bar replaces any stale
	// intermediate the decision loop has not picked up yet
	barCh := make(chan types.Bar, 1)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- o.source.Stream(ctx, o.baseCfg.Symbol, o.baseCfg.Interval, func(b types.Bar) {
			for {
				select {
				case barCh <- b:
					return
				default:
					select {
					case stale := <-barCh:
						o.logger.Warning("dropping stale bar %s, decision loop behind", stale.Time.Format(time.RFC3339))
					default:
					}
				}
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("live loop stopping: %v", ctx.Err())
			return nil
		case err := <-streamErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream ended: %w", err)
		case bar := <-barCh:
			o.processBar(ctx, bar)
		}
	}
}

// warmup fetches enough history to seed indicators and the regime
func (o *Orchestrator) warmup(ctx context.Context) error {
	cfg := o.baseCfg
	period, err := types.IntervalDuration(cfg.Interval)
	if err != nil {
		return err
	}
	start := time.Now().Add(-time.Duration(o.maxBars) * period)
	bars, err := o.source.GetHistory(ctx, cfg.Symbol, cfg.Interval, start, time.Time{}, o.maxBars)
	if err != nil {
		return fmt.Errorf("warmup history: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.bars = bars
	o.lastProcessed = bars[len(bars)-1].Time
	o.frame = indicators.Compute(bars, o.cfg)

	// Initial regime is adopted directly, persistence filtering only
	// applies to switches after startup
	from := len(bars) - o.lookbackBars
	if from < 0 {
		from = 0
	}
	if det, err := o.detector.Detect(o.frame.Close[from:]); err != nil {
		o.logger.Warning("startup regime detection failed, assuming sideways: %v", err)
	} else {
		o.regime = det.Label
		o.cfg = o.baseCfg.WithOverride(strategy.RecommendedConfig(o.regime))
		o.mgr.SetConfig(o.cfg)
	}
	o.sig = o.gen.Generate(o.frame, o.regime, o.cfg)
	o.cursor = len(bars) - 1
	o.mgr.UpdateBar(o.cursor)
	o.logger.Info("warmed up with %d bars, regime %s", len(bars), o.regime)
	return nil
}

// reconcile adopts any active position left in the store by a prior
// run or a shutdown race
func (o *Orchestrator) reconcile(ctx context.Context) error {
	p, err := o.store.GetActivePosition(ctx, o.baseCfg.Symbol)
	if err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}
	if p == nil {
		return nil
	}
	// The stored entry bar indexes a previous run's series, pin it to
	// the current cursor so the gap restarts from the adoption point
	p.EntryBar = o.cursor
	return o.mgr.Restore(p)
}

// processBar is the per-bar decision: append, recompute, re-detect
// the regime on cadence, then exit or enter
func (o *Orchestrator) processBar(ctx context.Context, bar types.Bar) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !bar.Time.After(o.lastProcessed) {
		o.logger.Debug("ignoring bar %s at or before last processed %s",
			bar.Time.Format(time.RFC3339), o.lastProcessed.Format(time.RFC3339))
		return
	}

	o.bars = append(o.bars, bar)
	if len(o.bars) > o.maxBars {
		o.bars = o.bars[len(o.bars)-o.maxBars:]
	}
	o.lastProcessed = bar.Time
	o.barsProcessed++
	o.cursor++

	i := len(o.bars) - 1
	o.frame = indicators.Compute(o.bars, o.cfg)
	o.mgr.UpdateBar(o.cursor)

	if o.checkEvery > 0 && o.barsProcessed%o.checkEvery == 0 {
		o.detectRegimeLocked(i)
	}
	o.sig = o.gen.Generate(o.frame, o.regime, o.cfg)

	price := bar.Close
	if o.mgr.InTrade() {
		if !math.IsNaN(o.frame.ATR[i]) {
			o.mgr.UpdateTrailingStop(price, o.frame.ATR[i])
		}
		if hit, reason := o.mgr.CheckExit(price, o.sig.BuyConfirmed[i], o.sig.SellConfirmed[i]); hit {
			o.executeExit(ctx, price, bar.Time, reason)
		}
		return
	}

	if o.sig.BuyConfirmed[i] || o.sig.SellConfirmed[i] {
		dir := types.Long
		if o.sig.SellConfirmed[i] {
			dir = types.Short
		}
		o.lastSignal = &signals.Event{
			Direction: string(dir),
			Price:     price,
			Time:      bar.Time,
			Regime:    string(o.regime),
			RSI:       o.frame.RSI[i],
			Histogram: o.frame.Histogram[i],
		}
		if o.mgr.CanEnter() && !math.IsNaN(o.frame.ATR[i]) {
			o.executeEntry(ctx, dir, price, bar.Time, o.frame.ATR[i])
		}
	}
}

// detectRegimeLocked re-detects the regime over the trailing lookback
// and applies a switch only after it persists across two consecutive
// checks. Caller holds the lock.
func (o *Orchestrator) detectRegimeLocked(i int) {
	start := i + 1 - o.lookbackBars
	if start < 0 {
		start = 0
	}
	det, err := o.detector.Detect(o.frame.Close[start : i+1])
	if err != nil {
		o.logger.Warning("regime detection failed: %v", err)
		return
	}
	if det.Label == o.regime {
		o.pendingSet = false
		return
	}
	if !o.pendingSet || o.pending != det.Label {
		o.pending = det.Label
		o.pendingSet = true
		return
	}

	o.logger.Info("regime switch %s -> %s (confidence %.2f)", o.regime, det.Label, det.Confidence)
	o.regime = det.Label
	o.cfg = o.baseCfg.WithOverride(strategy.RecommendedConfig(o.regime))
	o.mgr.SetConfig(o.cfg)
	o.pendingSet = false
}

func (o *Orchestrator) executeEntry(ctx context.Context, dir types.Direction, price float64, t time.Time, atr float64) {
	o.notifier.SignalDetected(dir, o.baseCfg.Symbol, price, string(o.regime))

	qty := o.cfg.InitialPaperAmount * o.cfg.PositionSizeFraction / price
	if o.executor != nil {
		res, err := o.executor.PlaceMarketOrder(ctx, o.baseCfg.Symbol, dir, qty)
		if err != nil {
			o.logger.Error("entry order failed: %v", err)
			o.notifier.OrderFailed(o.baseCfg.Symbol, dir, err.Error())
			return
		}
		if res.FilledQty > 0 {
			qty = res.FilledQty
		}
		if res.AvgPrice > 0 {
			price = res.AvgPrice
		}
		o.notifier.OrderExecuted(o.baseCfg.Symbol, dir, qty, price)
	}

	p, err := o.mgr.Enter(dir, price, t, atr, qty)
	if err != nil {
		// The fill already happened when live, this needs a human
		o.logger.Error("entry refused after fill, manual reconciliation needed: %v", err)
		o.notifier.Error(fmt.Sprintf("entry refused after fill: %v", err))
		return
	}

	id, err := o.store.SavePosition(ctx, p)
	if err != nil {
		o.logger.Warning("store save failed, position held in memory only: %v", err)
		o.notifier.Error(fmt.Sprintf("position not persisted: %v", err))
	} else {
		p.StoreID = id
	}
	o.notifier.PositionOpened(p)
}

func (o *Orchestrator) executeExit(ctx context.Context, price float64, t time.Time, reason string) {
	p := o.mgr.Current()
	if p == nil {
		return
	}

	if o.executor != nil {
		res, err := o.executor.PlaceMarketOrder(ctx, o.baseCfg.Symbol, p.Direction.Opposite(), p.Quantity)
		if err != nil {
			// Keep the position open and retry on the next bar, the
			// order was not confirmed filled
			o.logger.Error("exit order failed, position stays open: %v", err)
			o.notifier.OrderFailed(o.baseCfg.Symbol, p.Direction.Opposite(), err.Error())
			return
		}
		if res.AvgPrice > 0 {
			price = res.AvgPrice
		}
		o.notifier.OrderExecuted(o.baseCfg.Symbol, p.Direction.Opposite(), p.Quantity, price)
	}

	storeID := p.StoreID
	trade, err := o.mgr.Exit(price, t, reason)
	if err != nil {
		o.logger.Error("exit bookkeeping failed: %v", err)
		return
	}

	if storeID != 0 {
		if _, err := o.store.ClosePosition(ctx, storeID, price, t, reason); err != nil {
			o.logger.Warning("store close failed, row %d stays open: %v", storeID, err)
			o.notifier.Error(fmt.Sprintf("trade not persisted: %v", err))
		}
	}
	o.notifier.PositionClosed(trade)
}

// Snapshot returns the current state for the status endpoint
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Snapshot{
		Symbol:        o.baseCfg.Symbol,
		Interval:      o.baseCfg.Interval,
		Regime:        string(o.regime),
		LastBarTime:   o.lastProcessed,
		BarsProcessed: o.barsProcessed,
		InTrade:       o.mgr.InTrade(),
		LastSignal:    o.lastSignal,
		Stats:         position.ComputeStats(o.mgr.History()),
	}
	if s.InTrade {
		p := *o.mgr.Current()
		s.Position = &p
		if len(o.bars) > 0 {
			s.UnrealizedPnL = o.mgr.UnrealizedPnL(o.bars[len(o.bars)-1].Close)
		}
	}
	return s
}
