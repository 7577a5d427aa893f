package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pro-trader/api"
	"pro-trader/backtest"
	"pro-trader/config"
	"pro-trader/daemon"
	"pro-trader/interfaces"
	"pro-trader/live"
	"pro-trader/logging"
	"pro-trader/notify"
	"pro-trader/position"
	"pro-trader/status"
	"pro-trader/store"
	"pro-trader/types"
)

var (
	cfg    *config.Config
	logger *logging.Logger
)

// Initialize logging with the provided configuration
func initLogging() error {
	logLevel := logging.LogLevel(cfg.LogLevel)

	var err error
	logger, err = logging.NewLogger(
		cfg.LogFile,
		cfg.LogMaxSize,
		cfg.LogMaxBackups,
		cfg.LogMaxAge,
		cfg.LogCompress,
		logLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	mode := flag.String("mode", "backtest", "backtest | history | monitor | trade | portfolio | export")
	preset := flag.String("preset", "", "named preset: default, scalping, swing, conservative")
	configFile := flag.String("config", "", "YAML config file, applied over the preset")
	symbol := flag.String("symbol", "", "trading pair, overrides config")
	interval := flag.String("interval", "", "kline interval, overrides config")
	days := flag.Int("days", 90, "history window in days for backtest")
	startYear := flag.Int("start-year", 2017, "first year for history mode")
	endYear := flag.Int("end-year", 0, "last year for history mode, 0 means current")
	limit := flag.Int("limit", 20, "recent trade rows shown in portfolio mode")
	out := flag.String("out", "trades.csv", "output CSV for export mode")
	debugFlag := flag.Bool("debug", false, "enable debug logs")

	daemonStart := flag.Bool("start-daemon", false, "Start the application as a daemon")
	daemonStop := flag.Bool("stop-daemon", false, "Stop the daemon process")
	daemonRestart := flag.Bool("restart-daemon", false, "Restart the daemon process")
	flag.Parse()

	var err error
	cfg, err = loadConfig(*preset, *configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *interval != "" {
		cfg.Interval = *interval
	}
	if *debugFlag {
		cfg.LogLevel = 0
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := initLogging(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	if *daemonStop {
		if err := daemon.StopDaemon(); err != nil {
			logger.Fatal("Failed to stop daemon: %v", err)
		}
		return
	}
	if *daemonStart || *daemonRestart {
		if daemon.IsDaemon() {
			// Child falls through into the selected mode
			logger.Info("Running in daemon mode")
		} else {
			args := stripDaemonFlags(os.Args[1:])
			var derr error
			if *daemonRestart {
				derr = daemon.RestartDaemon(args)
			} else {
				derr = daemon.StartDaemon(args)
			}
			if derr != nil {
				logger.Fatal("Daemon control failed: %v", derr)
			}
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "backtest":
		err = runBacktest(ctx, *days)
	case "history":
		err = runHistory(ctx, *startYear, *endYear)
	case "monitor":
		err = runLive(ctx, false)
	case "trade":
		err = runLive(ctx, true)
	case "portfolio":
		err = runPortfolio(ctx, *limit)
	case "export":
		err = runExport(ctx, *out)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal("%s mode failed: %v", *mode, err)
	}
}

func loadConfig(preset, configFile string) (*config.Config, error) {
	var c *config.Config
	var err error
	if preset != "" {
		if c, err = config.Preset(preset); err != nil {
			return nil, err
		}
	} else {
		c = config.LoadConfig()
	}
	if configFile != "" {
		if c, err = config.LoadFileInto(c, configFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// stripDaemonFlags removes the daemon control flags so the relaunched
// child runs the mode directly
func stripDaemonFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "-start-daemon", "--start-daemon", "-restart-daemon", "--restart-daemon":
			continue
		}
		out = append(out, a)
	}
	return out
}

func fetchHistory(ctx context.Context, client *api.Client, days int) ([]types.Bar, error) {
	bars, err := types.DaysToBars(days, cfg.Interval)
	if err != nil {
		return nil, err
	}
	period, err := types.IntervalDuration(cfg.Interval)
	if err != nil {
		return nil, err
	}
	start := time.Now().Add(-time.Duration(bars) * period)
	return client.GetHistory(ctx, cfg.Symbol, cfg.Interval, start, time.Time{}, bars)
}

func runBacktest(ctx context.Context, days int) error {
	client := api.NewClient(cfg, logger)
	bars, err := fetchHistory(ctx, client, days)
	if err != nil {
		return err
	}

	runner, err := backtest.NewRunner(cfg, logger)
	if err != nil {
		return err
	}
	result, err := runner.Run(bars)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s %s over %d bars (%d days)\n", cfg.Symbol, cfg.Interval, result.Bars, days)
	fmt.Printf("Final regime: %s (%d regime changes)\n", result.FinalRegime, len(result.RegimeChanges))
	for _, rc := range result.RegimeChanges {
		fmt.Printf("  %s  %s -> %s\n", rc.Time.Format("2006-01-02 15:04"), rc.From, rc.To)
	}
	printStats(result.Stats)

	for _, t := range result.Trades {
		fmt.Printf("  %s %-5s in %.2f out %.2f  %+7.2f%%  %s\n",
			t.ExitTime.Format("2006-01-02 15:04"), t.Direction, t.EntryPrice, t.ExitPrice,
			t.PnLPercent, t.ExitReason)
	}
	return nil
}

// runHistory runs an independent backtest per calendar year and prints
// a yearly report followed by a closing summary
func runHistory(ctx context.Context, startYear, endYear int) error {
	now := time.Now().UTC()
	if endYear == 0 {
		endYear = now.Year()
	}
	if startYear > endYear {
		return fmt.Errorf("start year %d is after end year %d", startYear, endYear)
	}

	client := api.NewClient(cfg, logger)
	runner, err := backtest.NewRunner(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Yearly backtests for %s %s, %d-%d\n", cfg.Symbol, cfg.Interval, startYear, endYear)
	years, profitable, totalTrades := 0, 0, 0
	sumPnL := 0.0
	for year := startYear; year <= endYear; year++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		if to.After(now) {
			to = now
		}
		days := int(to.Sub(from).Hours() / 24)
		if days < 1 {
			continue
		}
		barLimit, err := types.DaysToBars(days, cfg.Interval)
		if err != nil {
			return err
		}
		bars, err := client.GetHistory(ctx, cfg.Symbol, cfg.Interval, from, to, barLimit)
		if err != nil {
			logger.Warning("no data for %d: %v", year, err)
			continue
		}
		result, err := runner.Run(bars)
		if err != nil {
			logger.Warning("backtest for %d failed: %v", year, err)
			continue
		}

		s := result.Stats
		fmt.Printf("  %d: %4d bars, %3d trades, win rate %5.1f%%, P&L %+7.2f%%, final regime %s\n",
			year, result.Bars, s.TotalTrades, s.WinRate, s.TotalPnL, result.FinalRegime)
		years++
		totalTrades += s.TotalTrades
		sumPnL += s.TotalPnL
		if s.TotalPnL > 0 {
			profitable++
		}
	}

	if years == 0 {
		return fmt.Errorf("no year in %d-%d produced a report", startYear, endYear)
	}
	fmt.Printf("%d/%d profitable years, %d trades total, %+.2f%% average annual return\n",
		profitable, years, totalTrades, sumPnL/float64(years))
	return nil
}

func runLive(ctx context.Context, withOrders bool) error {
	client := api.NewClient(cfg, logger)

	var executor interfaces.OrderExecutor
	if withOrders {
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return fmt.Errorf("trade mode requires BINANCE_API_KEY and BINANCE_API_SECRET")
		}
		executor = client
	}

	var posStore interfaces.PositionStore
	if ch, err := store.OpenClickHouse(ctx, cfg, logger); err == nil {
		defer ch.Close()
		posStore = ch
	} else if withOrders {
		return fmt.Errorf("trade mode requires the position store: %w", err)
	} else {
		logger.Warning("ClickHouse unavailable, monitoring with in-memory store: %v", err)
		posStore = store.NewMemory()
	}

	var notifier interfaces.Notifier = notify.Nop{}
	if cfg.EnableTelegram {
		notifier = notify.NewTelegram(cfg, logger)
	}

	orch, err := live.New(cfg, client, executor, posStore, notifier, logger)
	if err != nil {
		return err
	}

	statusServer := status.StartServer(cfg, orch, logger)
	if statusServer != nil {
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = statusServer.Shutdown(shCtx)
		}()
	}

	return orch.Run(ctx)
}

func runPortfolio(ctx context.Context, limit int) error {
	st, err := store.OpenClickHouse(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStatistics(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	fmt.Printf("Portfolio for %s\n", cfg.Symbol)
	printStats(stats)

	if active, err := st.GetActivePosition(ctx, cfg.Symbol); err == nil && active != nil {
		fmt.Printf("Open position: %s at %.2f since %s (SL %.2f, TP2 %.2f)\n",
			active.Direction, active.EntryPrice, active.EntryTime.Format("2006-01-02 15:04"),
			active.StopLoss, active.TakeProfit2)
	}

	trades, err := st.GetTradeHistory(ctx, cfg.Symbol, limit)
	if err != nil {
		return err
	}
	for _, t := range trades {
		fmt.Printf("%s  %-5s in %.2f out %.2f  %+7.2f%%  %+10.2f  %s\n",
			t.ExitTime.Format("2006-01-02 15:04"), t.Direction, t.EntryPrice, t.ExitPrice,
			t.PnLPercent, t.PnLAmount, t.ExitReason)
	}

	if cfg.APIKey != "" && cfg.APISecret != "" {
		client := api.NewClient(cfg, logger)
		if bal, err := client.GetAccountBalance(ctx, "USDT"); err == nil {
			fmt.Printf("Free USDT balance: %.2f\n", bal)
		} else {
			logger.Warning("balance fetch failed: %v", err)
		}
	}
	return nil
}

// runExport writes the recorded trade history to a CSV file
func runExport(ctx context.Context, outFile string) error {
	st, err := store.OpenClickHouse(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	trades, err := st.GetTradeHistory(ctx, cfg.Symbol, 0)
	if err != nil {
		return err
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"symbol", "direction", "entry_time", "exit_time", "entry_price", "exit_price",
		"quantity", "pnl_percent", "pnl_amount", "exit_reason", "duration_bars",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.Symbol,
			string(t.Direction),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.PnLPercent, 'f', 4, 64),
			strconv.FormatFloat(t.PnLAmount, 'f', 4, 64),
			t.ExitReason,
			strconv.Itoa(t.DurationBars),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	fmt.Printf("Exported %d trades of %s to %s\n", len(trades), cfg.Symbol, outFile)
	return nil
}

func printStats(s position.Stats) {
	fmt.Printf("Trades: %d (%d wins / %d losses, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate)
	fmt.Printf("Total P&L: %+.2f%% (%+.2f), avg win %+.2f%%, avg loss %+.2f%%\n",
		s.TotalPnL, s.TotalAmount, s.AvgWin, s.AvgLoss)
	pf := "inf"
	if !math.IsInf(s.ProfitFactor, 1) {
		pf = strconv.FormatFloat(s.ProfitFactor, 'f', 2, 64)
	}
	fmt.Printf("Max drawdown: %.2f%%, profit factor: %s\n", s.MaxDrawdown, pf)
}
