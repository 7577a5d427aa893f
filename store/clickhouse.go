package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"pro-trader/config"
	"pro-trader/logging"
	"pro-trader/position"
	"pro-trader/types"
)

const (
	positionsDDL = `
CREATE TABLE IF NOT EXISTS positions (
	id            Int64,
	symbol        String,
	entry_price   Float64,
	entry_time    DateTime64(3, 'UTC'),
	direction     String,
	stop_loss     Float64,
	take_profit_1 Float64,
	take_profit_2 Float64,
	trailing_stop Float64,
	quantity      Float64,
	entry_bar     Int64,
	is_active     UInt8,
	updated_at    DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY id`

	tradesDDL = `
CREATE TABLE IF NOT EXISTS trades (
	symbol        String,
	entry_price   Float64,
	exit_price    Float64,
	entry_time    DateTime64(3, 'UTC'),
	exit_time     DateTime64(3, 'UTC'),
	direction     String,
	pnl_percent   Float64,
	pnl_amount    Float64,
	exit_reason   String,
	duration_bars Int64,
	quantity      Float64
) ENGINE = MergeTree
ORDER BY (symbol, exit_time)`
)

// ClickHouse persists positions and completed trades. Position rows
// are versioned through ReplacingMergeTree, so reads use FINAL to see
// the latest state.
type ClickHouse struct {
	conn   driver.Conn
	logger logging.LoggerInterface
}

// OpenClickHouse connects, verifies the connection and creates the
// schema if missing
func OpenClickHouse(ctx context.Context, cfg *config.Config, logger logging.LoggerInterface) (*ClickHouse, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping %s: %w", cfg.ClickHouseAddr, err)
	}

	s := &ClickHouse{conn: conn, logger: logger}
	for _, ddl := range []string{positionsDDL, tradesDDL} {
		if err := conn.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	logger.Info("clickhouse store ready at %s/%s", cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
	return s, nil
}

// Close releases the connection pool
func (s *ClickHouse) Close() error { return s.conn.Close() }

func (s *ClickHouse) SavePosition(ctx context.Context, p *position.Position) (int64, error) {
	if p.StoreID == 0 {
		existing, err := s.GetActivePosition(ctx, p.Symbol)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return 0, fmt.Errorf("%w: %s already has position %d", position.ErrAlreadyOpen, p.Symbol, existing.StoreID)
		}
		p.StoreID = time.Now().UnixNano()
	}

	err := s.conn.Exec(ctx, `
INSERT INTO positions
(id, symbol, entry_price, entry_time, direction, stop_loss, take_profit_1,
 take_profit_2, trailing_stop, quantity, entry_bar, is_active, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StoreID, p.Symbol, p.EntryPrice, p.EntryTime, string(p.Direction),
		p.StopLoss, p.TakeProfit1, p.TakeProfit2, p.TrailingStop,
		p.Quantity, int64(p.EntryBar), uint8(1), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("save position: %w", err)
	}
	return p.StoreID, nil
}

func (s *ClickHouse) GetActivePosition(ctx context.Context, symbol string) (*position.Position, error) {
	row := s.conn.QueryRow(ctx, `
SELECT id, entry_price, entry_time, direction, stop_loss, take_profit_1,
       take_profit_2, trailing_stop, quantity, entry_bar
FROM positions FINAL
WHERE symbol = ? AND is_active = 1
ORDER BY entry_time DESC
LIMIT 1`, symbol)

	var (
		p        position.Position
		dir      string
		entryBar int64
	)
	err := row.Scan(&p.StoreID, &p.EntryPrice, &p.EntryTime, &dir,
		&p.StopLoss, &p.TakeProfit1, &p.TakeProfit2, &p.TrailingStop,
		&p.Quantity, &entryBar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active position: %w", err)
	}
	p.Symbol = symbol
	p.Direction = types.Direction(dir)
	p.EntryBar = int(entryBar)
	p.IsActive = true
	return &p, nil
}

func (s *ClickHouse) ClosePosition(ctx context.Context, id int64, exitPrice float64, exitTime time.Time, reason string) (*position.Trade, error) {
	row := s.conn.QueryRow(ctx, `
SELECT symbol, entry_price, entry_time, direction, stop_loss, take_profit_1,
       take_profit_2, trailing_stop, quantity, entry_bar
FROM positions FINAL
WHERE id = ? AND is_active = 1`, id)

	var (
		p        position.Position
		dir      string
		entryBar int64
	)
	err := row.Scan(&p.Symbol, &p.EntryPrice, &p.EntryTime, &dir,
		&p.StopLoss, &p.TakeProfit1, &p.TakeProfit2, &p.TrailingStop,
		&p.Quantity, &entryBar)
	if err != nil {
		return nil, fmt.Errorf("%w: store id %d: %v", position.ErrNotInTrade, id, err)
	}
	p.StoreID = id
	p.Direction = types.Direction(dir)
	p.EntryBar = int(entryBar)

	t := position.CloseTrade(&p, exitPrice, exitTime, reason, 0)

	// Versioned overwrite marks the position closed
	err = s.conn.Exec(ctx, `
INSERT INTO positions
(id, symbol, entry_price, entry_time, direction, stop_loss, take_profit_1,
 take_profit_2, trailing_stop, quantity, entry_bar, is_active, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Symbol, p.EntryPrice, p.EntryTime, dir,
		p.StopLoss, p.TakeProfit1, p.TakeProfit2, p.TrailingStop,
		p.Quantity, entryBar, uint8(0), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("close position: %w", err)
	}

	err = s.conn.Exec(ctx, `
INSERT INTO trades
(symbol, entry_price, exit_price, entry_time, exit_time, direction,
 pnl_percent, pnl_amount, exit_reason, duration_bars, quantity)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.EntryPrice, t.ExitPrice, t.EntryTime, t.ExitTime,
		string(t.Direction), t.PnLPercent, t.PnLAmount, t.ExitReason,
		int64(t.DurationBars), t.Quantity)
	if err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}

	s.logger.Info("%s: closed position %d at %.2f (%s, P&L %+.2f%%)",
		t.Symbol, id, exitPrice, reason, t.PnLPercent)
	return &t, nil
}

func (s *ClickHouse) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]position.Trade, error) {
	query := `
SELECT symbol, entry_price, exit_price, entry_time, exit_time, direction,
       pnl_percent, pnl_amount, exit_reason, duration_bars, quantity
FROM trades
WHERE symbol = ?`
	args := []any{symbol}
	if limit > 0 {
		// Newest N, reversed to ascending after the scan
		query += `
ORDER BY exit_time DESC
LIMIT ?`
		args = append(args, limit)
	} else {
		query += `
ORDER BY exit_time`
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trade history: %w", err)
	}
	defer rows.Close()

	var trades []position.Trade
	for rows.Next() {
		var (
			t        position.Trade
			dir      string
			duration int64
		)
		if err := rows.Scan(&t.Symbol, &t.EntryPrice, &t.ExitPrice,
			&t.EntryTime, &t.ExitTime, &dir, &t.PnLPercent, &t.PnLAmount,
			&t.ExitReason, &duration, &t.Quantity); err != nil {
			return nil, fmt.Errorf("trade history scan: %w", err)
		}
		t.Direction = types.Direction(dir)
		t.DurationBars = int(duration)
		trades = append(trades, t)
	}
	if limit > 0 {
		// The inner query returned newest-first, restore ascending order
		for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
			trades[i], trades[j] = trades[j], trades[i]
		}
	}
	return trades, rows.Err()
}

func (s *ClickHouse) GetStatistics(ctx context.Context, symbol string) (position.Stats, error) {
	// Drawdown and profit factor need the full ordered P&L series, so
	// aggregation happens over the fetched trades rather than in SQL
	trades, err := s.GetTradeHistory(ctx, symbol, 0)
	if err != nil {
		return position.Stats{}, err
	}
	return position.ComputeStats(trades), nil
}
