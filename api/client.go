package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"pro-trader/config"
	"pro-trader/interfaces"
	"pro-trader/logging"
	"pro-trader/types"
)

// klineCap is the venue's per-call bar limit; larger requests are
// served by chunked sequential calls
const klineCap = 1000

// readRetries is how many times transient network failures on read
// paths are retried. Order placement is never retried.
const readRetries = 3

// Client talks to the Binance spot REST API. It implements both the
// market-data read path and the order-execution path.
type Client struct {
	Config *config.Config
	Logger logging.LoggerInterface

	httpClient *http.Client
}

// NewClient creates a REST API client
func NewClient(cfg *config.Config, logger logging.LoggerInterface) *Client {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Client{
		Config: cfg,
		Logger: logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// sign produces the HMAC-SHA256 signature over the query payload
func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.Config.APISecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetHistory fetches klines, chunking requests above the venue cap.
// The start cursor advances past the last returned bar by one period;
// the result is de-duplicated on timestamp and sorted ascending.
func (c *Client) GetHistory(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.Bar, error) {
	period, err := types.IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}
	if limit <= 0 {
		limit = klineCap
	}

	seen := make(map[int64]bool)
	var bars []types.Bar
	cursor := start
	for len(bars) < limit {
		chunk := limit - len(bars)
		if chunk > klineCap {
			chunk = klineCap
		}
		batch, err := c.fetchKlines(ctx, symbol, interval, cursor, end, chunk)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, b := range batch {
			ts := b.Time.UnixMilli()
			if !seen[ts] {
				seen[ts] = true
				bars = append(bars, b)
			}
		}
		last := batch[len(batch)-1].Time
		cursor = last.Add(period)
		if !cursor.Before(end) {
			break
		}
		if len(batch) < chunk {
			break
		}
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if len(bars) == 0 {
		return nil, fmt.Errorf("no history returned for %s %s", symbol, interval)
	}
	c.Logger.Info("fetched %d bars of %s %s (%s .. %s)",
		len(bars), symbol, interval, bars[0].Time.Format(time.RFC3339), bars[len(bars)-1].Time.Format(time.RFC3339))
	return bars, nil
}

func (c *Client) fetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}

	body, err := c.getWithRetry(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	bars := make([]types.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		b := types.Bar{Time: time.UnixMilli(openTime).UTC()}
		fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
		ok := true
		for idx, dst := range fields {
			var s string
			if err := json.Unmarshal(row[idx+1], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if ok {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

// GetLatestPrice fetches the current ticker price
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.getWithRetry(ctx, "/api/v3/ticker/price", q)
	if err != nil {
		return 0, err
	}
	var r struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	return strconv.ParseFloat(r.Price, 64)
}

// PlaceMarketOrder submits a signed market order. Not retried: a
// timed-out order may still have filled, so the caller must reconcile
// instead of resubmitting.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side types.Direction, quantity float64) (*interfaces.OrderResult, error) {
	binSide := "BUY"
	if side == types.Short {
		binSide = "SELL"
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", binSide)
	q.Set("type", "MARKET")
	q.Set("quantity", strconv.FormatFloat(quantity, 'f', 6, 64))
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	payload := q.Encode()
	payload += "&signature=" + c.sign(payload)

	c.Logger.Info("placing %s market order: %s qty %.6f", binSide, symbol, quantity)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.Config.RESTHost+"/api/v3/order?"+payload, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.Config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: place order: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, venueError(resp.StatusCode, body)
	}

	var r struct {
		OrderID     int64  `json:"orderId"`
		ExecutedQty string `json:"executedQty"`
		Status      string `json:"status"`
		Fills       []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	filled, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	var notional, qtySum float64
	for _, f := range r.Fills {
		p, _ := strconv.ParseFloat(f.Price, 64)
		fq, _ := strconv.ParseFloat(f.Qty, 64)
		notional += p * fq
		qtySum += fq
	}
	var avg float64
	if qtySum > 0 {
		avg = notional / qtySum
	}

	c.Logger.Info("order %d filled: qty %.6f avg %.2f status %s", r.OrderID, filled, avg, r.Status)
	return &interfaces.OrderResult{
		OrderID:   strconv.FormatInt(r.OrderID, 10),
		FilledQty: filled,
		AvgPrice:  avg,
		Status:    r.Status,
	}, nil
}

// GetAccountBalance fetches the free balance for one asset
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	payload := q.Encode()
	payload += "&signature=" + c.sign(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.Config.RESTHost+"/api/v3/account?"+payload, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-MBX-APIKEY", c.Config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: account: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, venueError(resp.StatusCode, body)
	}

	var r struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("decode account: %w", err)
	}
	for _, b := range r.Balances {
		if b.Asset == asset {
			return strconv.ParseFloat(b.Free, 64)
		}
	}
	return 0, nil
}

// getWithRetry performs an unsigned GET with incremental backoff on
// transient network failures. Read paths only.
func (c *Client) getWithRetry(ctx context.Context, path string, q url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < readRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.Config.RESTHost+path+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s: %v", ErrNetwork, path, err)
			c.Logger.Warning("GET %s failed (attempt %d): %v", path, attempt+1, err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			// Venue-side rejections are not transient, do not retry
			return nil, venueError(resp.StatusCode, body)
		}
		return body, nil
	}
	return nil, lastErr
}

// venueError maps a venue error body onto the error taxonomy
func venueError(status int, body []byte) error {
	var r struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &r)
	switch r.Code {
	case -2010: // NEW_ORDER_REJECTED, insufficient balance
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, r.Msg)
	case -1013, -1111: // filter failure / bad precision
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, r.Msg)
	default:
		return fmt.Errorf("%w: HTTP %d code %d: %s", ErrVenueRejected, status, r.Code, r.Msg)
	}
}
