package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"pro-trader/config"
	"pro-trader/types"
)

func testClient(serverURL string) *Client {
	cfg := config.Default()
	cfg.RESTHost = serverURL
	cfg.APIKey = "test-key"
	cfg.APISecret = "test-secret"
	return NewClient(cfg, nil)
}

func klineRow(openTime int64, close float64) []any {
	return []any{
		openTime,
		fmt.Sprintf("%.2f", close*0.999),
		fmt.Sprintf("%.2f", close*1.001),
		fmt.Sprintf("%.2f", close*0.998),
		fmt.Sprintf("%.2f", close),
		"1000.0",
		openTime + 3599999,
		"0", 0, "0", "0", "0",
	}
}

func TestGetHistoryChunked(t *testing.T) {
	period := time.Hour.Milliseconds()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		calls++
		from, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit > 1000 {
			t.Errorf("Chunk above the venue cap: %d", limit)
		}

		// Serve at most 1000 bars per call out of a 1500 bar tape
		rows := make([]any, 0, limit)
		for ts := from; ts < start+1500*period && len(rows) < limit; ts += period {
			rows = append(rows, klineRow(ts, 100))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	client := testClient(server.URL)
	bars, err := client.GetHistory(context.Background(), "BTCUSDT", "1h",
		time.UnixMilli(start), time.UnixMilli(start+1500*period), 1500)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(bars) != 1500 {
		t.Fatalf("Expected 1500 bars, got %d", len(bars))
	}
	if calls < 2 {
		t.Errorf("Expected chunked fetching, got %d call(s)", calls)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Fatalf("Bars not strictly ascending at index %d", i)
		}
	}
}

func TestGetHistoryDeduplicates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The same bar twice plus one fresh bar
		rows := []any{
			klineRow(start, 100),
			klineRow(start, 100),
			klineRow(start+time.Hour.Milliseconds(), 101),
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	client := testClient(server.URL)
	bars, err := client.GetHistory(context.Background(), "BTCUSDT", "1h",
		time.UnixMilli(start), time.Time{}, 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("Expected duplicate timestamps collapsed to 2 bars, got %d", len(bars))
	}
}

func TestGetHistoryEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.GetHistory(context.Background(), "BTCUSDT", "1h",
		time.Now().Add(-time.Hour), time.Time{}, 10)
	if err == nil {
		t.Error("Expected error when the venue returns no bars")
	}
}

func TestGetLatestPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("Missing symbol parameter")
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"42123.45"}`))
	}))
	defer server.Close()

	price, err := testClient(server.URL).GetLatestPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatestPrice failed: %v", err)
	}
	if price != 42123.45 {
		t.Errorf("Expected 42123.45, got %.2f", price)
	}
}

func TestPlaceMarketOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/order" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Error("Missing API key header")
		}
		q := r.URL.Query()
		if q.Get("signature") == "" || q.Get("timestamp") == "" {
			t.Error("Order request not signed")
		}
		if q.Get("side") != "SELL" {
			t.Errorf("Expected SELL, got %s", q.Get("side"))
		}
		w.Write([]byte(`{"orderId":12345,"executedQty":"0.500000","status":"FILLED",
			"fills":[{"price":"100.0","qty":"0.3"},{"price":"101.0","qty":"0.2"}]}`))
	}))
	defer server.Close()

	res, err := testClient(server.URL).PlaceMarketOrder(context.Background(), "BTCUSDT", types.Short, 0.5)
	if err != nil {
		t.Fatalf("PlaceMarketOrder failed: %v", err)
	}
	if res.OrderID != "12345" || res.Status != "FILLED" {
		t.Errorf("Wrong order result: %+v", res)
	}
	if res.FilledQty != 0.5 {
		t.Errorf("Expected filled qty 0.5, got %.4f", res.FilledQty)
	}
	want := (100.0*0.3 + 101.0*0.2) / 0.5
	if res.AvgPrice != want {
		t.Errorf("Expected avg price %.2f, got %.4f", want, res.AvgPrice)
	}
}

func TestVenueErrorMapping(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{-2010, ErrInsufficientBalance},
		{-1013, ErrInvalidQuantity},
		{-1111, ErrInvalidQuantity},
		{-9999, ErrVenueRejected},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"code":%d,"msg":"rejected"}`, tc.code)
		}))

		_, err := testClient(server.URL).PlaceMarketOrder(context.Background(), "BTCUSDT", types.Long, 1)
		if !errors.Is(err, tc.want) {
			t.Errorf("Code %d: expected %v, got %v", tc.code, tc.want, err)
		}
		server.Close()
	}
}

func TestGetAccountBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/account" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"balances":[{"asset":"BTC","free":"0.5"},{"asset":"USDT","free":"1234.56"}]}`))
	}))
	defer server.Close()

	bal, err := testClient(server.URL).GetAccountBalance(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("GetAccountBalance failed: %v", err)
	}
	if bal != 1234.56 {
		t.Errorf("Expected 1234.56, got %.2f", bal)
	}
}
