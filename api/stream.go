package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pro-trader/types"
)

const (
	wsReadDeadline   = 90 * time.Second
	wsMaxReconnDelay = 30 * time.Second
)

// klineEvent mirrors the venue's kline stream payload. Only the
// fields the strategy needs are decoded.
type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// Stream subscribes to the kline websocket and delivers closed bars
// through onBarClosed. It reconnects with incremental backoff until
// the context is cancelled; duplicate closes of the same bar after a
// reconnect are dropped.
func (c *Client) Stream(ctx context.Context, symbol, interval string, onBarClosed func(types.Bar)) error {
	endpoint := fmt.Sprintf("%s/ws/%s@kline_%s", c.Config.WSHost, strings.ToLower(symbol), interval)

	var lastClosed int64
	delay := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			c.Logger.Warning("websocket dial %s failed: %v, retrying in %s", endpoint, err, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > wsMaxReconnDelay {
				delay = wsMaxReconnDelay
			}
			continue
		}
		c.Logger.Info("websocket connected: %s", endpoint)
		delay = time.Second

		err = c.readLoop(ctx, conn, onBarClosed, &lastClosed)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warning("websocket read loop ended: %v, reconnecting", err)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, onBarClosed func(types.Bar), lastClosed *int64) error {
	// Unblock ReadMessage when the context is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadDeadline)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev klineEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.Logger.Warning("bad stream message: %v", err)
			continue
		}
		if ev.EventType != "kline" || !ev.Kline.Closed {
			continue
		}
		if ev.Kline.OpenTime <= *lastClosed {
			continue
		}

		bar, err := parseStreamBar(ev)
		if err != nil {
			c.Logger.Warning("bad kline fields: %v", err)
			continue
		}
		*lastClosed = ev.Kline.OpenTime
		onBarClosed(bar)
	}
}

func parseStreamBar(ev klineEvent) (types.Bar, error) {
	b := types.Bar{Time: time.UnixMilli(ev.Kline.OpenTime).UTC()}
	for _, f := range []struct {
		src string
		dst *float64
	}{
		{ev.Kline.Open, &b.Open},
		{ev.Kline.High, &b.High},
		{ev.Kline.Low, &b.Low},
		{ev.Kline.Close, &b.Close},
		{ev.Kline.Volume, &b.Volume},
	} {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return types.Bar{}, err
		}
		*f.dst = v
	}
	return b, nil
}
