package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pro-trader/config"
	"pro-trader/logging"
	"pro-trader/position"
	"pro-trader/types"
)

// Telegram sends event notifications through the Bot API. Delivery is
// fire and forget: failures are logged and swallowed so a Telegram
// outage can never stall the trading loop.
type Telegram struct {
	token  string
	chatID string
	logger logging.LoggerInterface
	client *http.Client
}

// NewTelegram creates a Telegram notifier
func NewTelegram(cfg *config.Config, logger logging.LoggerInterface) *Telegram {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Telegram{
		token:  cfg.TelegramToken,
		chatID: cfg.TelegramChatID,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) send(text string) {
	if t.token == "" || t.chatID == "" {
		return
	}
	go func() {
		endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
		resp, err := t.client.PostForm(endpoint, url.Values{
			"chat_id": {t.chatID},
			"text":    {text},
		})
		if err != nil {
			t.logger.Warning("telegram send failed: %v", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.logger.Warning("telegram send rejected: HTTP %d", resp.StatusCode)
		}
	}()
}

func (t *Telegram) SignalDetected(direction types.Direction, symbol string, price float64, regime string) {
	t.send(fmt.Sprintf("Signal: %s %s at %.2f (regime %s)", direction, symbol, price, regime))
}

func (t *Telegram) OrderExecuted(symbol string, side types.Direction, qty, price float64) {
	t.send(fmt.Sprintf("Order filled: %s %s qty %.6f at %.2f", side, symbol, qty, price))
}

func (t *Telegram) OrderFailed(symbol string, side types.Direction, reason string) {
	t.send(fmt.Sprintf("Order FAILED: %s %s: %s", side, symbol, reason))
}

func (t *Telegram) PositionOpened(p *position.Position) {
	t.send(fmt.Sprintf("Opened %s %s at %.2f (SL %.2f, TP2 %.2f, qty %.6f)",
		p.Direction, p.Symbol, p.EntryPrice, p.StopLoss, p.TakeProfit2, p.Quantity))
}

func (t *Telegram) PositionClosed(tr *position.Trade) {
	t.send(fmt.Sprintf("Closed %s %s at %.2f (%s, P&L %+.2f%% / %+.2f)",
		tr.Direction, tr.Symbol, tr.ExitPrice, tr.ExitReason, tr.PnLPercent, tr.PnLAmount))
}

func (t *Telegram) Error(message string) {
	t.send("Error: " + message)
}

func (t *Telegram) SystemStarted(symbol, interval string) {
	t.send(fmt.Sprintf("Trader started: %s %s", symbol, interval))
}

func (t *Telegram) SystemStopped(reason string) {
	t.send("Trader stopped: " + reason)
}

// Nop is the notifier used when Telegram is disabled
type Nop struct{}

func (Nop) SignalDetected(types.Direction, string, float64, string)  {}
func (Nop) OrderExecuted(string, types.Direction, float64, float64)  {}
func (Nop) OrderFailed(string, types.Direction, string)              {}
func (Nop) PositionOpened(*position.Position)                        {}
func (Nop) PositionClosed(*position.Trade)                           {}
func (Nop) Error(string)                                             {}
func (Nop) SystemStarted(string, string)                             {}
func (Nop) SystemStopped(string)                                     {}
