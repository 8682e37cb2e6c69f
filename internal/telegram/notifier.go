// File: internal/telegram/notifier.go
// ============================================
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-signal-bot/pkg/types"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

type Notifier struct {
	botToken string
	chatID   string
	enabled  bool
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

func NewNotifier(botToken, chatID string, enabled bool, logger zerolog.Logger) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		enabled:  enabled && botToken != "" && chatID != "",
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// SetBaseURL points the notifier at another Bot API host
func (n *Notifier) SetBaseURL(baseURL string) {
	n.baseURL = strings.TrimRight(baseURL, "/")
}

func (n *Notifier) Enabled() bool {
	return n.enabled
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
}

func (n *Notifier) sendMessage(ctx context.Context, message string) error {
	if !n.enabled {
		n.logger.Debug().Msg("Telegram disabled, message dropped")
		return nil
	}

	data := url.Values{}
	data.Set("chat_id", n.chatID)
	data.Set("text", message)
	data.Set("parse_mode", "HTML")
	data.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return n.do(req)
}

// sendPhoto uploads image as a multipart form with the message as caption
func (n *Notifier) sendPhoto(ctx context.Context, caption string, image []byte) error {
	if !n.enabled {
		n.logger.Debug().Msg("Telegram disabled, photo dropped")
		return nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"chat_id":    n.chatID,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write %s field: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return n.do(req)
}

func (n *Notifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(body))
	}

	n.logger.Debug().Str("chat_id", n.chatID).Msg("Telegram message sent")
	return nil
}

func (n *Notifier) NotifyStart(ctx context.Context, exchange, symbol string, pairs []types.TimeframePair) error {
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.String()
	}

	msg := "🤖 <b>Signal Bot Started</b>\n\n"
	msg += fmt.Sprintf("✅ Watching <b>%s</b> on %s\n", html.EscapeString(symbol), html.EscapeString(exchange))
	msg += fmt.Sprintf("⏱ Pairs: <code>%s</code>\n", strings.Join(names, ", "))
	msg += "⚠️ Alerts only, trades require manual execution"
	return n.sendMessage(ctx, msg)
}

// NotifySignal sends the alert; with an image it goes out as a photo caption
func (n *Notifier) NotifySignal(ctx context.Context, signal types.Signal, winRate float64, image []byte) error {
	msg := FormatSignal(signal, winRate)
	if len(image) > 0 {
		return n.sendPhoto(ctx, msg, image)
	}
	return n.sendMessage(ctx, msg)
}

func (n *Notifier) NotifyClose(ctx context.Context, ev types.CloseEvent) error {
	return n.sendMessage(ctx, FormatClose(ev))
}

func (n *Notifier) NotifyDailyReport(ctx context.Context, report types.DailyReport) error {
	return n.sendMessage(ctx, FormatDailyReport(report))
}

func FormatSignal(signal types.Signal, winRate float64) string {
	emoji := "🟢"
	if signal.Side == types.SideShort {
		emoji = "🔴"
	}

	msg := fmt.Sprintf("%s <b>%s %s</b> %s\n", emoji, signal.Side, html.EscapeString(signal.Symbol), emoji)
	msg += strings.Repeat("━", 30) + "\n\n"

	msg += fmt.Sprintf("⏱ Timeframe: <b>%s</b> (filter %s)\n", signal.WorkTimeframe, signal.FilterTimeframe)
	msg += fmt.Sprintf("📊 Confidence: <b>%d%%</b>\n", signal.Confidence)
	msg += fmt.Sprintf("🏆 Win rate today: <b>%.1f%%</b>\n\n", winRate)

	msg += "<b>📋 TRADE SETUP:</b>\n"
	msg += fmt.Sprintf("💰 Entry: <code>%.4f</code>\n", signal.Entry)
	msg += fmt.Sprintf("🛑 Stop Loss: <code>%.4f</code> (-%.2f%%)\n", signal.Stop, signal.RiskPct)
	msg += fmt.Sprintf("🎯 Take Profit: <code>%.4f</code> (+%.2f%%)\n", signal.Target, signal.RewardPct)
	msg += fmt.Sprintf("⚖️ Risk/Reward: <b>1:%.2f</b>\n\n", signal.RewardRisk)

	msg += "<b>💡 ANALYSIS:</b>\n"
	for _, reason := range signal.Reasons {
		msg += fmt.Sprintf("<code>%s</code>\n", html.EscapeString(reason))
	}

	m := signal.Metrics
	msg += "\n<b>📐 CONTEXT:</b>\n"
	msg += fmt.Sprintf("Distance from EMA: %.2f ATR", m.ATRDistance)
	if m.Extended {
		msg += " ⚠️ extended"
	}
	msg += "\n"
	if m.Pivot > 0 {
		msg += fmt.Sprintf("Pivot: %.4f\n", m.Pivot)
	}
	if m.EnergyUsedPct > 0 {
		msg += fmt.Sprintf("Daily range used: %.0f%%", m.EnergyUsedPct)
		if m.EnergyUsedPct >= 85 {
			msg += " ⚠️ exhausted"
		}
		msg += "\n"
	}
	if m.DayMove != 0 {
		msg += fmt.Sprintf("Day move: %+.4f\n", m.DayMove)
	}
	if m.FundingRate != 0 {
		msg += fmt.Sprintf("Funding: %.4f%%\n", m.FundingRate*100)
	}

	msg += "\n" + strings.Repeat("━", 30) + "\n"
	msg += "⚠️ <b>MANUAL EXECUTION REQUIRED</b>"
	return msg
}

func FormatClose(ev types.CloseEvent) string {
	emoji, outcome := "✅", "TARGET HIT"
	if !ev.Win() {
		emoji, outcome = "❌", "STOP HIT"
	}

	s := ev.Trade.Signal
	msg := fmt.Sprintf("%s <b>%s</b>\n\n", emoji, outcome)
	msg += fmt.Sprintf("Symbol: <b>%s %s</b> (%s)\n", html.EscapeString(s.Symbol), s.Side, s.WorkTimeframe)
	msg += fmt.Sprintf("Entry: %.4f\n", s.Entry)
	msg += fmt.Sprintf("Close: %.4f\n", ev.Price)
	msg += fmt.Sprintf("Result: <b>%+.2f%%</b>\n", ev.RealizedPct)
	msg += fmt.Sprintf("Held: %s", ev.Trade.ClosedAt.Sub(ev.Trade.OpenedAt).Round(time.Minute))
	return msg
}

func FormatDailyReport(r types.DailyReport) string {
	emoji := "📊"
	if r.Stats.ProfitPct > 0 {
		emoji = "💰"
	} else if r.Stats.ProfitPct < 0 {
		emoji = "📉"
	}

	msg := fmt.Sprintf("%s <b>Daily Report %s</b>\n\n", emoji, r.Date.Format("2006-01-02"))
	msg += fmt.Sprintf("Signals: %d\n", r.Stats.Emitted)
	msg += fmt.Sprintf("Closed: %d (✅ %d / ❌ %d)\n", r.Stats.TotalClosed, r.Stats.Wins, r.Stats.Losses)
	msg += fmt.Sprintf("Win rate: <b>%.1f%%</b>\n", r.WinRate)
	msg += fmt.Sprintf("Result: <b>%+.2f%%</b>\n", r.Stats.ProfitPct)
	msg += fmt.Sprintf("Still open: %d", r.OpenTrades)
	return msg
}
