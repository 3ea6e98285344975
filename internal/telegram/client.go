// Package telegram provides a client for sending alert notifications via Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"capwatch/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendAlert sends one finalized alert.
func (c *Client) SendAlert(alert models.Alert) error {
	return c.sendMarkdownV2(formatAlert(alert))
}

// Digest is one reporting window's worth of activity, rendered as a
// single summary message.
type Digest struct {
	Window    time.Duration
	Alerts    []models.Alert
	Movers    []models.SymbolRow
	Leaders   []models.SymbolRow
	Anomalies int
}

// SendDigest sends a periodic activity summary. A digest with nothing
// to report is not sent.
func (c *Client) SendDigest(d Digest) error {
	if len(d.Alerts) == 0 && len(d.Movers) == 0 && len(d.Leaders) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatDigest(d))
}

// formatAlert renders an alert as a Telegram MarkdownV2 message.
func formatAlert(alert models.Alert) string {
	message := fmt.Sprintf("%s *%s* %s\n",
		severityEmoji(alert.Severity),
		escapeMarkdownV2(alert.Symbol),
		escapeMarkdownV2(alertTypeLabel(alert.Type)))
	message += fmt.Sprintf("%s\n", escapeMarkdownV2(alert.Message))
	message += fmt.Sprintf("💵 %s", escapeMarkdownV2(fmt.Sprintf("$%.2f", alert.Price)))
	if alert.ChangePercent != 0 {
		message += fmt.Sprintf(" \\| %s", escapeMarkdownV2(fmt.Sprintf("%+.1f%%", alert.ChangePercent)))
	}
	if alert.VolumeRatio != 0 {
		message += fmt.Sprintf(" \\| %s", escapeMarkdownV2(fmt.Sprintf("%.1fx vol", alert.VolumeRatio)))
	}
	message += fmt.Sprintf("\n🕐 %s", escapeMarkdownV2(alert.Timestamp.Format("2006-01-02 15:04:05")))
	return message
}

func formatDigest(d Digest) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 *Market digest* %s\n",
		escapeMarkdownV2(fmt.Sprintf("(last %s)", d.Window))))

	if len(d.Alerts) > 0 {
		b.WriteString("\n🚨 *Alerts*\n")
		for i, alert := range d.Alerts {
			b.WriteString(fmt.Sprintf("%d\\. %s *%s* %s\n   %s\n",
				i+1,
				severityEmoji(alert.Severity),
				escapeMarkdownV2(alert.Symbol),
				escapeMarkdownV2(alertTypeLabel(alert.Type)),
				escapeMarkdownV2(alert.Message)))
		}
	}
	if len(d.Movers) > 0 {
		b.WriteString("\n📈 *Top movers*\n")
		for _, r := range d.Movers {
			b.WriteString(fmt.Sprintf("*%s* %s\n",
				escapeMarkdownV2(r.Symbol),
				escapeMarkdownV2(fmt.Sprintf("%+.1f%% @ $%.2f", r.ChangePercent, r.Price))))
		}
	}
	if len(d.Leaders) > 0 {
		b.WriteString("\n📊 *Volume leaders*\n")
		for _, r := range d.Leaders {
			b.WriteString(fmt.Sprintf("*%s* %s\n",
				escapeMarkdownV2(r.Symbol),
				escapeMarkdownV2(fmt.Sprintf("%.1fx average volume", r.VolumeRatio))))
		}
	}
	if d.Anomalies > 0 {
		b.WriteString(fmt.Sprintf("\n🔍 %s\n",
			escapeMarkdownV2(fmt.Sprintf("%d anomalies flagged", d.Anomalies))))
	}
	return b.String()
}

func alertTypeLabel(t models.AlertType) string {
	switch t {
	case models.AlertPriceSpike:
		return "price spike"
	case models.AlertVolumeSpike:
		return "volume spike"
	case models.AlertCombo:
		return "price + volume"
	case models.AlertSmallCap:
		return "small cap mover"
	case models.AlertCustom:
		return "custom rule"
	default:
		return string(t)
	}
}

func severityEmoji(severity int) string {
	switch {
	case severity >= 9:
		return "🔴"
	case severity >= 7:
		return "🟠"
	default:
		return "🟡"
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
