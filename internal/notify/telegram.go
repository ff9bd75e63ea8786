package notify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"depthwatch/internal/logger"
	"depthwatch/internal/models"
)

// TelegramNotifier delivers notifications through the Telegram Bot API.
// A per-market throttle suppresses repeat deliveries inside the throttle
// window so a noisy market cannot flood the channel.
type TelegramNotifier struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	throttle       time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time
}

// NewTelegram creates a Telegram notifier. A throttle of zero disables
// per-market throttling.
func NewTelegram(botToken, chatID string, maxRetries int, retryDelayBase, throttle time.Duration) (*TelegramNotifier, error) {
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

	return &TelegramNotifier{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		throttle:       throttle,
		lastSent:       make(map[string]time.Time),
		now:            time.Now,
	}, nil
}

// DispatchSignal delivers a depth signal notification, subject to the
// per-market throttle.
func (t *TelegramNotifier) DispatchSignal(marketID string, signal models.Signal) bool {
	if !t.checkThrottle(marketID) {
		logger.Debug("Throttled signal notification for market %s", marketID)
		return false
	}

	text := fmt.Sprintf("🚨 *Depth signal: %s*\n🎯 Market: `%s`\n%s",
		escapeMarkdownV2(string(signal.Kind)),
		escapeMarkdownV2(marketID),
		escapeMarkdownV2(signal.Reason))

	if err := t.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to deliver signal notification: %v", err)
		return false
	}
	t.markSent(marketID)
	return true
}

// DispatchAlert delivers a triggered price alert notification. Alerts are
// throttled per market like signals.
func (t *TelegramNotifier) DispatchAlert(alert models.PriceAlert) bool {
	if !t.checkThrottle(alert.MarketID) {
		logger.Debug("Throttled alert notification for market %s", alert.MarketID)
		return false
	}

	directionEmoji := "📈"
	if alert.Direction == models.DirectionBelow {
		directionEmoji = "📉"
	}

	text := fmt.Sprintf("%s *Price alert triggered*\n🎯 Market: `%s`\nPrice %s %s \\(now %s\\)",
		directionEmoji,
		escapeMarkdownV2(alert.MarketID),
		escapeMarkdownV2(string(alert.Direction)),
		escapeMarkdownV2(fmt.Sprintf("%.4f", alert.TargetPrice)),
		escapeMarkdownV2(fmt.Sprintf("%.4f", alert.CurrentPrice)))

	if err := t.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to deliver alert notification: %v", err)
		return false
	}
	t.markSent(alert.MarketID)
	return true
}

// checkThrottle reports whether a delivery for the market is currently
// allowed.
func (t *TelegramNotifier) checkThrottle(marketID string) bool {
	if t.throttle <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastSent[marketID]
	if !ok {
		return true
	}
	return t.now().Sub(last) >= t.throttle
}

func (t *TelegramNotifier) markSent(marketID string) {
	t.mu.Lock()
	t.lastSent[marketID] = t.now()
	t.mu.Unlock()
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (t *TelegramNotifier) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(t.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
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
