package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/config"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
)

// sender is the subset of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RunNotifier posts a short summary of each finished run to one operator chat.
type RunNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

var _ adapter.RunNotifier = (*RunNotifier)(nil)

func NewRunNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*RunNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newRunNotifier(bot, cfg.ChatID, logger), nil
}

func newRunNotifier(bot sender, chatID int64, logger *zerolog.Logger) *RunNotifier {
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &RunNotifier{bot: bot, chatID: chatID, log: &l}
}

func (n *RunNotifier) NotifyRun(ctx context.Context, s model.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatRunSummary(s))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	n.log.Debug().Str("run_id", s.RunID).Str("user_id", s.UserID).Msg("run summary sent")
	return nil
}

// FormatRunSummary renders s as Telegram HTML.
func FormatRunSummary(s model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Run finished</b> for <code>%s</code>\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, s.UserID))
	if !s.Eligible {
		fmt.Fprintf(&b, "Skipped: %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, s.SkipReason))
		return b.String()
	}
	fmt.Fprintf(&b, "Applied: %d\nFailed: %d\nProcessed: %d of %d discovered", s.Applied, s.Failed, s.Processed, s.Discovered)
	if s.Duplicates > 0 {
		fmt.Fprintf(&b, " (%d already seen)", s.Duplicates)
	}
	fmt.Fprintf(&b, "\nQuota left: %d\nTook: %s", s.QuotaRemaining, s.Duration().Round(time.Second))
	if s.Interrupted {
		b.WriteString("\n<i>interrupted</i>")
	}
	return b.String()
}
