package notify

import (
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier is the fire-and-forget channel for operator-facing events:
// startup/shutdown, sync failures, kill-switch activation, trade-close
// summaries. Delivery failures must never affect the trading loop.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Telegram pushes notifications to a single chat.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		log:    log.Named("Notifier"),
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Warn("telegram delivery failed", zap.Error(err))
	}
}

func (t *Telegram) Sendf(format string, args ...any) {
	t.Send(fmt.Sprintf(format, args...))
}

// Log is the fallback notifier when no telegram token is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("Notifier")}
}

func (l *Log) Send(msg string) {
	l.log.Info("[NOTIFY] " + msg)
}

func (l *Log) Sendf(format string, args ...any) {
	l.Send(fmt.Sprintf(format, args...))
}
