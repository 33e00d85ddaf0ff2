package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/facility_triage/pkg/email"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

// NotificationChannel is the Redis channel the notification service listens on.
const NotificationChannel = "notifications"

// Notification is one message for a person or, with an empty UserID, for
// everyone holding Role.
type Notification struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ComplaintID string `json:"complaint_id,omitempty"`
}

// Notifier delivers notifications. Triage never waits on it and never rolls
// back because of it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RedisNotifier publishes notifications for the notification service.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return r.rdb.Publish(ctx, NotificationChannel, data).Err()
}

// EmailNotifier mails notifications addressed to a user. Identifiers are
// email addresses; role-wide notifications are skipped.
type EmailNotifier struct {
	smtp     *email.SMTPConfig
	linkBase string
	send     func(cfg *email.SMTPConfig, to string, n email.ComplaintNotice) error
}

// NewEmailNotifier creates an EmailNotifier. linkBase, when set, is the
// frontend URL complaint links are built from.
func NewEmailNotifier(cfg *email.SMTPConfig, linkBase string) *EmailNotifier {
	return &EmailNotifier{smtp: cfg, linkBase: strings.TrimRight(linkBase, "/"), send: email.SendComplaintNotice}
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if n.UserID == "" || !strings.Contains(n.UserID, "@") {
		return nil
	}
	notice := email.ComplaintNotice{
		Title:       n.Title,
		Message:     n.Message,
		ComplaintID: n.ComplaintID,
	}
	if e.linkBase != "" && n.ComplaintID != "" {
		notice.Link = e.linkBase + "/complaints/" + n.ComplaintID
	}
	return e.send(e.smtp, n.UserID, notice)
}

// telegramSender is the part of *tgbotapi.BotAPI TelegramNotifier uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts role-wide notifications to a staff group chat.
// Notifications addressed to one user are left to the other channels.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramNotifier creates a TelegramNotifier posting into chatID.
func NewTelegramNotifier(bot telegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	if n.UserID != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("[%s] %s\n%s", n.Role, n.Title, n.Message)
	if n.ComplaintID != "" {
		text += "\nRef: " + n.ComplaintID
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", t.chatID, err)
	}
	return nil
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
