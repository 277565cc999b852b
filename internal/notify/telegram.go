// Package notify reports finished generation jobs to a Telegram chat.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scenario-service/internal/models"
)

// Config holds Telegram settings.
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

// Sender is the part of the bot API used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts job summaries. A nil *Notifier is a valid no-op.
type Notifier struct {
	sender Sender
	chatID int64
	logger *zap.Logger
}

// New creates a Telegram notifier. It returns nil when notifications are disabled.
func New(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if !cfg.Enabled || cfg.TelegramToken == "" {
		logger.Info("Telegram notifications are disabled (notify.enabled=false or token is empty)")
		return nil, nil
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("notify.chat_id is required when notifications are enabled")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))
	return NewWithSender(botAPI, cfg.ChatID, logger), nil
}

// NewWithSender builds a notifier over an existing sender.
func NewWithSender(sender Sender, chatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, chatID: chatID, logger: logger}
}

// JobFinished sends the summary of a completed or failed job.
func (n *Notifier) JobFinished(job *models.Job) {
	if n == nil || job == nil {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatJob(job))
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error("Failed to send message",
			zap.Int64("chat_id", n.chatID),
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}

	n.logger.Debug("Job notification sent", zap.String("job_id", job.ID))
}

// FormatJob renders a plain-text job summary.
func FormatJob(job *models.Job) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generation job %s: %s\n", job.ID, job.Status)
	fmt.Fprintf(&b, "Requested: %d, generated: %d, added: %d\n",
		job.Requested, job.GeneratedCount, job.AddedCount)

	rejected, duplicates := 0, 0
	for _, batch := range job.Batches {
		if batch.Decision == models.BatchRejected {
			rejected++
		}
		duplicates += batch.Duplicates
	}
	if len(job.Batches) > 0 {
		fmt.Fprintf(&b, "Batches: %d (%d rejected), duplicates filtered: %d\n",
			len(job.Batches), rejected, duplicates)
	}

	if job.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", job.ErrorMessage)
	}

	return strings.TrimRight(b.String(), "\n")
}
