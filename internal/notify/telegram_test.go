package notify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scenario-service/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func testJob() *models.Job {
	return &models.Job{
		ID:             "job-1",
		Status:         models.JobCompleted,
		Requested:      150,
		GeneratedCount: 160,
		AddedCount:     140,
		Batches: []models.BatchRecord{
			{Decision: models.BatchRejected},
			{Decision: models.BatchAccepted, Duplicates: 4},
			{Decision: models.BatchAccepted, Duplicates: 2},
		},
	}
}

func TestFormatJob(t *testing.T) {
	text := FormatJob(testJob())
	assert.Contains(t, text, "Generation job job-1: completed")
	assert.Contains(t, text, "Requested: 150, generated: 160, added: 140")
	assert.Contains(t, text, "Batches: 3 (1 rejected), duplicates filtered: 6")
	assert.NotContains(t, text, "Error:")

	job := testJob()
	job.Status = models.JobFailed
	job.ErrorMessage = "deduplication failed"
	job.Batches = nil
	text = FormatJob(job)
	assert.Contains(t, text, "Error: deduplication failed")
	assert.NotContains(t, text, "Batches:")
}

func TestJobFinishedSendsToChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewWithSender(sender, 42, zap.NewNop())

	n.JobFinished(testJob())

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "job-1")
}

func TestJobFinishedToleratesErrorsAndNil(t *testing.T) {
	n := NewWithSender(&fakeSender{err: errors.New("network down")}, 42, zap.NewNop())
	n.JobFinished(testJob())

	var disabled *Notifier
	disabled.JobFinished(testJob())
}

func TestNewDisabled(t *testing.T) {
	n, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = New(Config{Enabled: true, TelegramToken: "token"}, zap.NewNop())
	assert.Error(t, err)
}
