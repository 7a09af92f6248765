package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentboard/internal/config"
	"commentboard/internal/logging"
)

type fakeEmails struct {
	mu   sync.Mutex
	sent []ConfirmationMail
	err  error
}

func (f *fakeEmails) SendConfirmationCode(_ context.Context, email, name, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ConfirmationMail{Email: email, Name: name, Code: code})
	return f.err
}

func TestMailWorker_ProcessTask(t *testing.T) {
	emails := &fakeEmails{}
	w := NewMailWorker(emails, logging.Nop())

	task, err := NewConfirmationMailTask(ConfirmationMail{Email: "a@b.com", Name: "al", Code: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeConfirmationMail, task.Type())

	require.NoError(t, w.ProcessTask(context.Background(), task))
	require.Len(t, emails.sent, 1)
	assert.Equal(t, "12345678", emails.sent[0].Code)
}

func TestMailWorker_BadPayloadSkipsRetry(t *testing.T) {
	w := NewMailWorker(&fakeEmails{}, logging.Nop())

	err := w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeConfirmationMail, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), asynq.NewTask(TaskTypeConfirmationMail, []byte(`{"email":""}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailWorker_SendFailureRetries(t *testing.T) {
	boom := errors.New("smtp down")
	w := NewMailWorker(&fakeEmails{err: boom}, logging.Nop())
	task, err := NewConfirmationMailTask(ConfirmationMail{Email: "a@b.com", Code: "12345678"})
	require.NoError(t, err)

	err = w.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestLocalDispatcher_SendsAfterRequestEnds(t *testing.T) {
	emails := &fakeEmails{}
	d := NewLocalDispatcher(emails, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.DispatchConfirmation(ctx, ConfirmationMail{Email: "a@b.com", Code: "12345678"}))
	cancel()
	d.Wait()

	require.Len(t, emails.sent, 1)
}

func TestEmailService_DryRunDoesNotDial(t *testing.T) {
	cfg := config.Defaults().Email
	cfg.SMTPHost = "127.0.0.1"
	cfg.SMTPPort = 1
	svc := NewEmailService(cfg, logging.Nop())

	require.NoError(t, svc.SendConfirmationCode(context.Background(), "a@b.com", "al", "12345678"))
}

func TestBuildConfirmationMessage(t *testing.T) {
	m := buildConfirmationMessage("no-reply@x", "a@b.com", "al", "12345678")
	assert.Equal(t, []string{"a@b.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@x"}, m.GetHeader("From"))
}
