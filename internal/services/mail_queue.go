package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"commentboard/internal/logging"
)

const (
	TaskTypeConfirmationMail = "mail:confirmation"
	mailQueue                = "mail"
	mailSendTimeout          = 30 * time.Second
)

// ConfirmationMail is the queued payload. Code is the raw ECode.
type ConfirmationMail struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Code  string `json:"code"`
}

// MailDispatcher hands a confirmation mail off for asynchronous delivery.
type MailDispatcher interface {
	DispatchConfirmation(ctx context.Context, mail ConfirmationMail) error
}

// AsynqDispatcher enqueues mails into redis for MailWorker.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) DispatchConfirmation(ctx context.Context, mail ConfirmationMail) error {
	task, err := NewConfirmationMailTask(mail)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(mailSendTimeout)); err != nil {
		return fmt.Errorf("enqueue confirmation mail: %w", err)
	}
	return nil
}

func NewConfirmationMailTask(mail ConfirmationMail) (*asynq.Task, error) {
	body, err := json.Marshal(mail)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeConfirmationMail, body, asynq.Queue(mailQueue)), nil
}

// MailWorker delivers queued confirmation mails.
type MailWorker struct {
	emails EmailService
	log    logging.Logger
}

func NewMailWorker(emails EmailService, log logging.Logger) *MailWorker {
	return &MailWorker{emails: emails, log: log.With("component", "mail_worker")}
}

func (w *MailWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeConfirmationMail, w.ProcessTask)
}

func (w *MailWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var mail ConfirmationMail
	if err := json.Unmarshal(task.Payload(), &mail); err != nil {
		return fmt.Errorf("decode confirmation mail: %v: %w", err, asynq.SkipRetry)
	}
	if mail.Email == "" || mail.Code == "" {
		return fmt.Errorf("confirmation mail without recipient or code: %w", asynq.SkipRetry)
	}
	if err := w.emails.SendConfirmationCode(ctx, mail.Email, mail.Name, mail.Code); err != nil {
		w.log.Warn(ctx, "confirmation mail failed, will retry", "to", mail.Email, "err", err)
		return err
	}
	return nil
}

// QueueServer runs MailWorker on an asynq server.
type QueueServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    logging.Logger
}

func NewQueueServer(opt asynq.RedisConnOpt, concurrency int, worker *MailWorker, log logging.Logger) *QueueServer {
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{mailQueue: 1},
	})
	mux := asynq.NewServeMux()
	worker.Register(mux)
	return &QueueServer{server: server, mux: mux, log: log.With("component", "queue")}
}

// Start runs the server in the background.
func (q *QueueServer) Start() {
	go func() {
		if err := q.server.Run(q.mux); err != nil && err != asynq.ErrServerClosed {
			q.log.Error(context.Background(), "asynq server stopped with error", "err", err)
		}
	}()
}

func (q *QueueServer) Shutdown() {
	q.server.Shutdown()
}

// LocalDispatcher sends mail from a goroutine in this process. Used when
// no redis is configured.
type LocalDispatcher struct {
	emails EmailService
	log    logging.Logger
	wg     sync.WaitGroup
}

func NewLocalDispatcher(emails EmailService, log logging.Logger) *LocalDispatcher {
	return &LocalDispatcher{emails: emails, log: log.With("component", "mail_local")}
}

func (d *LocalDispatcher) DispatchConfirmation(ctx context.Context, mail ConfirmationMail) error {
	// the request context ends with the response
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailSendTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.emails.SendConfirmationCode(sendCtx, mail.Email, mail.Name, mail.Code); err != nil {
			d.log.Error(sendCtx, "confirmation mail failed", "to", mail.Email, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched mail has been attempted.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
