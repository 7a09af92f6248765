package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"commentboard/internal/config"
	"commentboard/internal/cookies"
	"commentboard/internal/logging"
	"commentboard/internal/repositories"
)

type captureMailer struct {
	mu    sync.Mutex
	mails []ConfirmationMail
	err   error
}

func (m *captureMailer) DispatchConfirmation(_ context.Context, mail ConfirmationMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, mail)
	return m.err
}

func (m *captureMailer) last(t *testing.T) ConfirmationMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mails) == 0 {
		t.Fatal("no mail dispatched")
	}
	return m.mails[len(m.mails)-1]
}

type harness struct {
	repos    *repositories.MemoryManager
	ecodes   *ECodeService
	nonces   *NonceService
	sessions *SessionIssuer
	mailer   *captureMailer
	svc      *AccountService
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults().Auth
	cfg.BcryptCost = bcrypt.MinCost

	h := &harness{
		repos:  repositories.NewMemoryManager(),
		mailer: &captureMailer{},
		clock:  time.Now(),
	}
	h.ecodes = NewECodeService(h.repos)
	h.nonces = NewNonceService(h.repos, cfg.ConfirmationWindow)
	h.nonces.now = func() time.Time { return h.clock }
	h.sessions = NewSessionIssuer("test-secret", cfg.SessionTTL)
	h.svc = NewAccountService(h.repos, h.ecodes, h.nonces, h.sessions, h.mailer, cfg, logging.Nop())
	return h
}

func signupCookies(r *SignupResult) map[string]string {
	return map[string]string{
		cookies.Username:     r.Name,
		cookies.AttemptEmail: r.Email,
		cookies.ConfirmNonce: r.PublicNonce,
	}
}
