package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
	"commentboard/internal/repositories"
	"commentboard/internal/utils"
)

const SecretLen = 16

type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeExpired
	OutcomeMismatch
)

type NonceService struct {
	repos  repositories.Manager
	window time.Duration
	now    func() time.Time
	draw   func() (string, error)
}

func NewNonceService(repos repositories.Manager, window time.Duration) *NonceService {
	return &NonceService{repos: repos, window: window, now: time.Now, draw: randomSecret}
}

// WithClock replaces the time source used for expiry.
func (s *NonceService) WithClock(now func() time.Time) *NonceService {
	s.now = now
	return s
}

// Generate stores a secret for ecodeID expiring one window from now. The
// expiry is kept at second precision so its ISO form round-trips.
func (s *NonceService) Generate(ctx context.Context, tx dbx.DBTX, ecodeID int64) (*models.Nonce, error) {
	expiresAt := s.now().Add(s.window).UTC().Truncate(time.Second)
	for attempt := 0; attempt < MaxGenerationAttempts; attempt++ {
		secret, err := s.draw()
		if err != nil {
			return nil, fmt.Errorf("draw nonce: %w", err)
		}
		n, err := s.repos.Nonces(tx).Create(ctx, ecodeID, secret, expiresAt)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, ErrGenerationExhausted
}

func (s *NonceService) Delete(ctx context.Context, tx dbx.DBTX, ecodeID int64) error {
	return s.repos.Nonces(tx).DeleteByECodeID(ctx, ecodeID)
}

// ExpiryISO is the RFC 3339 UTC, second precision form hashed into a public nonce.
func ExpiryISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// Publicize derives the value sent to the client. It cannot be reversed
// into the secret.
func Publicize(secret, expiresAtISO string) string {
	sum := sha256.Sum256([]byte(secret + "|" + expiresAtISO))
	return hex.EncodeToString(sum[:])
}

// Verify checks expiry first, so an expired nonce never reports valid.
func (s *NonceService) Verify(candidate, secret string, expiresAt time.Time) Outcome {
	if !s.now().Before(expiresAt) {
		return OutcomeExpired
	}
	if !Matches(candidate, secret, expiresAt) {
		return OutcomeMismatch
	}
	return OutcomeValid
}

// Matches compares candidate with the public form of the stored nonce,
// ignoring expiry.
func Matches(candidate, secret string, expiresAt time.Time) bool {
	want := Publicize(secret, ExpiryISO(expiresAt))
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(want)) == 1
}

func randomSecret() (string, error) {
	return utils.RandomAlphanumeric(SecretLen)
}
