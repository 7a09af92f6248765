package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentboard/internal/models"
	"commentboard/internal/repositories"
)

func TestPublicize(t *testing.T) {
	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Publicize("abcdefghijklmnop", ExpiryISO(exp))

	assert.Regexp(t, `^[0-9a-f]{64}$`, a)
	assert.Equal(t, a, Publicize("abcdefghijklmnop", ExpiryISO(exp)))
	assert.NotEqual(t, a, Publicize("abcdefghijklmnop", ExpiryISO(exp.Add(time.Second))))
	assert.NotEqual(t, a, Publicize("abcdefghijklmnoq", ExpiryISO(exp)))
	assert.NotContains(t, a, "abcdefghijklmnop")
}

func TestExpiryISO_NormalisesZoneAndPrecision(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	tm := time.Date(2030, 5, 1, 15, 0, 0, 999_000_000, loc)
	assert.Equal(t, "2030-05-01T12:00:00Z", ExpiryISO(tm))
}

func TestVerify_ExpiryWinsOverValidHash(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &NonceService{now: func() time.Time { return now }}
	exp := now.Add(time.Hour)
	public := Publicize("secret", ExpiryISO(exp))

	assert.Equal(t, OutcomeValid, svc.Verify(public, "secret", exp))
	assert.Equal(t, OutcomeMismatch, svc.Verify(public, "other", exp))

	now = exp
	assert.Equal(t, OutcomeExpired, svc.Verify(public, "secret", exp))
	now = exp.Add(time.Nanosecond)
	assert.Equal(t, OutcomeExpired, svc.Verify(public, "secret", exp))
}

func TestMatches_IgnoresExpiry(t *testing.T) {
	exp := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	public := Publicize("secret", ExpiryISO(exp))

	assert.True(t, Matches(public, "secret", exp))
	assert.False(t, Matches(public, "other", exp))
	assert.False(t, Matches(public, "secret", exp.Add(time.Second)))
	assert.False(t, Matches("", "secret", exp))
}

func TestNonceGenerate(t *testing.T) {
	repos := repositories.NewMemoryManager()
	ctx := context.Background()
	l := &models.Login{Name: "al", Email: "a@b.com"}
	require.NoError(t, repos.Logins(nil).Create(ctx, l))
	e, err := repos.ECodes(nil).Create(ctx, l.ID, "12345678")
	require.NoError(t, err)

	now := time.Date(2030, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	svc := NewNonceService(repos, 6*time.Hour)
	svc.now = func() time.Time { return now }

	n, err := svc.Generate(ctx, nil, e.ID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{16}$`), n.SecretCode)
	assert.Equal(t, time.Date(2030, 1, 1, 6, 0, 0, 0, time.UTC), n.ExpiresAt)
}

func TestNonceGenerate_SecretCollisionExhausts(t *testing.T) {
	repos := repositories.NewMemoryManager()
	ctx := context.Background()
	var ecodes []int64
	for i, name := range []string{"al", "bo"} {
		l := &models.Login{Name: name, Email: name + "@b.com"}
		require.NoError(t, repos.Logins(nil).Create(ctx, l))
		e, err := repos.ECodes(nil).Create(ctx, l.ID, []string{"11111111", "22222222"}[i])
		require.NoError(t, err)
		ecodes = append(ecodes, e.ID)
	}
	_, err := repos.Nonces(nil).Create(ctx, ecodes[0], "AAAAAAAAAAAAAAAA", time.Now().Add(time.Hour))
	require.NoError(t, err)

	svc := NewNonceService(repos, time.Hour)
	n := 0
	svc.draw = func() (string, error) {
		n++
		return "AAAAAAAAAAAAAAAA", nil
	}
	_, err = svc.Generate(ctx, nil, ecodes[1])
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, MaxGenerationAttempts, n)
}
