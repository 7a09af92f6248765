package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentboard/internal/models"
	"commentboard/internal/repositories"
)

func seedLogin(t *testing.T, repos *repositories.MemoryManager, name string) *models.Login {
	t.Helper()
	l := &models.Login{Name: name, Email: name + "@b.com"}
	require.NoError(t, repos.Logins(nil).Create(context.Background(), l))
	return l
}

func TestECodeGenerate_RetriesThenSucceeds(t *testing.T) {
	repos := repositories.NewMemoryManager()
	first := seedLogin(t, repos, "al")
	second := seedLogin(t, repos, "bo")
	svc := NewECodeService(repos)
	ctx := context.Background()

	_, err := repos.ECodes(nil).Create(ctx, first.ID, "11111111")
	require.NoError(t, err)

	draws := []string{"11111111", "11111111", "22222222"}
	n := 0
	svc.draw = func() (string, error) {
		c := draws[n]
		n++
		return c, nil
	}

	e, err := svc.Generate(ctx, nil, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "22222222", e.Code)
	assert.Equal(t, 3, n)
}

func TestECodeGenerate_ExhaustsAfterFourDraws(t *testing.T) {
	repos := repositories.NewMemoryManager()
	first := seedLogin(t, repos, "al")
	second := seedLogin(t, repos, "bo")
	svc := NewECodeService(repos)
	ctx := context.Background()

	_, err := repos.ECodes(nil).Create(ctx, first.ID, "11111111")
	require.NoError(t, err)

	n := 0
	svc.draw = func() (string, error) {
		n++
		return "11111111", nil
	}

	_, err = svc.Generate(ctx, nil, second.ID)
	require.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, MaxGenerationAttempts, n)
	assert.Equal(t, 4, n)
}

func TestRandomCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{8}$`)
	for i := 0; i < 200; i++ {
		c, err := randomCode()
		require.NoError(t, err)
		require.Regexp(t, re, c)
	}
}
