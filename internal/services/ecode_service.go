package services

import (
	"context"
	"errors"
	"fmt"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
	"commentboard/internal/repositories"
	"commentboard/internal/utils"
)

// MaxGenerationAttempts bounds the draws for an ECode or a Nonce secret.
const MaxGenerationAttempts = 4

type ECodeService struct {
	repos repositories.Manager
	draw  func() (string, error)
}

func NewECodeService(repos repositories.Manager) *ECodeService {
	return &ECodeService{repos: repos, draw: randomCode}
}

// Generate stores a fresh 8-digit code for loginID. A code already in use
// counts as a collision; after MaxGenerationAttempts collisions it gives up
// with ErrGenerationExhausted.
func (s *ECodeService) Generate(ctx context.Context, tx dbx.DBTX, loginID int64) (*models.ECode, error) {
	for attempt := 0; attempt < MaxGenerationAttempts; attempt++ {
		code, err := s.draw()
		if err != nil {
			return nil, fmt.Errorf("draw ecode: %w", err)
		}
		e, err := s.repos.ECodes(tx).Create(ctx, loginID, code)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, ErrGenerationExhausted
}

func (s *ECodeService) Resolve(ctx context.Context, code, name, email string) (*models.PendingConfirmation, error) {
	return s.repos.ECodes(s.repos.Conn()).Resolve(ctx, code, name, email)
}

// Delete must run after the ECode's Nonce is gone.
func (s *ECodeService) Delete(ctx context.Context, tx dbx.DBTX, ecodeID int64) error {
	return s.repos.ECodes(tx).Delete(ctx, ecodeID)
}

func randomCode() (string, error) {
	return utils.RandomDigits(8)
}
