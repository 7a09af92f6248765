package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
)

type NonceRepository interface {
	// Create returns models.ErrConflict when the secret is already taken.
	Create(ctx context.Context, ecodeID int64, secret string, expiresAt time.Time) (*models.Nonce, error)
	DeleteByECodeID(ctx context.Context, ecodeID int64) error
}

type nonceRepository struct {
	DB dbx.DBTX
}

func NewNonceRepository(db dbx.DBTX) NonceRepository {
	return &nonceRepository{DB: db}
}

func (r *nonceRepository) Create(ctx context.Context, ecodeID int64, secret string, expiresAt time.Time) (*models.Nonce, error) {
	const q = `
		INSERT INTO nonces (ecode_id, secret_code, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (secret_code) DO NOTHING
		RETURNING ecode_id
	`
	n := &models.Nonce{SecretCode: secret, ExpiresAt: expiresAt}
	if err := r.DB.QueryRowContext(ctx, q, ecodeID, secret, expiresAt).Scan(&n.ECodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("nonce create: %w", err)
	}
	return n, nil
}

func (r *nonceRepository) DeleteByECodeID(ctx context.Context, ecodeID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM nonces WHERE ecode_id = $1`, ecodeID)
	if err != nil {
		return fmt.Errorf("nonce delete: %w", err)
	}
	return expectOneRow(res, "nonce delete")
}
