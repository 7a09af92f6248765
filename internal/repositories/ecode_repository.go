package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
)

type ECodeRepository interface {
	// Create returns models.ErrConflict when the code is already taken.
	Create(ctx context.Context, loginID int64, code string) (*models.ECode, error)
	// Resolve joins code, nonce and the unconfirmed login claimed by name and email.
	Resolve(ctx context.Context, code, name, email string) (*models.PendingConfirmation, error)
	// ResolveByIdentity is Resolve without the code, for reissuing.
	ResolveByIdentity(ctx context.Context, name, email string) (*models.PendingConfirmation, error)
	GetByLoginID(ctx context.Context, loginID int64) (*models.ECode, error)
	Delete(ctx context.Context, id int64) error
}

type ecodeRepository struct {
	DB dbx.DBTX
}

func NewECodeRepository(db dbx.DBTX) ECodeRepository {
	return &ecodeRepository{DB: db}
}

func (r *ecodeRepository) Create(ctx context.Context, loginID int64, code string) (*models.ECode, error) {
	const q = `
		INSERT INTO ecodes (login_id, code)
		VALUES ($1, $2)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, created_at
	`
	e := &models.ECode{LoginID: loginID, Code: code}
	if err := r.DB.QueryRowContext(ctx, q, loginID, code).Scan(&e.ID, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("ecode create: %w", err)
	}
	return e, nil
}

func (r *ecodeRepository) Resolve(ctx context.Context, code, name, email string) (*models.PendingConfirmation, error) {
	const q = `
		SELECT l.id, l.name, l.email, e.id, n.secret_code, n.expires_at
		FROM ecodes e
		JOIN nonces n ON n.ecode_id = e.id
		JOIN logins l ON l.id = e.login_id
		WHERE e.code = $1 AND l.name = $2 AND l.email = $3 AND l.confirmed = FALSE
	`
	return scanPending(r.DB.QueryRowContext(ctx, q, code, name, email), "ecode resolve")
}

func (r *ecodeRepository) ResolveByIdentity(ctx context.Context, name, email string) (*models.PendingConfirmation, error) {
	const q = `
		SELECT l.id, l.name, l.email, e.id, n.secret_code, n.expires_at
		FROM ecodes e
		JOIN nonces n ON n.ecode_id = e.id
		JOIN logins l ON l.id = e.login_id
		WHERE l.name = $1 AND l.email = $2 AND l.confirmed = FALSE
	`
	return scanPending(r.DB.QueryRowContext(ctx, q, name, email), "ecode resolve identity")
}

func (r *ecodeRepository) GetByLoginID(ctx context.Context, loginID int64) (*models.ECode, error) {
	const q = `SELECT id, login_id, code, created_at FROM ecodes WHERE login_id = $1`
	e := &models.ECode{}
	if err := r.DB.QueryRowContext(ctx, q, loginID).Scan(&e.ID, &e.LoginID, &e.Code, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ecode by login: %w", err)
	}
	return e, nil
}

func (r *ecodeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM ecodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ecode delete: %w", err)
	}
	return expectOneRow(res, "ecode delete")
}

func scanPending(row *sql.Row, op string) (*models.PendingConfirmation, error) {
	p := &models.PendingConfirmation{}
	err := row.Scan(&p.LoginID, &p.LoginName, &p.LoginEmail, &p.ECodeID, &p.NonceSecret, &p.NonceExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
