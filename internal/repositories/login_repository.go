package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
)

const pqUniqueViolation = "23505"

type LoginRepository interface {
	Create(ctx context.Context, login *models.Login) error
	GetByID(ctx context.Context, id int64) (*models.Login, error)
	GetConfirmedByName(ctx context.Context, name string) (*models.Login, error)
	// MarkConfirmed flips confirmed false->true; ErrNotFound if the row
	// is missing or already confirmed.
	MarkConfirmed(ctx context.Context, id int64) error
}

type loginRepository struct {
	DB dbx.DBTX
}

func NewLoginRepository(db dbx.DBTX) LoginRepository {
	return &loginRepository{DB: db}
}

func (r *loginRepository) Create(ctx context.Context, login *models.Login) error {
	const q = `
		INSERT INTO logins (name, email, password_hash, confirmed)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, q, login.Name, login.Email, login.PasswordHash).
		Scan(&login.ID, &login.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("login create: %w", err)
	}
	login.Confirmed = false
	return nil
}

func (r *loginRepository) GetByID(ctx context.Context, id int64) (*models.Login, error) {
	const q = `
		SELECT id, name, email, password_hash, confirmed, created_at
		FROM logins
		WHERE id = $1
	`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, id), "login get")
}

func (r *loginRepository) GetConfirmedByName(ctx context.Context, name string) (*models.Login, error) {
	const q = `
		SELECT id, name, email, password_hash, confirmed, created_at
		FROM logins
		WHERE name = $1 AND confirmed = TRUE
	`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, name), "login get confirmed")
}

func (r *loginRepository) MarkConfirmed(ctx context.Context, id int64) error {
	const q = `UPDATE logins SET confirmed = TRUE WHERE id = $1 AND confirmed = FALSE`
	res, err := r.DB.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("login confirm: %w", err)
	}
	return expectOneRow(res, "login confirm")
}

func (r *loginRepository) scanOne(row *sql.Row, op string) (*models.Login, error) {
	l := &models.Login{}
	if err := row.Scan(&l.ID, &l.Name, &l.Email, &l.PasswordHash, &l.Confirmed, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// expectOneRow turns "no row touched" into ErrNotFound.
func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n != 1 {
		return models.ErrNotFound
	}
	return nil
}
