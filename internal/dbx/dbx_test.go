package dbx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T) (*SQLRunner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRunner(db), mock
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE logins`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := r.InTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `UPDATE logins SET confirmed = TRUE WHERE id = 1`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM nonces`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := r.InTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nonces WHERE ecode_id = 1`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackAndRethrowsPanic(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	require.PanicsWithValue(t, "kaput", func() {
		_ = r.InTx(context.Background(), func(ctx context.Context, tx DBTX) error {
			panic("kaput")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginError(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	called := false
	err := r.InTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestConn_ReturnsUnderlyingDB(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectExec(`DELETE FROM ecodes`).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := r.Conn().ExecContext(context.Background(), `DELETE FROM ecodes WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_CommitErrorIsReturned(t *testing.T) {
	r, mock := newRunner(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := r.InTx(context.Background(), func(ctx context.Context, tx DBTX) error { return nil })
	require.EqualError(t, err, "serialization failure")
}
