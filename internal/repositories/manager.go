package repositories

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"commentboard/internal/dbx"
	"commentboard/internal/migrations"
)

// Manager hands out repositories bound to either the pool (Conn) or a
// transaction opened with InTx.
type Manager interface {
	dbx.Runner
	RunMigrations(ctx context.Context) error
	Logins(db dbx.DBTX) LoginRepository
	ECodes(db dbx.DBTX) ECodeRepository
	Nonces(db dbx.DBTX) NonceRepository
	Comments(db dbx.DBTX) CommentRepository
	Ping(ctx context.Context) error
	Close() error
}

type PostgresManager struct {
	*dbx.SQLRunner
	db *sql.DB
}

func NewPostgresManager(dsn string) (*PostgresManager, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return NewPostgresManagerFromDB(db), nil
}

func NewPostgresManagerFromDB(db *sql.DB) *PostgresManager {
	return &PostgresManager{SQLRunner: dbx.NewSQLRunner(db), db: db}
}

func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *PostgresManager) Logins(db dbx.DBTX) LoginRepository     { return NewLoginRepository(db) }
func (m *PostgresManager) ECodes(db dbx.DBTX) ECodeRepository     { return NewECodeRepository(db) }
func (m *PostgresManager) Nonces(db dbx.DBTX) NonceRepository     { return NewNonceRepository(db) }
func (m *PostgresManager) Comments(db dbx.DBTX) CommentRepository { return NewCommentRepository(db) }

func (m *PostgresManager) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }
func (m *PostgresManager) Close() error                   { return m.db.Close() }
