package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/simaogato/indexfund-backend/internal/domain"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=indexfund sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx         *sql.Tx
	savepoints int
}

// conn returns the transaction carried by ctx, or the pool
func (db *DB) conn(ctx context.Context) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return db.DB
}

// WithinTx runs fn in a transaction carried by the context. A nested call
// runs inside a savepoint of the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.savepoints++
		name := fmt.Sprintf("sp_%d", st.savepoints)
		if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}
		if err := fn(ctx); err != nil {
			if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
				return fmt.Errorf("failed to roll back savepoint after %v: %w", err, rbErr)
			}
			return err
		}
		if _, err := st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		return nil
	}

	dbTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{tx: dbTx})); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nextCounter returns the current value of a named counter and advances it
func (db *DB) nextCounter(ctx context.Context, name string) (uint64, error) {
	query := `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING (value - 1)::TEXT
	`
	var s string
	if err := db.conn(ctx).QueryRowContext(ctx, query, name).Scan(&s); err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}
	b, err := domain.ParseBalance(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse counter %s: %w", name, err)
	}
	return uint64(b), nil
}

// Balances are stored as NUMERIC(20,0) and exchanged as text since the
// driver cannot bind unsigned 64-bit values above MaxInt64.
func parseBalance(column, s string) (domain.Balance, error) {
	b, err := domain.ParseBalance(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return b, nil
}

var _ domain.TxManager = (*DB)(nil)
