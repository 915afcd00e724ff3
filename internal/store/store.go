package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-backend/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres error codes the store translates into application errors
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// Constraint names from the schema
const (
	constraintOrderDedup   = "orders_store_client_order_key"
	constraintPaymentOrder = "payments_order_key"
)

// Store is the Postgres-backed Event Log, Order Store and Payment Store.
// The handle is owned by the caller and injected at construction.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStoreWithDB(db), nil
}

// NewStoreWithDB wraps an existing connection pool
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// clock returns the current time at the precision Postgres stores
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// withTx runs fn in a read-committed transaction, committing only if fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Database("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Database("failed to commit transaction", err)
	}
	return nil
}

func pqCode(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqCode(err)
	return ok && string(pqErr.Code) == pqUniqueViolation && pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error) bool {
	pqErr, ok := pqCode(err)
	return ok && string(pqErr.Code) == pqForeignKeyViolation
}

func isCheckViolation(err error) (string, bool) {
	pqErr, ok := pqCode(err)
	if !ok || string(pqErr.Code) != pqCheckViolation {
		return "", false
	}
	return pqErr.Constraint, true
}

// escapeLike escapes LIKE wildcards so the input matches as a literal substring
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// predicate accumulates AND-ed conditions with positional arguments
type predicate struct {
	conds []string
	args  []any
}

func (p *predicate) add(cond string, arg any) {
	p.args = append(p.args, arg)
	p.conds = append(p.conds, fmt.Sprintf(cond, len(p.args)))
}

func (p *predicate) where() string {
	if len(p.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause with the full argument list
func (p *predicate) page(limit, offset int) (string, []any) {
	args := append(append([]any{}, p.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
