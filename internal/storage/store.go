// Package storage persists users, accounts and the transaction ledger in
// SQLite. Aggregates are computed by the database, not in application
// memory.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YanRho/alky-wallet/internal/core"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection pool. It is safe for concurrent use;
// construct one per process and inject it where needed.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at dbPath and runs
// pending migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. modernc/sqlite does not export a typed error for this, so the
// message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a user row. The email must already be normalized.
// Returns core.ErrEmailTaken when the email is in use.
func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt.UTC().Unix())
	if isUniqueViolation(err) {
		return core.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail looks a user up by normalized email. Returns
// core.ErrUserNotFound when no row matches.
func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

// FirstAccountByOwner returns the owner's first account in stable order
// (creation time, then id). Returns core.ErrNotFound when the owner has no
// accounts yet.
func (s *Store) FirstAccountByOwner(ctx context.Context, ownerID string) (core.Account, error) {
	var (
		a       core.Account
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, currency, created_at FROM accounts
		 WHERE owner_id = ? ORDER BY created_at, id LIMIT 1`,
		ownerID).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Currency, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get first account: %w", err)
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	return a, nil
}

// CreateAccountIfAbsent inserts the account unless the owner already has
// one with the same name. The UNIQUE (owner_id, name) constraint makes
// concurrent first-time provisioning collapse onto a single row.
func (s *Store) CreateAccountIfAbsent(ctx context.Context, a core.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, name, currency, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, name) DO NOTHING`,
		a.ID, a.OwnerID, a.Name, a.Currency, a.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// CreateTransaction persists one ledger row.
func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) error {
	var note sql.NullString
	if t.Note != nil {
		note = sql.NullString{String: *t.Note, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, account_id, amount_cents, note, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, t.AmountCents, note,
		t.OccurredAt.UTC().Unix(), t.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// TransactionByID fetches a single ledger row. Returns core.ErrNotFound
// when no row matches.
func (s *Store) TransactionByID(ctx context.Context, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, account_id, amount_cents, note, occurred_at, created_at
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// DeleteTransaction removes a ledger row by id. Returns core.ErrNotFound
// when the row was already gone.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction affected rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumAmount returns the signed sum of all of an owner's ledger rows.
// An empty ledger sums to zero.
func (s *Store) SumAmount(ctx context.Context, ownerID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE owner_id = ?`,
		ownerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum amount: %w", err)
	}
	return total, nil
}

// SumNegativeInRange sums the strictly negative rows whose occurred_at
// falls inside [from, to], both bounds inclusive. The result is <= 0.
func (s *Store) SumNegativeInRange(ctx context.Context, ownerID string, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE owner_id = ? AND amount_cents < 0 AND occurred_at >= ? AND occurred_at <= ?`,
		ownerID, from.UTC().Unix(), to.UTC().Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum negative in range: %w", err)
	}
	return total, nil
}

// SumPositiveInRange sums the strictly positive rows whose occurred_at
// falls inside [from, to], both bounds inclusive.
func (s *Store) SumPositiveInRange(ctx context.Context, ownerID string, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE owner_id = ? AND amount_cents > 0 AND occurred_at >= ? AND occurred_at <= ?`,
		ownerID, from.UTC().Unix(), to.UTC().Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum positive in range: %w", err)
	}
	return total, nil
}

// RecentTransactions returns up to limit rows ordered by occurred_at
// descending. Ties break on created_at then id so the order is
// deterministic.
func (s *Store) RecentTransactions(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, account_id, amount_cents, note, occurred_at, created_at
		 FROM transactions WHERE owner_id = ?
		 ORDER BY occurred_at DESC, created_at DESC, id DESC LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent transactions rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		note     sql.NullString
		occurred int64
		created  int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.AmountCents, &note, &occurred, &created); err != nil {
		return core.Transaction{}, err
	}
	if note.Valid {
		t.Note = &note.String
	}
	t.OccurredAt = time.Unix(occurred, 0).UTC()
	t.CreatedAt = time.Unix(created, 0).UTC()
	return t, nil
}
