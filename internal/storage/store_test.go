package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YanRho/alky-wallet/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Store, email string) core.User {
	t.Helper()
	u := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func insertTx(t *testing.T, s *Store, ownerID, accountID string, cents int64, occurred time.Time) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountID:   accountID,
		AmountCents: cents,
		OccurredAt:  occurred,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	return tx
}

func TestUserRoundTripAndDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser(t, s, "ada@example.com")

	got, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Test User", got.Name)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	dup := core.User{ID: uuid.NewString(), Email: "ada@example.com", Name: "Other", PasswordHash: "y", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), core.ErrEmailTaken)
}

func TestDefaultAccountProvisioningIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "ada@example.com")

	_, err := s.FirstAccountByOwner(ctx, u.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	first := core.Account{
		ID: uuid.NewString(), OwnerID: u.ID,
		Name: core.DefaultAccountName, Currency: core.DefaultAccountCurrency,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccountIfAbsent(ctx, first))

	// Second insert with a different id is swallowed by the unique
	// constraint; the original row survives.
	second := first
	second.ID = uuid.NewString()
	require.NoError(t, s.CreateAccountIfAbsent(ctx, second))

	got, err := s.FirstAccountByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Cash", got.Name)
	assert.Equal(t, "USD", got.Currency)
}

func TestTransactionCRUDAndNoteNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "ada@example.com")
	acct := core.Account{ID: uuid.NewString(), OwnerID: u.ID, Name: "Cash", Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAccountIfAbsent(ctx, acct))

	note := "coffee"
	tx := core.Transaction{
		ID: uuid.NewString(), OwnerID: u.ID, AccountID: acct.ID,
		AmountCents: -450, Note: &note,
		OccurredAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))

	got, err := s.TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-450), got.AmountCents)
	require.NotNil(t, got.Note)
	assert.Equal(t, "coffee", *got.Note)
	assert.True(t, got.OccurredAt.Equal(tx.OccurredAt))

	noNote := insertTx(t, s, u.ID, acct.ID, 100, time.Now().UTC())
	got, err = s.TransactionByID(ctx, noNote.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Note)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), core.ErrNotFound)
	_, err = s.TransactionByID(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "ada@example.com")
	other := newTestUser(t, s, "bob@example.com")
	acct := core.Account{ID: uuid.NewString(), OwnerID: u.ID, Name: "Cash", Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAccountIfAbsent(ctx, acct))
	otherAcct := core.Account{ID: uuid.NewString(), OwnerID: other.ID, Name: "Cash", Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAccountIfAbsent(ctx, otherAcct))

	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	insertTx(t, s, u.ID, acct.ID, 500, monthStart)                                   // first instant of month
	insertTx(t, s, u.ID, acct.ID, -300, ref.AddDate(0, 0, -1))                       // inside window
	insertTx(t, s, u.ID, acct.ID, 120, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)) // previous month
	insertTx(t, s, u.ID, acct.ID, -75, ref.Add(time.Hour))                           // after reference
	insertTx(t, s, other.ID, otherAcct.ID, 9999, ref)                                // other owner

	total, err := s.SumAmount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500-300+120-75), total)

	spend, err := s.SumNegativeInRange(ctx, u.ID, monthStart, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(-300), spend)

	income, err := s.SumPositiveInRange(ctx, u.ID, monthStart, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(500), income)
}

func TestAggregatesEmptyLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "ada@example.com")

	total, err := s.SumAmount(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, total)

	recent, err := s.RecentTransactions(ctx, u.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRecentTransactionsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "ada@example.com")
	acct := core.Account{ID: uuid.NewString(), OwnerID: u.ID, Name: "Cash", Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAccountIfAbsent(ctx, acct))

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		insertTx(t, s, u.ID, acct.ID, int64(i+1)*100, base.AddDate(0, 0, i))
	}

	recent, err := s.RecentTransactions(ctx, u.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i-1].OccurredAt.Before(recent[i].OccurredAt),
			"recent transactions must be ordered by occurred_at descending")
	}
	assert.True(t, recent[0].OccurredAt.Equal(base.AddDate(0, 0, 6)))
}
