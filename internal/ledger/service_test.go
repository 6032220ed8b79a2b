package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YanRho/alky-wallet/internal/core"
	"github.com/YanRho/alky-wallet/internal/log"
)

// memStore is an in-memory Store with the same observable behavior as the
// SQLite implementation.
type memStore struct {
	mu           sync.Mutex
	users        map[string]core.User // keyed by email
	accounts     []core.Account
	transactions map[string]core.Transaction
	failWith     error // when set, every call fails
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]core.User),
		transactions: make(map[string]core.Transaction),
	}
}

func (m *memStore) addUser(email string) core.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := core.User{ID: uuid.NewString(), Email: email, Name: "Test", CreatedAt: time.Now()}
	m.users[email] = u
	return u
}

func (m *memStore) UserByEmail(_ context.Context, email string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return core.User{}, m.failWith
	}
	u, ok := m.users[email]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) FirstAccountByOwner(_ context.Context, ownerID string) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return core.Account{}, m.failWith
	}
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			return a, nil
		}
	}
	return core.Account{}, core.ErrNotFound
}

func (m *memStore) CreateAccountIfAbsent(_ context.Context, a core.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, existing := range m.accounts {
		if existing.OwnerID == a.OwnerID && existing.Name == a.Name {
			return nil
		}
	}
	m.accounts = append(m.accounts, a)
	return nil
}

func (m *memStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.transactions[t.ID] = t
	return nil
}

func (m *memStore) TransactionByID(_ context.Context, id string) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return core.Transaction{}, m.failWith
	}
	t, ok := m.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (m *memStore) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.transactions[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *memStore) SumAmount(_ context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var total int64
	for _, t := range m.transactions {
		if t.OwnerID == ownerID {
			total += t.AmountCents
		}
	}
	return total, nil
}

func (m *memStore) SumNegativeInRange(_ context.Context, ownerID string, from, to time.Time) (int64, error) {
	return m.sumInRange(ownerID, from, to, func(c int64) bool { return c < 0 })
}

func (m *memStore) SumPositiveInRange(_ context.Context, ownerID string, from, to time.Time) (int64, error) {
	return m.sumInRange(ownerID, from, to, func(c int64) bool { return c > 0 })
}

func (m *memStore) sumInRange(ownerID string, from, to time.Time, match func(int64) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var total int64
	for _, t := range m.transactions {
		if t.OwnerID != ownerID || !match(t.AmountCents) {
			continue
		}
		if t.OccurredAt.Before(from) || t.OccurredAt.After(to) {
			continue
		}
		total += t.AmountCents
	}
	return total, nil
}

func (m *memStore) RecentTransactions(_ context.Context, ownerID string, limit int) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []core.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu      sync.Mutex
	upserts []string
	deletes []core.Transaction
	fail    bool
}

func (p *recordingPublisher) PublishTransactionUpsert(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.upserts = append(p.upserts, id)
	return nil
}

func (p *recordingPublisher) PublishTransactionDelete(_ context.Context, t core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.deletes = append(p.deletes, t)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{})
}

func newService(store Store, events EventPublisher) *Service {
	return New(store, events, testLogger())
}

func TestCreateTransactionSignConvention(t *testing.T) {
	cases := []struct {
		name string
		kind core.Kind
		want int64
	}{
		{"expense is negative", core.KindExpense, -1999},
		{"income is positive", core.KindIncome, 1999},
		{"missing kind defaults to expense", "", -1999},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			store.addUser("ada@example.com")
			svc := newService(store, nil)

			err := svc.CreateTransaction(context.Background(), "ada@example.com", CreateInput{
				Kind: tc.kind, Amount: "19.99", OccurredAt: "2024-03-05",
			})
			require.NoError(t, err)

			require.Len(t, store.transactions, 1)
			for _, tx := range store.transactions {
				assert.Equal(t, tc.want, tx.AmountCents)
			}
		})
	}
}

func TestCreateTransactionProvisionsDefaultAccount(t *testing.T) {
	store := newMemStore()
	user := store.addUser("ada@example.com")
	svc := newService(store, nil)

	err := svc.CreateTransaction(context.Background(), "ada@example.com", CreateInput{
		Kind: core.KindExpense, Amount: "19.99", OccurredAt: "2024-03-05",
	})
	require.NoError(t, err)

	require.Len(t, store.accounts, 1)
	acct := store.accounts[0]
	assert.Equal(t, user.ID, acct.OwnerID)
	assert.Equal(t, "Cash", acct.Name)
	assert.Equal(t, "USD", acct.Currency)

	for _, tx := range store.transactions {
		assert.Equal(t, acct.ID, tx.AccountID)
		assert.Equal(t, user.ID, tx.OwnerID)
	}

	// A second create reuses the same account.
	require.NoError(t, svc.CreateTransaction(context.Background(), "ada@example.com", CreateInput{
		Kind: core.KindIncome, Amount: "5", OccurredAt: "2024-03-06",
	}))
	assert.Len(t, store.accounts, 1)
}

func TestCreateTransactionValidation(t *testing.T) {
	cases := []struct {
		name    string
		email   string
		in      CreateInput
		wantErr error
	}{
		{"no principal", "", CreateInput{Amount: "1", OccurredAt: "2024-03-05"}, core.ErrUnauthenticated},
		{"bad kind", "ada@example.com", CreateInput{Kind: "transfer", Amount: "1", OccurredAt: "2024-03-05"}, core.ErrInvalidInput},
		{"bad amount", "ada@example.com", CreateInput{Amount: "abc", OccurredAt: "2024-03-05"}, core.ErrInvalidAmount},
		{"bad date", "ada@example.com", CreateInput{Amount: "1", OccurredAt: "not-a-date"}, core.ErrInvalidDate},
		{"unknown user", "ghost@example.com", CreateInput{Amount: "1", OccurredAt: "2024-03-05"}, core.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			store.addUser("ada@example.com")
			svc := newService(store, nil)

			err := svc.CreateTransaction(context.Background(), tc.email, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, store.transactions)
		})
	}
}

func TestCreateTransactionValidatesAmountBeforeUserLookup(t *testing.T) {
	// A bad amount must be reported even when the user does not exist:
	// the validation order is amount, date, then user.
	store := newMemStore()
	svc := newService(store, nil)

	err := svc.CreateTransaction(context.Background(), "ghost@example.com", CreateInput{
		Amount: "abc", OccurredAt: "2024-03-05",
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	err = svc.CreateTransaction(context.Background(), "ghost@example.com", CreateInput{
		Amount: "1", OccurredAt: "bad",
	})
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestCreateTransactionPublishesEvent(t *testing.T) {
	store := newMemStore()
	store.addUser("ada@example.com")
	events := &recordingPublisher{}
	svc := newService(store, events)

	require.NoError(t, svc.CreateTransaction(context.Background(), "ada@example.com", CreateInput{
		Kind: core.KindExpense, Amount: "1", OccurredAt: "2024-03-05",
	}))
	require.Len(t, events.upserts, 1)
	_, ok := store.transactions[events.upserts[0]]
	assert.True(t, ok, "published id must match the stored row")
}

func TestCreateTransactionSurvivesPublishFailure(t *testing.T) {
	store := newMemStore()
	store.addUser("ada@example.com")
	events := &recordingPublisher{fail: true}
	svc := newService(store, events)

	err := svc.CreateTransaction(context.Background(), "ada@example.com", CreateInput{
		Kind: core.KindExpense, Amount: "1", OccurredAt: "2024-03-05",
	})
	assert.NoError(t, err, "publish failures must not fail the request")
	assert.Len(t, store.transactions, 1)
}

func TestDeleteTransactionOwnership(t *testing.T) {
	store := newMemStore()
	ada := store.addUser("ada@example.com")
	store.addUser("bob@example.com")
	svc := newService(store, nil)

	tx := core.Transaction{ID: uuid.NewString(), OwnerID: ada.ID, AmountCents: -100, OccurredAt: time.Now()}
	store.transactions[tx.ID] = tx

	// Someone else's transaction answers exactly like a missing one.
	errOther := svc.DeleteTransaction(context.Background(), "bob@example.com", tx.ID)
	errMissing := svc.DeleteTransaction(context.Background(), "bob@example.com", uuid.NewString())
	assert.ErrorIs(t, errOther, core.ErrNotFound)
	assert.ErrorIs(t, errMissing, core.ErrNotFound)
	assert.Len(t, store.transactions, 1, "foreign delete must not remove the row")

	require.NoError(t, svc.DeleteTransaction(context.Background(), "ada@example.com", tx.ID))
	assert.Empty(t, store.transactions)

	// Repeating the delete reports not-found, a terminal state.
	assert.ErrorIs(t, svc.DeleteTransaction(context.Background(), "ada@example.com", tx.ID), core.ErrNotFound)
}

func TestDeleteTransactionPublishesSnapshot(t *testing.T) {
	store := newMemStore()
	ada := store.addUser("ada@example.com")
	events := &recordingPublisher{}
	svc := newService(store, events)

	tx := core.Transaction{ID: uuid.NewString(), OwnerID: ada.ID, AmountCents: -100, OccurredAt: time.Now()}
	store.transactions[tx.ID] = tx

	require.NoError(t, svc.DeleteTransaction(context.Background(), "ada@example.com", tx.ID))
	require.Len(t, events.deletes, 1)
	assert.Equal(t, tx.ID, events.deletes[0].ID)
}

func TestDashboardAggregates(t *testing.T) {
	store := newMemStore()
	ada := store.addUser("ada@example.com")
	svc := newService(store, nil)

	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(cents int64, at time.Time) {
		id := uuid.NewString()
		store.transactions[id] = core.Transaction{
			ID: id, OwnerID: ada.ID, AmountCents: cents, OccurredAt: at,
		}
	}
	add(500, monthStart)                                       // included: first instant of month
	add(-300, ref.AddDate(0, 0, -2))                           // included
	add(120, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)) // balance only: previous month

	d := svc.Dashboard(context.Background(), "ada@example.com", ref)
	assert.Empty(t, d.Error)
	assert.Equal(t, int64(320), d.TotalBalanceCents)
	assert.Equal(t, int64(300), d.MonthSpendCents, "month spend is reported as a positive magnitude")
	assert.Equal(t, int64(500), d.MonthIncomeCents)
	assert.Len(t, d.Recent, 3)
}

func TestDashboardEmptyLedger(t *testing.T) {
	store := newMemStore()
	store.addUser("ada@example.com")
	svc := newService(store, nil)

	d := svc.Dashboard(context.Background(), "ada@example.com", time.Now())
	assert.Zero(t, d.TotalBalanceCents)
	assert.Zero(t, d.MonthSpendCents)
	assert.Zero(t, d.MonthIncomeCents)
	assert.NotNil(t, d.Recent)
	assert.Empty(t, d.Recent)
	assert.Empty(t, d.Error)
}

func TestDashboardRecentLimit(t *testing.T) {
	store := newMemStore()
	ada := store.addUser("ada@example.com")
	svc := newService(store, nil)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		id := uuid.NewString()
		store.transactions[id] = core.Transaction{
			ID: id, OwnerID: ada.ID, AmountCents: 100, OccurredAt: base.AddDate(0, 0, i),
		}
	}

	d := svc.Dashboard(context.Background(), "ada@example.com", base.AddDate(0, 1, 0))
	require.Len(t, d.Recent, RecentLimit)
	for i := 1; i < len(d.Recent); i++ {
		assert.False(t, d.Recent[i-1].OccurredAt.Before(d.Recent[i].OccurredAt))
	}
}

func TestDashboardUnknownUserDegradesQuietly(t *testing.T) {
	svc := newService(newMemStore(), nil)
	d := svc.Dashboard(context.Background(), "ghost@example.com", time.Now())
	assert.Zero(t, d.TotalBalanceCents)
	assert.Empty(t, d.Recent)
	assert.Empty(t, d.Error, "a missing user is not an advisory condition")
}

func TestDashboardStorageFailureDegradesWithAdvisory(t *testing.T) {
	store := newMemStore()
	store.addUser("ada@example.com")
	store.failWith = errors.New("disk on fire")
	svc := newService(store, nil)

	d := svc.Dashboard(context.Background(), "ada@example.com", time.Now())
	assert.Zero(t, d.TotalBalanceCents)
	assert.Zero(t, d.MonthSpendCents)
	assert.Zero(t, d.MonthIncomeCents)
	assert.Empty(t, d.Recent)
	assert.NotEmpty(t, d.Error)
}

func TestEnsureAccountReusesExisting(t *testing.T) {
	store := newMemStore()
	ada := store.addUser("ada@example.com")
	existing := core.Account{ID: uuid.NewString(), OwnerID: ada.ID, Name: "Savings", Currency: "EUR", CreatedAt: time.Now()}
	store.accounts = append(store.accounts, existing)
	svc := newService(store, nil)

	got, err := svc.EnsureAccount(context.Background(), ada.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID, "the first existing account is reused, never replaced")
	assert.Len(t, store.accounts, 1)
}
