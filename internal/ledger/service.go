// Package ledger implements the transaction ledger core: identity
// resolution, lazy account provisioning, validated create/delete of ledger
// rows and the point-in-time dashboard aggregates.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/YanRho/alky-wallet/internal/core"
	"github.com/YanRho/alky-wallet/internal/log"
)

// RecentLimit is how many ledger rows the dashboard shows.
const RecentLimit = 5

// dashboardAdvisory is the soft, user-facing message attached to a degraded
// dashboard. Internal error detail is logged, never surfaced.
const dashboardAdvisory = "We couldn't load your dashboard right now. Please try again."

// Store is the persistence surface the ledger core needs. *storage.Store
// satisfies it.
type Store interface {
	UserByEmail(ctx context.Context, email string) (core.User, error)
	FirstAccountByOwner(ctx context.Context, ownerID string) (core.Account, error)
	CreateAccountIfAbsent(ctx context.Context, a core.Account) error
	CreateTransaction(ctx context.Context, t core.Transaction) error
	TransactionByID(ctx context.Context, id string) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	SumAmount(ctx context.Context, ownerID string) (int64, error)
	SumNegativeInRange(ctx context.Context, ownerID string, from, to time.Time) (int64, error)
	SumPositiveInRange(ctx context.Context, ownerID string, from, to time.Time) (int64, error)
	RecentTransactions(ctx context.Context, ownerID string, limit int) ([]core.Transaction, error)
}

// EventPublisher mirrors ledger mutations onto the event stream consumed by
// the export worker. Publishing is best-effort: failures are logged by the
// service and never fail the user request.
type EventPublisher interface {
	PublishTransactionUpsert(ctx context.Context, id string) error
	PublishTransactionDelete(ctx context.Context, t core.Transaction) error
}

// Service is the transaction mutation service plus the aggregation engine.
type Service struct {
	store  Store
	events EventPublisher // nil when no event stream is configured
	logger *log.Logger
	now    func() time.Time
}

func New(store Store, events EventPublisher, logger *log.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
}

// ResolveUser maps an authenticated principal email to its user row.
// An empty email means no principal was attached to the request.
func (s *Service) ResolveUser(ctx context.Context, email string) (core.User, error) {
	if email == "" {
		return core.User{}, core.ErrUnauthenticated
	}
	user, err := s.store.UserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// EnsureAccount returns the owner's first account, lazily creating the
// default "Cash"/"USD" one on first use. Concurrent first-time calls are
// safe: the store's unique constraint collapses duplicate creations.
func (s *Service) EnsureAccount(ctx context.Context, ownerID string) (core.Account, error) {
	account, err := s.store.FirstAccountByOwner(ctx, ownerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Account{}, fmt.Errorf("find account: %w", err)
	}

	fresh := core.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      core.DefaultAccountName,
		Currency:  core.DefaultAccountCurrency,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAccountIfAbsent(ctx, fresh); err != nil {
		return core.Account{}, fmt.Errorf("provision account: %w", err)
	}

	// Re-select: a concurrent call may have won the insert.
	account, err = s.store.FirstAccountByOwner(ctx, ownerID)
	if err != nil {
		return core.Account{}, fmt.Errorf("reload account: %w", err)
	}

	s.logger.InfoContext(ctx, "default account provisioned",
		"owner_id", ownerID, "account_id", account.ID)
	return account, nil
}

// CreateInput is the validated-at-the-edge payload for a create. Fields
// hold the raw strings the client sent; parsing happens here so the
// validation order (amount, then date, then user) is owned by the service.
type CreateInput struct {
	Kind       core.Kind
	Amount     string
	Note       *string
	OccurredAt string
}

// CreateTransaction validates the input and appends a ledger row for the
// principal. Validation failures map to the core sentinel errors, checked
// in order: amount, date, then user existence.
func (s *Service) CreateTransaction(ctx context.Context, email string, in CreateInput) error {
	if email == "" {
		return core.ErrUnauthenticated
	}
	if !in.Kind.Valid() {
		return core.ErrInvalidInput
	}

	amountCents, err := core.ParseAmountCents(in.Amount, in.Kind)
	if err != nil {
		return err
	}
	occurredAt, err := core.ParseOccurredAt(in.OccurredAt)
	if err != nil {
		return err
	}

	user, err := s.ResolveUser(ctx, email)
	if err != nil {
		return err
	}

	account, err := s.EnsureAccount(ctx, user.ID)
	if err != nil {
		return err
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		AccountID:   account.ID,
		AmountCents: amountCents,
		Note:        core.NormalizeNote(in.Note),
		OccurredAt:  occurredAt,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "transaction created",
		"transaction_id", tx.ID,
		"owner_id", tx.OwnerID,
		"amount_cents", tx.AmountCents)

	if s.events != nil {
		if err := s.events.PublishTransactionUpsert(ctx, tx.ID); err != nil {
			s.logger.ErrorContext(ctx, "publish transaction upsert failed",
				"transaction_id", tx.ID, "error", err)
		}
	}
	return nil
}

// DeleteTransaction removes a ledger row owned by the principal. A row that
// is absent or owned by someone else answers core.ErrNotFound either way,
// so callers cannot probe for other users' data.
func (s *Service) DeleteTransaction(ctx context.Context, email, id string) error {
	if email == "" {
		return core.ErrUnauthenticated
	}
	user, err := s.ResolveUser(ctx, email)
	if err != nil {
		return err
	}

	tx, err := s.store.TransactionByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.OwnerID != user.ID {
		return core.ErrNotFound
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "transaction deleted",
		"transaction_id", id, "owner_id", user.ID)

	if s.events != nil {
		if err := s.events.PublishTransactionDelete(ctx, tx); err != nil {
			s.logger.ErrorContext(ctx, "publish transaction delete failed",
				"transaction_id", id, "error", err)
		}
	}
	return nil
}

// Dashboard computes the four aggregates for the principal at the given
// reference instant. The sub-queries run concurrently and are not wrapped
// in a shared snapshot; a mutation landing between them can skew one value
// against another, which is an accepted tradeoff. Any failure, including a
// missing user, degrades to an all-zero dashboard rather than an error.
func (s *Service) Dashboard(ctx context.Context, email string, ref time.Time) core.Dashboard {
	empty := core.Dashboard{Recent: make([]core.RecentTransaction, 0, RecentLimit)}
	if email == "" {
		return empty
	}

	user, err := s.store.UserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrUserNotFound) {
		return empty
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "dashboard user lookup failed", "error", err)
		empty.Error = dashboardAdvisory
		return empty
	}

	from, to := core.MonthWindow(ref)

	var (
		total, spend, income int64
		recentRows           []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.SumAmount(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		spend, err = s.store.SumNegativeInRange(gctx, user.ID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		income, err = s.store.SumPositiveInRange(gctx, user.ID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		recentRows, err = s.store.RecentTransactions(gctx, user.ID, RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard aggregation failed",
			"owner_id", user.ID, "error", err)
		empty.Error = dashboardAdvisory
		return empty
	}

	recent := make([]core.RecentTransaction, 0, len(recentRows))
	for _, t := range recentRows {
		recent = append(recent, core.RecentTransaction{
			ID:          t.ID,
			Note:        t.Note,
			AmountCents: t.AmountCents,
			OccurredAt:  t.OccurredAt,
		})
	}

	if spend < 0 {
		spend = -spend
	}
	return core.Dashboard{
		TotalBalanceCents: total,
		MonthSpendCents:   spend,
		MonthIncomeCents:  income,
		Recent:            recent,
	}
}
