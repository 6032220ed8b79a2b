package core

import (
	"errors"
	"strings"
	"time"
)

// Kind is the direction of a ledger entry as submitted by the user.
// The stored sign of AmountCents is derived from it: income is positive,
// everything else is negative.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is one of the accepted kinds. The empty kind is
// accepted and treated as expense.
func (k Kind) Valid() bool {
	return k == "" || k == KindExpense || k == KindIncome
}

type (
	// User is the identity anchor. The ledger core never mutates users;
	// they are created at registration and looked up by normalized email.
	User struct {
		ID           string
		Email        string
		Name         string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Account is a named bucket of funds owned by exactly one user.
	Account struct {
		ID        string
		OwnerID   string
		Name      string
		Currency  string
		CreatedAt time.Time
	}

	// Transaction is an atomic ledger entry. AmountCents is signed:
	// negative for outflows, positive for inflows. OccurredAt is the
	// user-supplied business timestamp, not the row creation time.
	Transaction struct {
		ID          string
		OwnerID     string
		AccountID   string
		AmountCents int64
		Note        *string
		OccurredAt  time.Time
		CreatedAt   time.Time
	}

	// RecentTransaction is the dashboard projection of a ledger entry.
	RecentTransaction struct {
		ID          string    `json:"id"`
		Note        *string   `json:"note"`
		AmountCents int64     `json:"amountCents"`
		OccurredAt  time.Time `json:"occurredAt"`
	}

	// Dashboard holds the point-in-time aggregates computed from the
	// ledger. Error carries a soft, user-facing advisory when the
	// aggregates could not be loaded; the values are then all zero.
	Dashboard struct {
		TotalBalanceCents int64               `json:"totalBalanceCents"`
		MonthSpendCents   int64               `json:"monthSpendCents"`
		MonthIncomeCents  int64               `json:"monthIncomeCents"`
		Recent            []RecentTransaction `json:"recent"`
		Error             string              `json:"error,omitempty"`
	}
)

const (
	DefaultAccountName     = "Cash"
	DefaultAccountCurrency = "USD"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotFound        = errors.New("not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// NormalizeEmail lower-cases and trims an email address. All storage and
// lookups use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNote trims a free-text note and collapses empty input to nil so
// the store keeps NULL instead of "".
func NormalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
