// Package sheets defines the outbound ports for the spreadsheet mirror of
// the ledger. The mirror is an export; the SQLite ledger stays the source
// of truth.
package sheets

import (
	"context"

	"github.com/YanRho/alky-wallet/internal/core"
)

type (
	// RowWriter appends one ledger row to the mirror.
	RowWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// RowDeleter removes the mirrored row for a deleted ledger entry.
	RowDeleter interface {
		DeleteRow(ctx context.Context, transactionID string) error
	}
)
