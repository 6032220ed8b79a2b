// Package worker consumes ledger events and keeps the spreadsheet mirror
// in step with the SQLite ledger.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/YanRho/alky-wallet/internal/amqp"
	"github.com/YanRho/alky-wallet/internal/core"
	"github.com/YanRho/alky-wallet/internal/log"
	"github.com/YanRho/alky-wallet/internal/sheets"
)

// LedgerReader is the slice of the store the worker needs.
type LedgerReader interface {
	TransactionByID(ctx context.Context, id string) (core.Transaction, error)
}

// MirrorWorker applies upsert/delete events to the mirror. Upserts re-read
// the row from storage; deletes act on the snapshot in the message.
type MirrorWorker struct {
	store   LedgerReader
	writer  sheets.RowWriter
	deleter sheets.RowDeleter
	logger  *log.Logger
}

func NewMirrorWorker(store LedgerReader, writer sheets.RowWriter, deleter sheets.RowDeleter, logger *log.Logger) *MirrorWorker {
	return &MirrorWorker{
		store:   store,
		writer:  writer,
		deleter: deleter,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleUpsert mirrors a created ledger row. A row that vanished between
// the event and this handler was deleted in the meantime; the matching
// delete event will follow, so there is nothing to do.
func (w *MirrorWorker) HandleUpsert(ctx context.Context, msg amqp.UpsertMessage) error {
	tx, err := w.store.TransactionByID(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "row gone before mirroring, skipping",
			"transaction_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	rowRef, err := w.writer.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("mirror transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "transaction mirrored",
		"transaction_id", tx.ID, "row_ref", rowRef)
	return nil
}

// HandleDelete removes the mirrored row for a deleted ledger entry.
func (w *MirrorWorker) HandleDelete(ctx context.Context, msg amqp.DeleteMessage) error {
	if err := w.deleter.DeleteRow(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete mirrored row: %w", err)
	}
	w.logger.InfoContext(ctx, "mirrored row removed", "transaction_id", msg.ID)
	return nil
}
