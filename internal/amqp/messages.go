package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YanRho/alky-wallet/internal/core"
)

// Message types routed over the ledger event stream.
const (
	TypeTransactionUpsert = "transaction.upsert"
	TypeTransactionDelete = "transaction.delete"
)

// Envelope wraps every message with its type so the consumer can dispatch
// without peeking at the payload.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// UpsertMessage announces a created ledger row. It carries only the id;
// the worker re-reads the row from storage so the mirror never trusts
// stale payloads.
type UpsertMessage struct {
	ID string `json:"id"`
}

// DeleteMessage announces a removed ledger row. The row is already gone
// from storage, so the message carries the snapshot the mirror needs.
type DeleteMessage struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	AmountCents int64     `json:"amountCents"`
	Note        *string   `json:"note"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// DeleteMessageFrom builds the delete snapshot from a ledger row.
func DeleteMessageFrom(t core.Transaction) DeleteMessage {
	return DeleteMessage{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		AmountCents: t.AmountCents,
		Note:        t.Note,
		OccurredAt:  t.OccurredAt,
	}
}

func wrap(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
}
