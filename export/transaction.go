package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/the-line/loyaltysync/api"
	"github.com/the-line/loyaltysync/connector"
	"github.com/the-line/loyaltysync/dedup"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/job"
)

// TransactionCreate records a ledger transaction (order credits, balance
// adjustments) on a contact. The request content hash is attached to the
// remote transaction and checked before creation, so a retried or
// replayed request never produces a second remote transaction.
//
// The target contact comes from the "contact_uuid" payload key, or from
// the preceding request's result when that request was a contact upsert.
type TransactionCreate struct {
	conn  *connector.Connector
	index dedup.Index
}

func (h *TransactionCreate) Validate(ctx context.Context, j *job.Job, r *job.Request) (bool, error) {
	if _, ok := r.Payload["credits"].(float64); !ok {
		return false, errors.New("export: transaction payload has no credits")
	}
	return true, nil
}

func (h *TransactionCreate) Execute(ctx context.Context, ex *handler.Exec) (any, error) {
	contactUUID, err := h.contactUUID(ex)
	if err != nil {
		return nil, err
	}

	client, err := h.conn.Connection(ctx, ex.Job.StoreID)
	if err != nil {
		return nil, err
	}

	hash := ex.Request.ContentHash()
	subject := ex.Job.StoreID + ":" + contactUUID

	seen, err := h.seen(ctx, client, subject, contactUUID, hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, handler.SkipDuplicate(hash, map[string]string{"contact_uuid": contactUUID})
	}

	attrs := attributes(ex.Data)
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs[api.HashAttribute] = hash

	tx, err := client.CreateTransaction(ctx, api.TransactionInput{
		ContactUUID: contactUUID,
		Credits:     ex.Data.Float("credits"),
		Attributes:  attrs,
	})
	if err != nil {
		return nil, err
	}

	if h.index != nil {
		if recErr := h.index.Record(ctx, subject, hash); recErr != nil {
			return nil, fmt.Errorf("export: record hash after create: %w", recErr)
		}
	}
	return tx, nil
}

// seen consults the local index first and falls back to the remote
// ledger, seeding the index with every hash it finds there.
func (h *TransactionCreate) seen(ctx context.Context, client *api.Client, subject, contactUUID, hash string) (bool, error) {
	if h.index != nil {
		hit, err := h.index.Seen(ctx, subject, hash)
		if err != nil {
			return false, err
		}
		if hit {
			return true, nil
		}
	}

	txs, err := client.ListTransactions(ctx, contactUUID)
	if err != nil {
		return false, err
	}

	var hashes []string
	found := false
	for _, tx := range txs {
		if th := tx.Hash(); th != "" {
			hashes = append(hashes, th)
			if th == hash {
				found = true
			}
		}
	}
	if h.index != nil && len(hashes) > 0 {
		if recErr := h.index.RecordAll(ctx, subject, hashes); recErr != nil {
			return false, recErr
		}
	}
	return found, nil
}

func (h *TransactionCreate) contactUUID(ex *handler.Exec) (string, error) {
	if uuid := ex.Data.String("contact_uuid"); uuid != "" {
		return uuid, nil
	}
	if len(ex.PreviousResult) > 0 {
		var prev api.Contact
		if err := json.Unmarshal(ex.PreviousResult, &prev); err == nil && prev.UUID != "" {
			return prev.UUID, nil
		}
	}
	return "", errors.New("export: no contact_uuid in payload or previous result")
}
