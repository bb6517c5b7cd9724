package api

import (
	"context"
	"net/http"
	"net/url"
)

// HashAttribute is the custom attribute key under which the request
// content hash is recorded on remote transactions, so a later lookup can
// detect "already applied".
const HashAttribute = "sync_hash"

// Transaction is a loyalty ledger transaction (credits or debits) on a
// contact.
type Transaction struct {
	UUID        string            `json:"uuid"`
	ContactUUID string            `json:"contact_uuid"`
	Credits     float64           `json:"credits"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Hash returns the recorded content hash, or "" when none was attached.
func (t *Transaction) Hash() string {
	return t.Attributes[HashAttribute]
}

// TransactionInput is the payload for transaction creation.
type TransactionInput struct {
	ContactUUID string            `json:"contact_uuid"`
	Credits     float64           `json:"credits"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// CreateTransaction records a ledger transaction on a contact. Callers
// with non-idempotent intent must attach the content hash under
// HashAttribute first.
func (c *Client) CreateTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions", nil, in, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns the transactions recorded on a contact.
func (c *Client) ListTransactions(ctx context.Context, contactUUID string) ([]*Transaction, error) {
	q := url.Values{"contact_uuid": {contactUUID}}

	var txs []*Transaction
	if err := c.do(ctx, http.MethodGet, "/api/v1/transactions", q, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
