package export

import (
	"github.com/the-line/loyaltysync/connector"
	"github.com/the-line/loyaltysync/dedup"
	"github.com/the-line/loyaltysync/handler"
)

// Request type codes handled by this package.
const (
	TypeContactUpsert     = "contact-upsert"
	TypeTransactionCreate = "transaction-create"
	TypeGiftCardCreate    = "giftcard-create"
)

// RegisterAll registers every built-in handler on the pool. The index
// may be nil, in which case transaction dedup falls back to a remote
// ledger read on every execution.
func RegisterAll(pool *handler.Pool, conn *connector.Connector, index dedup.Index) error {
	if err := pool.Register(TypeContactUpsert, func() handler.Handler {
		return &ContactUpsert{conn: conn}
	}); err != nil {
		return err
	}
	if err := pool.Register(TypeTransactionCreate, func() handler.Handler {
		return &TransactionCreate{conn: conn, index: index}
	}); err != nil {
		return err
	}
	return pool.Register(TypeGiftCardCreate, func() handler.Handler {
		return &GiftCardCreate{conn: conn}
	})
}

// attributes extracts the optional "attributes" payload key as a string
// map. Non-string values are dropped.
func attributes(bag handler.Bag) map[string]string {
	raw, ok := bag.Get("attributes").(map[string]any)
	if !ok {
		return nil
	}
	attrs := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, sok := v.(string); sok {
			attrs[k] = s
		}
	}
	return attrs
}
