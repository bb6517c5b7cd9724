package export

import (
	"context"
	"errors"

	"github.com/the-line/loyaltysync/api"
	"github.com/the-line/loyaltysync/connector"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/job"
)

// GiftCardCreate issues a gift card on the loyalty platform. The result
// includes the redemption hash, which the producer delivers to the
// customer.
type GiftCardCreate struct {
	conn *connector.Connector
}

func (h *GiftCardCreate) Validate(ctx context.Context, j *job.Job, r *job.Request) (bool, error) {
	amount, ok := r.Payload["amount"].(float64)
	if !ok || amount <= 0 {
		return false, errors.New("export: gift card payload has no positive amount")
	}
	return true, nil
}

func (h *GiftCardCreate) Execute(ctx context.Context, ex *handler.Exec) (any, error) {
	client, err := h.conn.Connection(ctx, ex.Job.StoreID)
	if err != nil {
		return nil, err
	}
	return client.CreateGiftCard(ctx, api.GiftCardInput{
		Amount:     ex.Data.Float("amount"),
		Attributes: attributes(ex.Data),
	})
}
