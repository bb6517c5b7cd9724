package api

import (
	"context"
	"net/http"
)

// GiftCard is a loyalty platform gift card record.
type GiftCard struct {
	UUID   string  `json:"uuid"`
	Hash   string  `json:"hash"`
	Amount float64 `json:"amount"`
}

// GiftCardInput is the payload for gift card creation.
type GiftCardInput struct {
	Amount     float64           `json:"amount"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CreateGiftCard creates a gift card and returns the generated card,
// including the hash the customer redeems it with.
func (c *Client) CreateGiftCard(ctx context.Context, in GiftCardInput) (*GiftCard, error) {
	var card GiftCard
	if err := c.do(ctx, http.MethodPost, "/api/v1/giftcards", nil, in, &card); err != nil {
		return nil, err
	}
	return &card, nil
}
