package api

import (
	"context"
	"net/http"
	"net/url"
)

// Contact is a loyalty platform contact record.
type Contact struct {
	UUID       string            `json:"uuid"`
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ContactInput is the payload for contact create and update calls.
type ContactInput struct {
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FindContactByEmail looks up a contact by email. Returns (nil, nil)
// when no contact matches.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	q := url.Values{"email": {email}}

	var contacts []*Contact
	if err := c.do(ctx, http.MethodGet, "/api/v1/contacts", q, nil, &contacts); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return contacts[0], nil
}

// CreateContact creates a contact.
func (c *Client) CreateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	var contact Contact
	if err := c.do(ctx, http.MethodPost, "/api/v1/contacts", nil, in, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact updates the contact identified by uuid.
func (c *Client) UpdateContact(ctx context.Context, uuid string, in ContactInput) (*Contact, error) {
	var contact Contact
	if err := c.do(ctx, http.MethodPut, "/api/v1/contacts/"+uuid, nil, in, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}
