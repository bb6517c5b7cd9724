package export

import (
	"context"
	"errors"

	"github.com/the-line/loyaltysync/api"
	"github.com/the-line/loyaltysync/connector"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/job"
)

// ContactUpsert creates or updates the loyalty contact for an email
// address. Its result carries the contact UUID, which downstream
// requests in the same job read through PreviousResult.
type ContactUpsert struct {
	conn *connector.Connector
}

func (h *ContactUpsert) Validate(ctx context.Context, j *job.Job, r *job.Request) (bool, error) {
	email, _ := r.Payload["email"].(string)
	if email == "" {
		return false, errors.New("export: contact payload has no email")
	}
	return true, nil
}

func (h *ContactUpsert) Execute(ctx context.Context, ex *handler.Exec) (any, error) {
	client, err := h.conn.Connection(ctx, ex.Job.StoreID)
	if err != nil {
		return nil, err
	}

	in := api.ContactInput{
		Email:      ex.Data.String("email"),
		Attributes: attributes(ex.Data),
	}

	existing, err := client.FindContactByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return client.UpdateContact(ctx, existing.UUID, in)
	}
	return client.CreateContact(ctx, in)
}
