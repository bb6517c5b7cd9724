package connector

import (
	"context"
	"fmt"

	"github.com/the-line/loyaltysync"
)

// Credentials carry everything needed to open a platform session for one
// store view.
type Credentials struct {
	BaseURL string
	Token   string
}

// CredentialSource resolves platform credentials per store id. Returns
// loyaltysync.ErrNoCredentials when the store has none configured.
type CredentialSource interface {
	Credentials(ctx context.Context, storeID string) (Credentials, error)
}

// StaticCredentials is a CredentialSource backed by a fixed map, keyed by
// store id. Useful for configuration-file setups and tests.
type StaticCredentials map[string]Credentials

func (s StaticCredentials) Credentials(_ context.Context, storeID string) (Credentials, error) {
	c, ok := s[storeID]
	if !ok {
		return Credentials{}, fmt.Errorf("connector: store %q: %w", storeID, loyaltysync.ErrNoCredentials)
	}
	return c, nil
}
