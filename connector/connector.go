package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/alert"
	"github.com/the-line/loyaltysync/api"
	"github.com/the-line/loyaltysync/ratelimit"
)

// Connector hands out authenticated platform clients, one per store
// view. Clients are built lazily and cached; the cache is guarded by a
// mutex so concurrent passes share a single session per store.
type Connector struct {
	mu      sync.Mutex
	clients map[string]*api.Client

	creds          CredentialSource
	notifier       *alert.Notifier
	httpClient     *http.Client
	callsPerSecond int
	logger         *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithNotifier enables throttled auth-failure alerting.
func WithNotifier(n *alert.Notifier) Option {
	return func(c *Connector) { c.notifier = n }
}

// WithHTTPClient sets the underlying HTTP client for all sessions.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connector) { c.httpClient = hc }
}

// WithCallsPerSecond sets the per-session outbound call rate. Zero
// disables call spacing.
func WithCallsPerSecond(cps int) Option {
	return func(c *Connector) { c.callsPerSecond = cps }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) { c.logger = l }
}

// New creates a Connector resolving credentials through src.
func New(src CredentialSource, opts ...Option) *Connector {
	c := &Connector{
		clients: make(map[string]*api.Client),
		creds:   src,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connection returns the platform client for the given store, building
// and validating it on first use. An authentication failure raises a
// throttled alert and returns loyaltysync.ErrAuthenticationFailed.
func (c *Connector) Connection(ctx context.Context, storeID string) (*api.Client, error) {
	return c.connect(ctx, storeID, true)
}

// Test validates the store's credentials without raising alerts. The
// validated client is cached the same way Connection caches it.
func (c *Connector) Test(ctx context.Context, storeID string) error {
	_, err := c.connect(ctx, storeID, false)
	return err
}

// Invalidate drops the cached client for the store, forcing the next
// Connection call to re-authenticate.
func (c *Connector) Invalidate(storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, storeID)
}

func (c *Connector) connect(ctx context.Context, storeID string, alertOnAuthFailure bool) (*api.Client, error) {
	c.mu.Lock()
	if client, ok := c.clients[storeID]; ok {
		c.mu.Unlock()
		return client, nil
	}
	c.mu.Unlock()

	creds, err := c.creds.Credentials(ctx, storeID)
	if err != nil {
		return nil, err
	}

	clientOpts := []api.Option{api.WithLogger(c.logger)}
	if c.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(c.httpClient))
	}
	if c.callsPerSecond > 0 {
		clientOpts = append(clientOpts, api.WithLimiter(ratelimit.NewLimiter(c.callsPerSecond)))
	}
	client := api.NewClient(creds.BaseURL, creds.Token, clientOpts...)

	if err := client.Ping(ctx); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.AuthFailure() {
			c.logger.Error("platform rejected store credentials",
				"store_id", storeID,
				"status", apiErr.Status)
			if alertOnAuthFailure {
				c.alertAuthFailure(ctx, storeID, apiErr)
			}
			return nil, fmt.Errorf("connector: store %q: %w", storeID, loyaltysync.ErrAuthenticationFailed)
		}
		return nil, fmt.Errorf("connector: store %q: ping: %w", storeID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us here; keep the first one in.
	if existing, ok := c.clients[storeID]; ok {
		return existing, nil
	}
	c.clients[storeID] = client
	return client, nil
}

func (c *Connector) alertAuthFailure(ctx context.Context, storeID string, apiErr *api.Error) {
	if c.notifier == nil {
		return
	}
	subject := fmt.Sprintf("loyalty sync: authentication failed for store %s", storeID)
	body := fmt.Sprintf("The loyalty platform rejected the credentials for store %q (HTTP %d).\n\n%s\n\nSyncing for this store is paused until the credentials are fixed.",
		storeID, apiErr.Status, apiErr.Body)
	if _, err := c.notifier.Notify(ctx, "auth-failure/"+storeID, subject, body); err != nil {
		c.logger.Error("auth-failure alert delivery failed", "store_id", storeID, "error", err)
	}
}
