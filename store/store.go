// Package store defines the aggregate persistence interface. Each
// subsystem (job, parked, alert, trigger) defines its own store
// interface; the composite Store composes them all. Backends: Bun
// (Postgres) and Memory.
package store

import (
	"context"

	"github.com/the-line/loyaltysync/alert"
	"github.com/the-line/loyaltysync/job"
	"github.com/the-line/loyaltysync/parked"
	"github.com/the-line/loyaltysync/trigger"
)

// Store is the aggregate persistence interface. Each subsystem store is
// a composable interface; a single backend implements all of them.
type Store interface {
	job.Store
	parked.Store
	alert.MarkerStore
	trigger.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
