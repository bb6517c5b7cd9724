package dedup

import "context"

// Index answers whether a content hash has been recorded for a subject.
// Subject is an opaque scope key, typically "{store_id}:{contact_uuid}".
type Index interface {
	// Seen reports whether the hash was recorded for the subject.
	Seen(ctx context.Context, subject, hash string) (bool, error)

	// Record marks the hash as applied for the subject.
	Record(ctx context.Context, subject, hash string) error

	// RecordAll marks a batch of hashes, used when seeding the index
	// from a remote ledger read.
	RecordAll(ctx context.Context, subject string, hashes []string) error
}
