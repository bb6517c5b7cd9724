package handler

import "fmt"

// Skip signals that a request must not produce a remote effect, most
// commonly because the dedup index already recorded the request's content
// hash. The digest marks the request terminal (synced, with Reason as the
// recorded explanation) and stores Result, if any, as a pass-through for
// the next request in the chain.
type Skip struct {
	// Reason explains why the request was skipped.
	Reason string
	// Result is an optional pass-through value for downstream requests.
	Result any
}

// Error implements the error interface so handlers can return a Skip
// through their normal error path.
func (s *Skip) Error() string { return s.Reason }

// SkipDuplicate builds the Skip for a dedup hit on the given content
// hash, with an optional pass-through result.
func SkipDuplicate(hash string, passThrough any) *Skip {
	return &Skip{
		Reason: fmt.Sprintf("duplicate, skipped (hash %s)", hash),
		Result: passThrough,
	}
}
