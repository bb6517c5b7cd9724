// Package digest is the queue runner. A Pass walks the open jobs, in
// creation order, honoring relation chains, and drives each job's
// requests through their handlers until every request is terminal.
//
// The digest is deliberately pessimistic: any non-terminal outcome on a
// request stops its job for the rest of the pass, so a job's requests
// always execute strictly in creation order. Jobs are leased before
// processing, so concurrent workers running overlapping passes never
// touch the same job.
package digest
