// Package trigger schedules digest passes. Each named trigger carries a
// cron expression, an optional store scope, and a cutoff window bounding
// which jobs the pass may pick up. Distinct triggers run concurrently
// when due at the same time; a single trigger never overlaps itself.
//
// Last-run times are persisted through a Store so schedules resume
// correctly across restarts.
package trigger
