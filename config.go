package loyaltysync

import "time"

// Config holds configuration for a Syncer.
type Config struct {
	// CallsPerSecond is the sustained outbound API call rate enforced
	// per store connection.
	CallsPerSecond int

	// BatchSize is the maximum number of open jobs a single digest pass
	// will pick up. Zero means no limit.
	BatchSize int

	// LeaseTTL is how long a worker's claim on a job remains valid.
	// Expired leases are reclaimable by other workers.
	LeaseTTL time.Duration

	// CutoffWindow bounds each pass to jobs created within the window.
	// Zero disables the cutoff.
	CutoffWindow time.Duration

	// AlertCooldown is the minimum interval between operator alerts of
	// the same failure class.
	AlertCooldown time.Duration

	// AlertRecipients receive operator alerts, in addition to
	// AlertContact.
	AlertRecipients []string

	// AlertContact is the general contact address copied on every alert.
	AlertContact string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CallsPerSecond:  5,
		BatchSize:       100,
		LeaseTTL:        5 * time.Minute,
		CutoffWindow:    0,
		AlertCooldown:   time.Hour,
		ShutdownTimeout: 30 * time.Second,
	}
}
