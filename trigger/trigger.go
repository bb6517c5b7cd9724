package trigger

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Trigger is a named schedule for digest passes.
type Trigger struct {
	// Name identifies the trigger ("order-export", "contact-sync").
	Name string

	// Schedule is a cron expression (5-field or @descriptor).
	Schedule string

	// StoreID restricts the trigger's passes to one store view.
	// Empty means all stores.
	StoreID string

	// CutoffWindow excludes jobs created within the window before the
	// pass, leaving very fresh jobs to a later pass so producers can
	// finish committing related work. Zero disables the cutoff.
	CutoffWindow time.Duration

	// Limit caps how many jobs one pass picks up. Zero means no cap.
	Limit int
}

// validate parses the schedule and checks required fields.
func (t Trigger) validate() (cronlib.Schedule, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("trigger: name is required")
	}
	sched, err := ParseSchedule(t.Schedule)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: parse schedule %q: %w", t.Name, t.Schedule, err)
	}
	return sched, nil
}
