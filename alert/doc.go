// Package alert delivers operator notifications for failures that need a
// human, such as revoked platform credentials. Alerts are throttled per
// failure class: within the cooldown window repeated failures of the same
// class are logged but not re-sent. The last-sent marker is persisted so
// the throttle survives restarts.
package alert
