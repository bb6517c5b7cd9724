package bunstore

import (
	"context"
	"fmt"
	"time"
)

// ── Alert markers ─────────────────────────────────────────────────

func (s *Store) LastAlert(ctx context.Context, class string) (time.Time, error) {
	m := new(alertMarkerModel)
	err := s.idb(ctx).NewSelect().
		Model(m).
		Where("class = ?", class).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("loyaltysync/bun: get alert marker %q: %w", class, err)
	}
	return m.LastSentAt, nil
}

func (s *Store) SetLastAlert(ctx context.Context, class string, at time.Time) error {
	m := &alertMarkerModel{Class: class, LastSentAt: at.UTC()}
	_, err := s.idb(ctx).NewInsert().
		Model(m).
		On("CONFLICT (class) DO UPDATE").
		Set("last_sent_at = EXCLUDED.last_sent_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: set alert marker %q: %w", class, err)
	}
	return nil
}

// ── Trigger state ─────────────────────────────────────────────────

func (s *Store) LastRun(ctx context.Context, name string) (time.Time, error) {
	m := new(triggerStateModel)
	err := s.idb(ctx).NewSelect().
		Model(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("loyaltysync/bun: get trigger state %q: %w", name, err)
	}
	return m.LastRunAt, nil
}

func (s *Store) SetLastRun(ctx context.Context, name string, at time.Time) error {
	m := &triggerStateModel{Name: name, LastRunAt: at.UTC()}
	_, err := s.idb(ctx).NewInsert().
		Model(m).
		On("CONFLICT (name) DO UPDATE").
		Set("last_run_at = EXCLUDED.last_run_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loyaltysync/bun: set trigger state %q: %w", name, err)
	}
	return nil
}
