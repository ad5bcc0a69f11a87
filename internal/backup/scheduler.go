package backup

import (
	"context"
	"time"
)

// ScheduleAutomatic runs CreateBackup followed by PruneRetention every
// interval until ctx is cancelled. The first run waits for grace so it does
// not compete with startup I/O. Failures are logged and the schedule goes on.
func (m *Manager) ScheduleAutomatic(ctx context.Context, interval, grace time.Duration) error {
	if interval <= 0 {
		return nil
	}
	m.logger.InfoContext(ctx, "automatic backups scheduled",
		"interval", interval.String(),
		"grace", grace.String(),
		"retention", m.retention,
	)

	wait := grace
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.clock.After(wait):
		}
		m.runScheduled(ctx)
		wait = interval
	}
}

func (m *Manager) runScheduled(ctx context.Context) {
	if _, err := m.CreateBackup(ctx, "scheduled"); err != nil {
		return
	}
	if _, err := m.PruneRetention(ctx, m.retention); err != nil {
		m.logger.WarnContext(ctx, "scheduled pruning incomplete", "error", err)
	}
}
