package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
)

// SQLiteStore persists checkpoints and their frozen participant sets.
type SQLiteStore struct {
	db *sqlite.Store
}

func NewSQLiteStore(db *sqlite.Store) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const checkpointColumns = `id, location, scheduled_at, status, created_by, created_at, closed_at, closed_by`

// Create inserts the checkpoint and its participants in one transaction.
func (s *SQLiteStore) Create(ctx context.Context, c *models.Checkpoint) error {
	return s.db.Write(ctx, func(ctx context.Context, q sqlite.Querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO checkpoints (`+checkpointColumns+`) VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`,
			c.ID, c.Location, sqlite.FormatTime(c.ScheduledAt), string(c.Status), c.CreatedBy, sqlite.FormatTime(c.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert checkpoint: %w", err)
		}
		for _, pid := range c.Participants {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO checkpoint_participants (checkpoint_id, principal_id) VALUES (?, ?)`, c.ID, pid,
			); err != nil {
				return fmt.Errorf("insert participant %s: %w", pid, err)
			}
		}
		return nil
	})
}

// Close moves an active checkpoint to closed. The status predicate in the
// UPDATE makes the transition happen at most once; a second call returns
// sentinel.ErrInvalidState and leaves the original closure untouched.
func (s *SQLiteStore) Close(ctx context.Context, id, actor string, at time.Time) error {
	return s.db.Write(ctx, func(ctx context.Context, q sqlite.Querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE checkpoints SET status = ?, closed_at = ?, closed_by = ? WHERE id = ? AND status = ?`,
			string(models.StatusClosed), sqlite.FormatTime(at), actor, id, string(models.StatusActive),
		)
		if err != nil {
			return fmt.Errorf("close checkpoint: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		var status string
		err = q.QueryRowContext(ctx, `SELECT status FROM checkpoints WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check checkpoint: %w", err)
		}
		return sentinel.ErrInvalidState
	})
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*models.Checkpoint, error) {
	var c *models.Checkpoint
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		row := q.QueryRowContext(ctx, `SELECT `+checkpointColumns+` FROM checkpoints WHERE id = ?`, id)
		var err error
		if c, err = scanCheckpoint(row); err != nil {
			return err
		}
		c.Participants, err = participants(ctx, q, id)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every checkpoint, most recently scheduled first.
func (s *SQLiteStore) List(ctx context.Context) ([]*models.Checkpoint, error) {
	return s.list(ctx, `SELECT `+checkpointColumns+` FROM checkpoints ORDER BY scheduled_at DESC, id`)
}

// ListActiveForParticipant returns the active checkpoints principalID may
// record against.
func (s *SQLiteStore) ListActiveForParticipant(ctx context.Context, principalID string) ([]*models.Checkpoint, error) {
	return s.list(ctx, `SELECT c.id, c.location, c.scheduled_at, c.status, c.created_by, c.created_at, c.closed_at, c.closed_by
		FROM checkpoints c
		JOIN checkpoint_participants p ON p.checkpoint_id = c.id
		WHERE p.principal_id = ? AND c.status = ?
		ORDER BY c.scheduled_at DESC, c.id`, principalID, string(models.StatusActive))
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*models.Checkpoint, error) {
	var out []*models.Checkpoint
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list checkpoints: %w", err)
		}
		for rows.Next() {
			c, err := scanCheckpoint(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, c)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, c := range out {
			if c.Participants, err = participants(ctx, q, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func participants(ctx context.Context, q sqlite.Querier, checkpointID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT principal_id FROM checkpoint_participants WHERE checkpoint_id = ? ORDER BY principal_id`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*models.Checkpoint, error) {
	var (
		c                      models.Checkpoint
		status                 string
		scheduledAt, createdAt string
		closedAt, closedBy     sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Location, &scheduledAt, &status, &c.CreatedBy, &createdAt, &closedAt, &closedBy); err != nil {
		return nil, err
	}
	c.Status = models.Status(status)
	var err error
	if c.ScheduledAt, err = sqlite.ParseTime(scheduledAt); err != nil {
		return nil, fmt.Errorf("parse scheduled_at: %w", err)
	}
	if c.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if closedAt.Valid {
		t, err := sqlite.ParseTime(closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse closed_at: %w", err)
		}
		c.ClosedAt = &t
	}
	c.ClosedBy = closedBy.String
	return &c, nil
}
