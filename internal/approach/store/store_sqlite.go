package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/models"
	checkpointmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
)

// SQLiteStore persists approach records. Article codes are stored as a JSON
// array in a single column.
type SQLiteStore struct {
	db *sqlite.Store
}

func NewSQLiteStore(db *sqlite.Store) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const approachColumns = `id, checkpoint_id, recorded_by, plate, cpf, cnh, breathalyzer, vehicle_removed, citation, articles, observations, created_at`

// Create inserts a only while its checkpoint is active and a.RecordedBy is
// one of its participants. Both conditions are evaluated by the INSERT itself,
// so a close that commits after the caller's own checks still rejects the
// record. A rejection returns sentinel.ErrInvalidState for a closed
// checkpoint, sentinel.ErrNotMember for an outsider and sentinel.ErrNotFound
// for an unknown checkpoint.
func (s *SQLiteStore) Create(ctx context.Context, a *models.Approach) error {
	articles, err := json.Marshal(a.Articles)
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	return s.db.Write(ctx, func(ctx context.Context, q sqlite.Querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO approaches (`+approachColumns+`)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE EXISTS (SELECT 1 FROM checkpoints WHERE id = ? AND status = ?)
			  AND EXISTS (SELECT 1 FROM checkpoint_participants WHERE checkpoint_id = ? AND principal_id = ?)`,
			a.ID, a.CheckpointID, a.RecordedBy, a.Plate, nullable(a.CPF), nullable(a.CNH),
			a.Breathalyzer, a.VehicleRemoved, a.Citation, string(articles), nullable(a.Observations),
			sqlite.FormatTime(a.CreatedAt),
			a.CheckpointID, string(checkpointmodels.StatusActive),
			a.CheckpointID, a.RecordedBy,
		)
		if err != nil {
			return fmt.Errorf("insert approach: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert approach: %w", err)
		}
		if n == 1 {
			return nil
		}
		return rejection(ctx, q, a)
	})
}

// rejection explains why the guarded INSERT matched no row.
func rejection(ctx context.Context, q sqlite.Querier, a *models.Approach) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM checkpoints WHERE id = ?`, a.CheckpointID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load checkpoint status: %w", err)
	}
	if checkpointmodels.Status(status) != checkpointmodels.StatusActive {
		return sentinel.ErrInvalidState
	}
	return sentinel.ErrNotMember
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*models.Approach, error) {
	var a *models.Approach
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		var err error
		a, err = scanApproach(q.QueryRowContext(ctx, `SELECT `+approachColumns+` FROM approaches WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByCheckpoint returns the approaches of a checkpoint, newest first.
func (s *SQLiteStore) ListByCheckpoint(ctx context.Context, checkpointID string) ([]*models.Approach, error) {
	return s.list(ctx, `SELECT `+approachColumns+` FROM approaches WHERE checkpoint_id = ? ORDER BY created_at DESC, id`, checkpointID)
}

// ListByRecorder returns the approaches recorded by principalID, newest first.
func (s *SQLiteStore) ListByRecorder(ctx context.Context, principalID string) ([]*models.Approach, error) {
	return s.list(ctx, `SELECT `+approachColumns+` FROM approaches WHERE recorded_by = ? ORDER BY created_at DESC, id`, principalID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]*models.Approach, error) {
	var out []*models.Approach
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list approaches: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanApproach(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApproach(row scanner) (*models.Approach, error) {
	var (
		a                   models.Approach
		cpf, cnh, obs       sql.NullString
		articles, createdAt string
	)
	err := row.Scan(&a.ID, &a.CheckpointID, &a.RecordedBy, &a.Plate, &cpf, &cnh,
		&a.Breathalyzer, &a.VehicleRemoved, &a.Citation, &articles, &obs, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CPF, a.CNH, a.Observations = cpf.String, cnh.String, obs.String
	if err := json.Unmarshal([]byte(articles), &a.Articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	if a.CreatedAt, err = sqlite.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
