package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
)

// SQLiteStore persists principals in the records database.
type SQLiteStore struct {
	db *sqlite.Store
}

func NewSQLiteStore(db *sqlite.Store) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const principalColumns = `id, name, secret_hash, role, enabled, created_at`

func (s *SQLiteStore) Create(ctx context.Context, p *models.Principal) error {
	return s.db.Write(ctx, func(ctx context.Context, q sqlite.Querier) error {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM principals WHERE id = ?`, p.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("principal %s: %w", p.ID, sentinel.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check principal: %w", err)
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO principals (`+principalColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.SecretHash, string(p.Role), p.Enabled, sqlite.FormatTime(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert principal: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	var p *models.Principal
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		row := q.QueryRowContext(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = ?`, id)
		var err error
		p, err = scanPrincipal(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.Principal, error) {
	var out []*models.Principal
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		rows, err := q.QueryContext(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY name, id`)
		if err != nil {
			return fmt.Errorf("list principals: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPrincipal(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLiteStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.db.Write(ctx, func(ctx context.Context, q sqlite.Querier) error {
		res, err := q.ExecContext(ctx, `UPDATE principals SET enabled = ? WHERE id = ?`, enabled, id)
		if err != nil {
			return fmt.Errorf("update principal: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.Read(ctx, func(ctx context.Context, q sqlite.Querier) error {
		return q.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals`).Scan(&n)
	})
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row scanner) (*models.Principal, error) {
	var (
		p         models.Principal
		role      string
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SecretHash, &role, &p.Enabled, &createdAt); err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	t, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	p.CreatedAt = t
	return &p, nil
}
