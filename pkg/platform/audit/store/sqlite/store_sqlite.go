// Package sqlite persists audit events in their own database file, apart from
// the records store, so restoring a records snapshot never rewinds the trail.
package sqlite

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	platformsqlite "github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultLimit = 100

type Store struct {
	db *platformsqlite.Store
}

// Open opens or creates the audit database at path.
func Open(ctx context.Context, path string, opts ...platformsqlite.Option) (*Store, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	db, err := platformsqlite.Open(ctx, path, append(opts, platformsqlite.WithMigrations(sub))...)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, e audit.Event) error {
	var md any
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		md = string(raw)
	}
	return s.db.Write(ctx, func(ctx context.Context, q platformsqlite.Querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO audit_events (timestamp, category, kind, outcome, severity, actor, resource, reason, ip, request_id, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			platformsqlite.FormatTime(e.Timestamp), string(e.Category), string(e.Kind), string(e.Outcome),
			string(e.Severity), e.Actor, e.Resource, e.Reason, e.IP, e.RequestID, md,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return nil
	})
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where, args = append(where, "category = ?"), append(args, string(f.Category))
	}
	if f.Kind != "" {
		where, args = append(where, "kind = ?"), append(args, string(f.Kind))
	}
	if f.Actor != "" {
		where, args = append(where, "actor = ?"), append(args, f.Actor)
	}
	query := `SELECT timestamp, category, kind, outcome, severity, actor, resource, reason, ip, request_id, metadata FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	var out []audit.Event
	err := s.db.Read(ctx, func(ctx context.Context, q platformsqlite.Querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query audit events: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				e                                  audit.Event
				ts, category, kind, outcome, sev   string
				actor, resource, reason, ip, reqID *string
				md                                 *string
			)
			if err := rows.Scan(&ts, &category, &kind, &outcome, &sev, &actor, &resource, &reason, &ip, &reqID, &md); err != nil {
				return err
			}
			if e.Timestamp, err = platformsqlite.ParseTime(ts); err != nil {
				return fmt.Errorf("parse timestamp: %w", err)
			}
			e.Category, e.Kind = audit.EventCategory(category), audit.Kind(kind)
			e.Outcome, e.Severity = audit.Outcome(outcome), audit.Severity(sev)
			e.Actor, e.Resource, e.Reason, e.IP, e.RequestID = deref(actor), deref(resource), deref(reason), deref(ip), deref(reqID)
			if md != nil {
				if err := json.Unmarshal([]byte(*md), &e.Metadata); err != nil {
					return fmt.Errorf("decode metadata: %w", err)
				}
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
