package audit

import (
	"context"
	"errors"
	"time"
)

// EventCategory routes events to a stream. Security events are additionally
// written to the security log and are never sampled or dropped first.
type EventCategory string

const (
	// CategoryGeneral covers routine business outcomes (logins, admin actions, backups).
	CategoryGeneral EventCategory = "general"

	// CategorySecurity covers events relevant to forensics and alerting:
	// authentication failures, authorization denials, restores, config failures.
	CategorySecurity EventCategory = "security"
)

// Kind is the event type recorded in the audit trail.
type Kind string

const (
	KindLogin          Kind = "login"
	KindLogout         Kind = "logout"
	KindAuthFailed     Kind = "auth_failed"
	KindAccessDenied   Kind = "access_denied"
	KindRateLimit      Kind = "rate_limit"
	KindCORSViolation  Kind = "cors_violation"
	KindAdminAction    Kind = "admin_action"
	KindLifecycle      Kind = "lifecycle_violation"
	KindBackup         Kind = "backup"
	KindRestore        Kind = "restore"
	KindConfig         Kind = "config"
	KindMaintenanceHit Kind = "maintenance_rejected"
)

// kindCategories maps each kind to its stream. Unknown kinds are general.
var kindCategories = map[Kind]EventCategory{
	KindAuthFailed:    CategorySecurity,
	KindAccessDenied:  CategorySecurity,
	KindRateLimit:     CategorySecurity,
	KindCORSViolation: CategorySecurity,
	KindRestore:       CategorySecurity,
	KindConfig:        CategorySecurity,
}

// Category returns the stream for this kind.
func (k Kind) Category() EventCategory {
	if cat, ok := kindCategories[k]; ok {
		return cat
	}
	return CategoryGeneral
}

// Outcome of the audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Severity levels for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one append-only audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Category  EventCategory     `json:"category"`
	Kind      Kind              `json:"kind"`
	Outcome   Outcome           `json:"outcome"`
	Severity  Severity          `json:"severity"`
	Actor     string            `json:"actor,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Normalize fills the derived fields a caller may leave empty.
func (e Event) Normalize(now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Category == "" {
		e.Category = e.Kind.Category()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	return e
}

// IsSecurity reports whether the event belongs in the security log. Critical
// events of any kind are treated as security relevant.
func (e Event) IsSecurity() bool {
	return e.Category == CategorySecurity || e.Severity == SeverityCritical
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	Category EventCategory
	Kind     Kind
	Actor    string
	Limit    int
}

// Matches reports whether e satisfies the filter (Limit is ignored).
func (f Filter) Matches(e Event) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	return true
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Querier reads persisted events, newest first.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// MultiStore appends to every store and joins their errors.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query reads from the first store that supports queries.
func (m MultiStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	for _, s := range m {
		if q, ok := s.(Querier); ok {
			return q.Query(ctx, filter)
		}
	}
	return nil, errors.New("no queryable audit store")
}
