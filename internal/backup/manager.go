// Package backup snapshots, prunes, and restores the records database.
//
// Every snapshot and restore runs inside the store's exclusive maintenance
// section, so a copy never observes a half-applied write and two snapshot
// operations never interleave. Each operation is bounded by a timeout; when
// it fires the copy is abandoned and the store is reopened.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

var (
	ErrBackupIO         = dErrors.New(dErrors.CodeInternal, "backup I/O failure")
	ErrSnapshotNotFound = dErrors.New(dErrors.CodeNotFound, "snapshot not found")
	ErrInvalidName      = dErrors.New(dErrors.CodeValidation, "invalid snapshot name")
	ErrCorruptSnapshot  = dErrors.New(dErrors.CodeValidation, "snapshot is not an intact database file")
)

const (
	DefaultRetention = 10
	DefaultTimeout   = 2 * time.Minute
)

// Store is the records database as seen by the backup manager.
type Store interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context, path string) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Mirror copies finished snapshots off the host.
type Mirror interface {
	Upload(ctx context.Context, path string, ref SnapshotRef) error
}

type Metrics interface {
	ObserveBackup(operation, outcome string, seconds float64)
	SetSnapshots(n int)
}

type Manager struct {
	store     Store
	dir       string
	retention int
	timeout   time.Duration
	clock     clock.Clock
	auditor   AuditPublisher
	mirror    Mirror
	metrics   Metrics
	logger    *slog.Logger
}

type Option func(*Manager)

func WithRetention(keep int) Option {
	return func(m *Manager) {
		if keep > 0 {
			m.retention = keep
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Manager) {
		m.auditor = p
	}
}

func WithMirror(mirror Mirror) Option {
	return func(m *Manager) {
		m.mirror = mirror
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(store Store, dir string, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("backup store is required")
	}
	if dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	m := &Manager{
		store:     store,
		dir:       dir,
		retention: DefaultRetention,
		timeout:   DefaultTimeout,
		clock:     clock.Real(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Retention returns the configured number of snapshots to keep.
func (m *Manager) Retention() int { return m.retention }

// CreateBackup copies the live database to a new timestamped snapshot. The
// offsite mirror, when configured, runs after the maintenance section ends
// and its failure does not fail the backup.
func (m *Manager) CreateBackup(ctx context.Context, reason string) (SnapshotRef, error) {
	start := m.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var ref SnapshotRef
	err := m.store.Exclusive(ctx, func(ctx context.Context, livePath string) error {
		var err error
		ref, err = m.snapshot(ctx, livePath, reason)
		return err
	})
	m.observe("create", err, start)
	if err != nil {
		m.logger.ErrorContext(ctx, "backup failed", "reason", reason, "error", err)
		m.emit(ctx, audit.Event{
			Kind:     audit.KindBackup,
			Outcome:  audit.OutcomeFailure,
			Severity: audit.SeverityWarning,
			Reason:   reason,
			Metadata: map[string]string{"error": err.Error()},
		})
		return SnapshotRef{}, asBackupErr(err)
	}

	m.logger.InfoContext(ctx, "backup created", "snapshot", ref.Name, "size", ref.Size, "reason", reason)
	m.emit(ctx, audit.Event{
		Kind:     audit.KindBackup,
		Resource: ref.Name,
		Reason:   reason,
		Metadata: map[string]string{"blake3": ref.Checksum},
	})
	m.upload(ctx, ref)
	return ref, nil
}

// snapshot copies livePath into the backup directory. It must run inside the
// maintenance section.
func (m *Manager) snapshot(ctx context.Context, livePath, reason string) (SnapshotRef, error) {
	if _, err := os.Stat(livePath); err != nil {
		return SnapshotRef{}, fmt.Errorf("source database: %w", err)
	}
	now := m.clock.Now().UTC()
	name := m.freeName(now)
	dst := filepath.Join(m.dir, name)

	size, sum, err := copyFile(ctx, livePath, dst, now)
	if err != nil {
		return SnapshotRef{}, fmt.Errorf("copy database: %w", err)
	}
	sc := sidecar{Name: name, Size: size, CreatedAt: now, Blake3: sum, Reason: reason}
	if err := writeSidecar(sidecarPath(dst), sc, now); err != nil {
		m.logger.WarnContext(ctx, "writing snapshot checksum failed", "snapshot", name, "error", err)
	}
	return SnapshotRef{Name: name, Size: size, CreatedAt: now, Checksum: sum}, nil
}

// freeName returns the snapshot name for t, stepping forward a millisecond
// at a time if a file with that name already exists.
func (m *Manager) freeName(t time.Time) string {
	for {
		name := snapshotName(t)
		if _, err := os.Stat(filepath.Join(m.dir, name)); errors.Is(err, fs.ErrNotExist) {
			return name
		}
		t = t.Add(time.Millisecond)
	}
}

// ListBackups returns the snapshots on disk, newest first. Every listing is
// recorded in the audit log as an administrative action.
func (m *Manager) ListBackups(ctx context.Context) ([]SnapshotRef, error) {
	refs, err := m.list()
	if err != nil {
		return nil, err
	}
	m.emit(ctx, audit.Event{
		Kind:     audit.KindAdminAction,
		Resource: "backups",
		Reason:   "backups_listed",
		Metadata: map[string]string{"count": strconv.Itoa(len(refs))},
	})
	return refs, nil
}

func (m *Manager) list() ([]SnapshotRef, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read backup directory")
	}
	refs := make([]SnapshotRef, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isSnapshotName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		ref := SnapshotRef{Name: e.Name(), Size: info.Size(), CreatedAt: info.ModTime().UTC()}
		if sc, err := readSidecar(sidecarPath(filepath.Join(m.dir, e.Name()))); err == nil {
			ref.Checksum = sc.Blake3
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].Name > refs[j].Name
	})
	if m.metrics != nil {
		m.metrics.SetSnapshots(len(refs))
	}
	return refs, nil
}

// PruneRetention deletes all but the keep most recent snapshots. A failed
// deletion is logged and pruning continues; the failures are returned joined.
func (m *Manager) PruneRetention(ctx context.Context, keep int) ([]string, error) {
	return m.prune(ctx, keep)
}

// prune keeps at most keep snapshots. Pinned names present on disk are kept
// first, in the order given, and the remaining slots go to the newest of the
// rest.
func (m *Manager) prune(ctx context.Context, keep int, pinned ...string) ([]string, error) {
	if keep < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "retention must keep at least one snapshot")
	}
	refs, err := m.list()
	if err != nil {
		return nil, err
	}
	if len(refs) <= keep {
		return nil, nil
	}

	kept := make(map[string]bool, keep)
	for _, name := range pinned {
		if len(kept) < keep && slices.ContainsFunc(refs, func(r SnapshotRef) bool { return r.Name == name }) {
			kept[name] = true
		}
	}
	for _, ref := range refs {
		if len(kept) >= keep {
			break
		}
		kept[ref.Name] = true
	}

	var (
		removed []string
		errs    []error
	)
	for _, ref := range refs {
		if kept[ref.Name] {
			continue
		}
		path := filepath.Join(m.dir, ref.Name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.WarnContext(ctx, "pruning snapshot failed", "snapshot", ref.Name, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", ref.Name, err))
			continue
		}
		if err := os.Remove(sidecarPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.WarnContext(ctx, "pruning snapshot checksum failed", "snapshot", ref.Name, "error", err)
		}
		removed = append(removed, ref.Name)
	}
	if len(removed) > 0 {
		m.logger.InfoContext(ctx, "snapshots pruned", "removed", len(removed), "kept", keep)
	}
	if m.metrics != nil {
		m.metrics.SetSnapshots(len(refs) - len(removed))
	}
	return removed, errors.Join(errs...)
}

// RestoreBackup replaces the live database with the named snapshot. A safety
// snapshot of the current state is always taken first, inside the same
// maintenance section, so the restore itself can be undone. If the store
// cannot open the restored file, the safety snapshot is copied back before
// the error is returned. On success the directory is pruned to the retention
// bound, keeping the safety snapshot and the restored one.
func (m *Manager) RestoreBackup(ctx context.Context, name string) (SnapshotRef, error) {
	if !isSnapshotName(name) {
		return SnapshotRef{}, ErrInvalidName
	}
	src := filepath.Join(m.dir, name)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SnapshotRef{}, ErrSnapshotNotFound
		}
		return SnapshotRef{}, asBackupErr(err)
	}

	start := m.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.verify(ctx, src); err != nil {
		m.observe("restore", err, start)
		m.emitRestore(ctx, name, "", err)
		return SnapshotRef{}, err
	}

	var (
		safety      SnapshotRef
		overwritten bool
	)
	err := m.store.Exclusive(ctx, func(ctx context.Context, livePath string) error {
		var err error
		if safety, err = m.snapshot(ctx, livePath, "pre-restore"); err != nil {
			return fmt.Errorf("safety snapshot: %w", err)
		}
		overwritten = true
		return replaceLive(ctx, src, livePath)
	})
	if err != nil && overwritten {
		err = errors.Join(err, m.rollback(ctx, safety))
	}
	m.observe("restore", err, start)
	m.emitRestore(ctx, name, safety.Name, err)
	if err != nil {
		m.logger.ErrorContext(ctx, "restore failed", "snapshot", name, "safety_snapshot", safety.Name, "error", err)
		return safety, asBackupErr(err)
	}
	m.logger.WarnContext(ctx, "database restored", "snapshot", name, "safety_snapshot", safety.Name,
		"actor", requestcontext.PrincipalID(ctx))
	if _, err := m.prune(ctx, m.retention, safety.Name, name); err != nil {
		m.logger.WarnContext(ctx, "pruning after restore incomplete", "error", err)
	}
	return safety, nil
}

// rollback puts the safety snapshot back in place of a restored file the
// store could not use. It runs without the caller's deadline.
func (m *Manager) rollback(ctx context.Context, safety SnapshotRef) error {
	ctx = context.WithoutCancel(ctx)
	err := m.store.Exclusive(ctx, func(ctx context.Context, livePath string) error {
		return replaceLive(ctx, filepath.Join(m.dir, safety.Name), livePath)
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "rolling back failed restore", "safety_snapshot", safety.Name, "error", err)
		return fmt.Errorf("roll back to %s: %w", safety.Name, err)
	}
	m.logger.WarnContext(ctx, "failed restore rolled back", "safety_snapshot", safety.Name)
	return nil
}

// replaceLive overwrites livePath with src and drops the journal files that
// belonged to the old contents.
func replaceLive(ctx context.Context, src, livePath string) error {
	if _, _, err := copyFile(ctx, src, livePath, time.Time{}); err != nil {
		return fmt.Errorf("overwrite database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(livePath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", suffix, err)
		}
	}
	return nil
}

// verify refuses files that do not start with the SQLite header, then checks
// the snapshot against its sidecar when one exists.
func (m *Manager) verify(ctx context.Context, path string) error {
	ok, err := hasSQLiteHeader(path)
	if err != nil {
		return asBackupErr(err)
	}
	if !ok {
		return ErrCorruptSnapshot
	}
	sc, err := readSidecar(sidecarPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.WarnContext(ctx, "snapshot has no checksum, restoring unverified", "snapshot", filepath.Base(path))
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "snapshot checksum is unreadable")
	}
	size, sum, err := fileDigest(ctx, path)
	if err != nil {
		return asBackupErr(err)
	}
	if size != sc.Size || sum != sc.Blake3 {
		return ErrCorruptSnapshot
	}
	return nil
}

func (m *Manager) upload(ctx context.Context, ref SnapshotRef) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.mirror.Upload(ctx, filepath.Join(m.dir, ref.Name), ref); err != nil {
		m.logger.WarnContext(ctx, "offsite mirror failed", "snapshot", ref.Name, "error", err)
	}
}

func (m *Manager) emitRestore(ctx context.Context, target, safety string, err error) {
	e := audit.Event{
		Kind:     audit.KindRestore,
		Actor:    requestcontext.PrincipalID(ctx),
		Resource: target,
		Severity: audit.SeverityCritical,
		Metadata: map[string]string{"safety_snapshot": safety},
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailure
		e.Metadata["error"] = err.Error()
	}
	m.emit(ctx, e)
}

func (m *Manager) emit(ctx context.Context, e audit.Event) {
	if m.auditor == nil {
		return
	}
	if e.Actor == "" {
		e.Actor = requestcontext.PrincipalID(ctx)
	}
	if e.Actor == "" {
		e.Actor = "system"
	}
	if err := m.auditor.Emit(context.WithoutCancel(ctx), e); err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "kind", e.Kind, "error", err)
	}
}

func (m *Manager) observe(op string, err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.metrics.ObserveBackup(op, outcome, m.clock.Now().Sub(start).Seconds())
}

// asBackupErr keeps coded errors and maps the rest to ErrBackupIO. Timeouts
// become unavailable so callers can retry.
func asBackupErr(err error) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "backup timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, ErrBackupIO.Error())
}
