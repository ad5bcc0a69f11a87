package backup

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

const (
	namePrefix    = "database_backup_"
	nameExt       = ".sqlite"
	sidecarExt    = ".json"
	copyChunkSize = 1 << 20
)

// SnapshotRef identifies one snapshot file in the backup directory.
type SnapshotRef struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum,omitempty"`
}

// sidecar is written next to every snapshot as <name>.json.
type sidecar struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Blake3    string    `json:"blake3"`
	Reason    string    `json:"reason,omitempty"`
}

// snapshotName encodes t so that lexical order equals chronological order.
func snapshotName(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return namePrefix + stamp + nameExt
}

func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, namePrefix) &&
		strings.HasSuffix(name, nameExt) &&
		filepath.Base(name) == name
}

func sidecarPath(snapshotPath string) string {
	return strings.TrimSuffix(snapshotPath, nameExt) + sidecarExt
}

// ctxReader aborts a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// copyFile writes src to dst through a temporary file in dst's directory and
// renames it into place, so dst is either absent or complete. It returns the
// size and blake3 digest of the copied bytes.
func copyFile(ctx context.Context, src, dst string, modTime time.Time) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return 0, "", err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	h := blake3.New()
	n, err := io.CopyBuffer(io.MultiWriter(tmp, h), ctxReader{ctx: ctx, r: in}, make([]byte, copyChunkSize))
	if err != nil {
		cleanup()
		return 0, "", err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, "", err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return 0, "", err
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func writeSidecar(path string, sc sidecar, modTime time.Time) error {
	raw, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return err
	}
	_ = os.Chtimes(path, modTime, modTime)
	return nil
}

func readSidecar(path string) (*sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	return &sc, nil
}

// fileDigest hashes the file at path.
func fileDigest(ctx context.Context, path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := blake3.New()
	n, err := io.CopyBuffer(h, ctxReader{ctx: ctx, r: f}, make([]byte, copyChunkSize))
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// sqliteHeader opens every SQLite database file.
const sqliteHeader = "SQLite format 3\x00"

// hasSQLiteHeader reports whether the file at path starts with sqliteHeader.
func hasSQLiteHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(buf) == sqliteHeader, nil
}
