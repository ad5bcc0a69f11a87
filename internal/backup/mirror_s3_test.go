package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/circuit"
)

type fakePutter struct {
	calls int
	err   error
	keys  []string
	body  []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func snapshotFile(t *testing.T) (string, SnapshotRef) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database_backup_2024-01-01T00-00-00-000Z.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("snapshot"), 0o600))
	return path, SnapshotRef{Name: filepath.Base(path), Size: 8, Checksum: "abc"}
}

func TestS3Mirror_Uploads(t *testing.T) {
	path, ref := snapshotFile(t)
	putter := &fakePutter{}
	m := NewS3Mirror(putter, "backups", "records/", nil, nil)

	require.NoError(t, m.Upload(context.Background(), path, ref))
	assert.Equal(t, []string{"records/" + ref.Name}, putter.keys)
	assert.Equal(t, "snapshot", string(putter.body))
}

func TestS3Mirror_BreakerStopsCallingDeadBucket(t *testing.T) {
	path, ref := snapshotFile(t)
	putter := &fakePutter{err: errors.New("connection refused")}
	m := NewS3Mirror(putter, "backups", "", circuit.New("s3", circuit.WithFailureThreshold(2)), nil)

	assert.Error(t, m.Upload(context.Background(), path, ref))
	assert.Error(t, m.Upload(context.Background(), path, ref))
	assert.ErrorIs(t, m.Upload(context.Background(), path, ref), ErrMirrorOpen)
	assert.Equal(t, 2, putter.calls)
}

type failingMirror struct{ calls int }

func (f *failingMirror) Upload(context.Context, string, SnapshotRef) error {
	f.calls++
	return errors.New("bucket unreachable")
}

func TestMirrorFailureDoesNotFailBackup(t *testing.T) {
	src := filepath.Join(t.TempDir(), "live.sqlite")
	require.NoError(t, os.WriteFile(src, []byte("live"), 0o600))
	mirror := &failingMirror{}
	m, err := New(pathStore{path: src}, t.TempDir(), WithMirror(mirror))
	require.NoError(t, err)

	_, err = m.CreateBackup(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, mirror.calls)
}
