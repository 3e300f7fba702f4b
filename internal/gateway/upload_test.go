package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestUpload_LocalDiskScenario(t *testing.T) {
	ctx := context.Background()
	g, err := New(ctx, "local", object.BackendConfig{object.KeyRoot: t.TempDir()})
	require.NoError(t, err)

	file := object.NewUploadFileFromBytes("docs/readme.txt", []byte("hello"), "text/plain")
	key, err := g.Upload(ctx, file, nil)
	require.NoError(t, err)
	assert.Equal(t, "docs/readme.txt", key)
	assert.Equal(t, 1, file.ReleaseCount())

	metas, err := g.GetMetas(ctx, []string{"docs/readme.txt"}, nil)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, int64(5), metas[0].Size)
}

func TestUpload_UnreadableSource(t *testing.T) {
	g, err := New(context.Background(), "local", object.BackendConfig{object.KeyRoot: t.TempDir()})
	require.NoError(t, err)

	file := object.NewUploadFile(filepath.Join(t.TempDir(), "missing.txt"), "docs/")
	_, err = g.Upload(context.Background(), file, nil)
	assert.True(t, errors.Is(err, object.ErrSourceUnreadable))
	assert.Equal(t, 1, file.ReleaseCount())
}

func TestUploadByCredential_ReleasesOnDriverError(t *testing.T) {
	cause := errors.New("upload rejected")
	f := &fakeDriver{uploadErr: cause}
	g := newFakeGateway(t, f, nil)

	file := object.NewUploadFile(writeSource(t, "hello"), "uploads/")
	err := g.UploadByCredential(context.Background(), file, object.NewCredentialPolicy("uploads/").WithScoped(true), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 1, file.ReleaseCount())
	assert.Equal(t, 1, f.uploads)

	require.Len(t, f.policies, 1)
	assert.False(t, f.policies[0].Scoped)
	assert.Equal(t, "text/plain; charset=utf-8", f.policies[0].ContentType)
}

func TestUploadByCredential_ReleasesOnCredentialError(t *testing.T) {
	f := &fakeDriver{credErr: errors.New("denied")}
	g := newFakeGateway(t, f, nil)

	file := object.NewUploadFile(writeSource(t, "hello"), "uploads/")
	err := g.UploadByCredential(context.Background(), file, object.NewCredentialPolicy("uploads/"), nil)
	assert.True(t, errors.Is(err, object.ErrCredentialIssuanceFailed))
	assert.Equal(t, 1, file.ReleaseCount())
	assert.Equal(t, 0, f.uploads)
}

func TestUploadByCredential_UnreadableBeforeNetwork(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)

	file := object.NewUploadFile(filepath.Join(t.TempDir(), "missing"), "uploads/")
	err := g.UploadByCredential(context.Background(), file, object.NewCredentialPolicy("uploads/"), nil)
	assert.True(t, errors.Is(err, object.ErrSourceUnreadable))
	assert.Equal(t, 0, f.credCalls)
	assert.Equal(t, 1, file.ReleaseCount())
}

func TestUploadByChunksAndAppend_ForceScoped(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)
	src := writeSource(t, "hello")

	chunk := object.NewChunkUploadFile(src, "uploads/big.bin", object.ChunkConfig{})
	require.NoError(t, g.UploadByChunks(ctx, chunk, object.NewCredentialPolicy("uploads/"), nil))
	assert.Equal(t, 1, chunk.ReleaseCount())

	app := object.NewAppendUploadFile(src, "uploads/app.log", 10)
	next, err := g.AppendUploadByCredential(ctx, app, object.NewCredentialPolicy("uploads/"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(11), next)
	assert.Equal(t, 1, app.ReleaseCount())

	// 分片与追加共用同一范围凭证
	assert.Equal(t, 1, f.credCalls)
	assert.True(t, f.policies[0].Scoped)

	f.uploadErr = errors.New("position mismatch")
	stale := object.NewAppendUploadFile(src, "uploads/app.log", 3)
	_, err = g.AppendUploadByCredential(ctx, stale, object.NewCredentialPolicy("uploads/"), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, stale.ReleaseCount())
}

func TestUploadByCredential_LocalDisk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	g, err := New(ctx, "local", object.BackendConfig{object.KeyRoot: root})
	require.NoError(t, err)

	file := object.NewUploadFile(writeSource(t, "hello"), "docs/note.txt")
	require.NoError(t, g.UploadByCredential(ctx, file, g.NewPolicy("docs/"), nil))
	data, err := os.ReadFile(filepath.Join(root, "docs", "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	outside := object.NewUploadFile(writeSource(t, "x"), "private/x.txt")
	assert.Error(t, g.UploadByCredential(ctx, outside, g.NewPolicy("docs/"), nil))
	assert.Equal(t, 1, outside.ReleaseCount())
}

func TestUpload_DriverNotRegistered(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)
	file := object.NewUploadFileFromBytes("a.txt", []byte("a"), "")
	_, err := g.Upload(context.Background(), file, nil)
	assert.True(t, errors.Is(err, object.ErrDriverNotRegistered))
	assert.Equal(t, 1, file.ReleaseCount())
}
