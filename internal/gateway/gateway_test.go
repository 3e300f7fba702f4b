package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
)

var testNow = time.Unix(1_700_000_000, 0)

// fakeDriver 记录调用次数的可控驱动
type fakeDriver struct {
	mu        sync.Mutex
	platform  object.Adapter
	expiresAt int64
	credErr   error
	linkErr   error
	uploadErr error
	urlFor    func(path string) string

	credCalls int
	policies  []object.CredentialPolicy
	linkCalls int
	linkPaths [][]string
	linkNames []map[string]string
	uploads   int
}

func (f *fakeDriver) GetUploadCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credCalls++
	f.policies = append(f.policies, policy)
	if f.credErr != nil {
		return nil, f.credErr
	}
	return &object.Credential{
		Platform: f.platform,
		Payload: map[string]any{
			"token": fmt.Sprintf("tok-%d", f.credCalls),
			"dir":   policy.Dir,
		},
		ExpiresAt: f.expiresAt,
	}, nil
}

func (f *fakeDriver) GetMetas(ctx context.Context, paths []string, opts object.Options) ([]*object.FileMetadata, error) {
	return nil, nil
}

func (f *fakeDriver) GetFileLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts object.Options) (map[string]*object.FileLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	f.linkPaths = append(f.linkPaths, paths)
	f.linkNames = append(f.linkNames, downloadNames)
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	out := make(map[string]*object.FileLink, len(paths))
	for _, p := range paths {
		u := "https://bucket.example.com/" + p + "?sig=abc"
		if f.urlFor != nil {
			u = f.urlFor(p)
		}
		out[p] = &object.FileLink{Path: p, URL: u}
	}
	return out, nil
}

func (f *fakeDriver) Destroy(ctx context.Context, paths []string, opts object.Options) error {
	return nil
}

func (f *fakeDriver) Duplicate(ctx context.Context, source, dest string, opts object.Options) (string, error) {
	return dest, nil
}

func (f *fakeDriver) DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *object.ChunkDownloadConfig, opts object.Options) error {
	return nil
}

func (f *fakeDriver) UploadObject(ctx context.Context, cred *object.Credential, file *object.UploadFile, opts object.Options) error {
	f.uploads++
	return f.uploadErr
}

func (f *fakeDriver) UploadObjectByChunks(ctx context.Context, cred *object.Credential, file *object.ChunkUploadFile, opts object.Options) error {
	f.uploads++
	return f.uploadErr
}

func (f *fakeDriver) AppendUploadObject(ctx context.Context, cred *object.Credential, file *object.AppendUploadFile, opts object.Options) (int64, error) {
	f.uploads++
	return file.Position + 1, f.uploadErr
}

func (f *fakeDriver) ListObjects(ctx context.Context, cred *object.Credential, list object.ListOptions, opts object.Options) (*object.ListResult, error) {
	return &object.ListResult{}, nil
}

func (f *fakeDriver) DeleteObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	return nil
}

func (f *fakeDriver) DeleteObjects(ctx context.Context, cred *object.Credential, keys []string, opts object.Options) (*object.DeleteResult, error) {
	return &object.DeleteResult{Deleted: keys}, nil
}

func (f *fakeDriver) CopyObject(ctx context.Context, cred *object.Credential, source, dest string, opts object.Options) error {
	return nil
}

func (f *fakeDriver) HeadObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) (*object.FileMetadata, error) {
	return &object.FileMetadata{Path: key}, nil
}

func (f *fakeDriver) SetHeadObject(ctx context.Context, cred *object.Credential, key string, headers map[string]string, opts object.Options) error {
	return nil
}

func (f *fakeDriver) CreateObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	return nil
}

func (f *fakeDriver) PreSignedURL(ctx context.Context, cred *object.Credential, key string, expires int64, opts object.Options) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=1", nil
}

var minioConfig = object.BackendConfig{
	object.KeyEndpoint:  "http://minio:9000",
	object.KeyAccessKey: "ak",
	object.KeySecretKey: "sk",
	object.KeyBucket:    "bucket",
}

// fakeRegistry 将 minio 与文件服务指向 fake，本地磁盘保留真实驱动
func fakeRegistry(f *fakeDriver) *Registry {
	factory := func(context.Context, object.Adapter, object.BackendConfig) (Drivers, error) {
		return bundle(f), nil
	}
	localFactory, _ := DefaultRegistry().Lookup(object.AdapterLocal)
	return NewRegistry().
		Register(object.AdapterMinio, factory).
		Register(object.AdapterFileService, factory).
		Register(object.AdapterLocal, localFactory)
}

func newFakeGateway(t *testing.T, f *fakeDriver, cfg object.BackendConfig) *Gateway {
	t.Helper()
	if cfg == nil {
		cfg = minioConfig
	}
	g, err := New(context.Background(), "s3", cfg, WithRegistry(fakeRegistry(f)), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return g
}

func TestNew_ResolvesAndValidates(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway(t, &fakeDriver{}, nil)
	assert.Equal(t, object.AdapterMinio, g.Adapter())
	assert.Empty(t, g.PublicDomain())

	_, err := New(ctx, "dropbox", nil)
	assert.True(t, errors.Is(err, object.ErrUnknownAdapter))

	_, err = New(ctx, "minio", object.BackendConfig{object.KeyBucket: "b"})
	assert.True(t, errors.Is(err, object.ErrInvalidAdapterConfig))

	_, err = New(ctx, "minio", minioConfig, WithRegistry(NewRegistry()))
	assert.True(t, errors.Is(err, object.ErrDriverNotRegistered))
}

func TestNew_NamespacesByConfig(t *testing.T) {
	f := &fakeDriver{}
	a := newFakeGateway(t, f, nil)
	b := newFakeGateway(t, f, nil)
	other := minioConfig.Clone()
	other[object.KeyBucket] = "other"
	c := newFakeGateway(t, f, other)

	assert.Equal(t, a.prefix, b.prefix)
	assert.NotEqual(t, a.prefix, c.prefix)
}

func TestCacheTTL_Floor(t *testing.T) {
	now := testNow.Unix()
	assert.Equal(t, int64(3540), cacheTTL(now+3600, now, CredentialCacheMargin))
	for _, delta := range []int64{-100, 0, 1, 59, 60, 61} {
		assert.Equal(t, int64(1), cacheTTL(now+delta, now, CredentialCacheMargin), delta)
	}
	assert.Equal(t, int64(2), cacheTTL(now+62, now, LinkCacheMargin))
}

func TestDefaultRegistry_CoversAllAdapters(t *testing.T) {
	assert.ElementsMatch(t, object.Adapters(), DefaultRegistry().Adapters())
}
