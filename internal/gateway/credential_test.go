package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
)

func TestGetUploadTemporaryCredential_CachesBySemantics(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{platform: object.AdapterMinio, expiresAt: testNow.Unix() + 3600}
	g := newFakeGateway(t, f, nil)
	policy := object.NewCredentialPolicy("uploads/").WithScoped(true)

	first, err := g.GetUploadTemporaryCredential(ctx, policy, nil)
	require.NoError(t, err)
	second, err := g.GetUploadTemporaryCredential(ctx, object.NewCredentialPolicy("uploads/").WithScoped(true), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.credCalls)

	listCred, err := g.GetUploadTemporaryCredential(ctx, policy.WithSubOperation(object.SubOpListObjects), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.credCalls)
	assert.NotEqual(t, first.Payload["token"], listCred.Payload["token"])

	_, err = g.GetUploadTemporaryCredential(ctx, policy, object.Options{"cache": false})
	require.NoError(t, err)
	assert.Equal(t, 3, f.credCalls)
}

func TestGetUploadTemporaryCredential_Normalizes(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)
	policy := object.NewCredentialPolicy("uploads/")
	policy.TTL = 900

	cred, err := g.GetUploadTemporaryCredential(context.Background(), policy, nil)
	require.NoError(t, err)
	assert.Equal(t, object.AdapterMinio, cred.Platform)
	assert.Equal(t, testNow.Unix()+900, cred.ExpiresAt)
}

func TestGetUploadTemporaryCredential_FailureNotCached(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("sts unavailable")
	f := &fakeDriver{credErr: cause}
	g := newFakeGateway(t, f, nil)
	policy := object.NewCredentialPolicy("uploads/").WithScoped(true)

	_, err := g.GetUploadTemporaryCredential(ctx, policy, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, object.ErrCredentialIssuanceFailed))
	assert.True(t, errors.Is(err, cause))

	f.credErr = nil
	cred, err := g.GetUploadTemporaryCredential(ctx, policy, nil)
	require.NoError(t, err)
	assert.NotNil(t, cred)
	assert.Equal(t, 2, f.credCalls)
}

func TestGetUploadTemporaryCredential_WithoutCache(t *testing.T) {
	f := &fakeDriver{}
	g, err := New(context.Background(), "minio", minioConfig, WithRegistry(fakeRegistry(f)), WithCache(nil))
	require.NoError(t, err)
	policy := object.NewCredentialPolicy("uploads/")
	for i := 0; i < 2; i++ {
		_, err := g.GetUploadTemporaryCredential(context.Background(), policy, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.credCalls)
}

func TestCredentialReuse_LocalDisk(t *testing.T) {
	ctx := context.Background()
	now := testNow
	g, err := New(ctx, "local", object.BackendConfig{object.KeyRoot: t.TempDir()},
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	policy := object.NewCredentialPolicy("uploads/").WithScoped(true)

	first, err := g.GetUploadTemporaryCredential(ctx, policy, nil)
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := g.GetUploadTemporaryCredential(ctx, policy, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestObjectOperations_SeparateSubOperations(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{platform: object.AdapterMinio, expiresAt: testNow.Unix() + 3600}
	g := newFakeGateway(t, f, nil)
	policy := object.NewCredentialPolicy("uploads/")

	_, err := g.ListObjectsByCredential(ctx, policy, object.ListOptions{Prefix: "uploads/"}, nil)
	require.NoError(t, err)
	require.NoError(t, g.DeleteObjectByCredential(ctx, policy, "uploads/a.txt", nil))
	_, err = g.ListObjectsByCredential(ctx, policy, object.ListOptions{Prefix: "uploads/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.credCalls)

	res, err := g.DeleteObjectsByCredential(ctx, policy, []string{"uploads/a", "uploads/b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/a", "uploads/b"}, res.Deleted)
	require.NoError(t, g.CopyObjectByCredential(ctx, policy, "uploads/a", "uploads/c", nil))
	meta, err := g.GetHeadObjectByCredential(ctx, policy, "uploads/c", nil)
	require.NoError(t, err)
	assert.Equal(t, "uploads/c", meta.Path)
	require.NoError(t, g.SetHeadObjectByCredential(ctx, policy, "uploads/c", map[string]string{"Cache-Control": "no-cache"}, nil))
	require.NoError(t, g.CreateObjectByCredential(ctx, policy, "uploads/dir/", nil))
	url, err := g.GetPreSignedURLByCredential(ctx, policy, "uploads/c", 60, nil)
	require.NoError(t, err)
	assert.Contains(t, url, "uploads/c")

	var subOps []string
	for _, p := range f.policies {
		assert.True(t, p.Scoped)
		subOps = append(subOps, p.SubOperation)
	}
	assert.Equal(t, []string{
		object.SubOpListObjects, object.SubOpDelObject, object.SubOpDelObjects, object.SubOpCopyObject,
		object.SubOpHeadObject, object.SubOpSetMeta, object.SubOpCreateObject, object.SubOpPresignedURL,
	}, subOps)
	// 调用方的策略不被修改
	assert.False(t, policy.Scoped)
	assert.Empty(t, policy.SubOperation)
}
