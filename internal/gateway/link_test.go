package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
)

func publicConfig(domain string) object.BackendConfig {
	cfg := minioConfig.Clone()
	cfg[object.KeyPublicRead] = "true"
	if domain != "" {
		cfg[object.KeyPublicDomain] = domain
	}
	return cfg
}

func TestGetLinks_PublicReadShortCircuit(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, publicConfig("https://cdn.example.com/"))

	links, err := g.GetLinks(context.Background(), []string{"a/b.png"}, nil, 3600, nil)
	require.NoError(t, err)
	require.Contains(t, links, "a/b.png")
	assert.Equal(t, "https://cdn.example.com/a/b.png", links["a/b.png"].URL)
	assert.Equal(t, testNow.Unix()+3600, links["a/b.png"].ExpiresAt)
	assert.Equal(t, 0, f.linkCalls)
	assert.Equal(t, 0, f.credCalls)
}

func TestGetLinks_DownloadNamesBypassShortCircuit(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, publicConfig("https://cdn.example.com"))

	links, err := g.GetLinks(context.Background(), []string{"a/b.png"}, map[string]string{"a/b.png": "photo.png"}, 3600, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.linkCalls)
	assert.Equal(t, map[string]string{"a/b.png": "photo.png"}, f.linkNames[0])
	assert.Equal(t, "https://bucket.example.com/a/b.png", links["a/b.png"].URL)
}

func TestGetLinks_LazyPublicDomainDiscovery(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{}
	g := newFakeGateway(t, f, publicConfig(""))

	links, err := g.GetLinks(ctx, []string{"a.png"}, nil, 3600, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example.com/a.png", links["a.png"].URL)
	assert.Equal(t, "https://bucket.example.com", g.PublicDomain())

	links, err = g.GetLinks(ctx, []string{"b.png"}, nil, 3600, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example.com/b.png", links["b.png"].URL)
	assert.Equal(t, 1, f.linkCalls)
}

func TestGetLinks_PathStyleDomainKeepsBucket(t *testing.T) {
	ctx := context.Background()
	g, err := New(ctx, "minio", object.BackendConfig{
		object.KeyEndpoint:   "http://minio.local:9000",
		object.KeyAccessKey:  "minio",
		object.KeySecretKey:  "minio-secret",
		object.KeyBucket:     "media",
		object.KeyPublicRead: "true",
	})
	require.NoError(t, err)

	links, err := g.GetLinks(ctx, []string{"a/b.png"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000/media/a/b.png", links["a/b.png"].URL)
	assert.Equal(t, "http://minio.local:9000/media", g.PublicDomain())

	links, err = g.GetLinks(ctx, []string{"a/c.png"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000/media/a/c.png", links["a/c.png"].URL)
}

func TestGetLinks_UnderivableDomainStaysUnknown(t *testing.T) {
	f := &fakeDriver{urlFor: func(p string) string { return "https://cdn.example.com/signed/123?sig=abc" }}
	g := newFakeGateway(t, f, publicConfig(""))

	links, err := g.GetLinks(context.Background(), []string{"a.png"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/signed/123", links["a.png"].URL)
	assert.Empty(t, g.PublicDomain())
}

func TestGetLinks_PrivateCachedAndBatched(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)

	links, err := g.GetLinks(ctx, []string{"b.txt", "a.txt"}, nil, 600, nil)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://bucket.example.com/a.txt?sig=abc", links["a.txt"].URL)
	assert.Equal(t, []string{"a.txt", "b.txt"}, f.linkPaths[0])

	links, err = g.GetLinks(ctx, []string{"a.txt", "c.txt"}, nil, 600, nil)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, 2, f.linkCalls)
	assert.Equal(t, []string{"c.txt"}, f.linkPaths[1])
	assert.Equal(t, "a.txt", links["a.txt"].Path)

	// 不同有效期不共享缓存
	_, err = g.GetLinks(ctx, []string{"a.txt"}, nil, 1200, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.linkCalls)
}

func TestGetLinks_EscapesPercent(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)

	links, err := g.GetLinks(context.Background(), []string{"reports/50%.txt"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/50%25.txt"}, f.linkPaths[0])
	require.Contains(t, links, "reports/50%.txt")
	assert.Equal(t, "reports/50%.txt", links["reports/50%.txt"].Path)
}

func TestGetLinks_StripsKeyPrefixForImpersonatedMinio(t *testing.T) {
	f := &fakeDriver{}
	cfg := object.BackendConfig{
		object.KeyHost:      "http://files.internal",
		object.KeyPlatform:  "MinIO",
		object.KeyKey:       "svc",
		object.KeyKeyPrefix: "/tenant-a/",
	}
	g, err := New(context.Background(), "file-service", cfg, WithRegistry(fakeRegistry(f)))
	require.NoError(t, err)

	links, err := g.GetLinks(context.Background(), []string{"tenant-a/docs/x.pdf", "/tenant-a/y.pdf", "other/z.pdf"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/x.pdf", "other/z.pdf", "y.pdf"}, f.linkPaths[0])
	assert.Len(t, links, 3)
	assert.Contains(t, links, "/tenant-a/y.pdf")

	// 托管其它平台时不改写
	cfg[object.KeyPlatform] = "aliyun"
	f2 := &fakeDriver{}
	g2, err := New(context.Background(), "file-service", cfg, WithRegistry(fakeRegistry(f2)))
	require.NoError(t, err)
	_, err = g2.GetLinks(context.Background(), []string{"tenant-a/docs/x.pdf"}, nil, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a/docs/x.pdf"}, f2.linkPaths[0])
}

func TestGetLinks_FailureReturnsCachedSubset(t *testing.T) {
	ctx := context.Background()
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)

	_, err := g.GetLinks(ctx, []string{"a.txt"}, nil, 600, nil)
	require.NoError(t, err)

	cause := errors.New("backend down")
	f.linkErr = cause
	links, err := g.GetLinks(ctx, []string{"a.txt", "b.txt"}, nil, 600, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, object.ErrLinkIssuanceFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Len(t, links, 1)
	assert.Contains(t, links, "a.txt")
}

func TestGetLink_Single(t *testing.T) {
	f := &fakeDriver{}
	g := newFakeGateway(t, f, nil)
	link, err := g.GetLink(context.Background(), "a.txt", "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", link.Path)
	assert.Equal(t, testNow.Unix()+DefaultLinkExpires, link.ExpiresAt)
}
