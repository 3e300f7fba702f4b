package fileservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
)

// fakeService 内存版文件服务
type fakeService struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	requests []*http.Request
}

func newFakeService() *fakeService {
	return &fakeService{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()

	if r.Header.Get(headerKey) != "svc-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/credentials":
		var req credentialRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, credentialResponse{
			Platform: "minio",
			Payload: map[string]any{
				"token":       "tok-" + req.Dir,
				"dir":         req.Dir,
				"scoped":      req.Scoped,
				"session_ttl": req.TTL,
			},
			ExpiresAt: 2000,
		})
	case r.URL.Path == "/api/v1/links":
		var req linkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		links := map[string]*object.FileLink{}
		for _, p := range req.Paths {
			links[p] = &object.FileLink{URL: "http://cdn.example.com/" + p + "?sig=x"}
		}
		writeJSON(w, http.StatusOK, linkResponse{Links: links})
	case strings.HasSuffix(r.URL.Path, "/append"):
		s.append(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/objects/"):
		s.object(w, r)
	default:
		writeJSON(w, http.StatusNotFound, APIError{Code: "NoSuchRoute", Message: r.URL.Path})
	}
}

func (s *fakeService) object(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/v1/objects/")
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		s.objects[key] = data
		s.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet, http.MethodHead:
		data, ok := s.objects[key]
		if !ok {
			writeJSON(w, http.StatusNotFound, APIError{Code: "NoSuchKey", Message: key})
			return
		}
		http.ServeContent(w, r, key, time.Unix(0, 0), bytes.NewReader(data))
	case http.MethodDelete:
		delete(s.objects, key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *fakeService) append(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/objects/"), "/append")
	pos, _ := strconv.ParseInt(r.URL.Query().Get("position"), 10, 64)
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(s.objects[key])) != pos {
		writeJSON(w, http.StatusConflict, APIError{Code: "PositionNotEqualToLength"})
		return
	}
	s.objects[key] = append(s.objects[key], data...)
	writeJSON(w, http.StatusOK, map[string]int64{"next_position": int64(len(s.objects[key]))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestDriver(t *testing.T) (*Driver, *fakeService) {
	t.Helper()
	svc := newFakeService()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	d, err := New(object.BackendConfig{
		object.KeyHost:     srv.URL,
		object.KeyPlatform: "minio",
		object.KeyKey:      "svc-key",
	})
	require.NoError(t, err)
	return d, svc
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig(object.BackendConfig{"host": "files.internal:8080", "platform": "MinIO", "key": "k", "rate_limit": "5"})
	require.NoError(t, err)
	assert.Equal(t, "http://files.internal:8080", c.Host)
	assert.Equal(t, "minio", c.Platform)
	assert.Equal(t, 5.0, c.RateLimit)

	_, err = ParseConfig(object.BackendConfig{"host": "h", "platform": "p"})
	assert.Error(t, err)
	_, err = ParseConfig(object.BackendConfig{"host": "h", "platform": "p", "key": "k", "rate_limit": "-1"})
	assert.Error(t, err)
}

func TestGetUploadCredential_ReportsHostedPlatform(t *testing.T) {
	d, svc := newTestDriver(t)
	policy := object.NewCredentialPolicy("uploads/").WithScoped(true)

	cred, err := d.GetUploadCredential(context.Background(), policy, nil)
	require.NoError(t, err)
	assert.Equal(t, object.AdapterMinio, cred.Platform)
	assert.Equal(t, "tok-uploads/", cred.PayloadString(CredToken))
	assert.Equal(t, int64(2000), cred.ExpiresAt)

	require.Len(t, svc.requests, 1)
	assert.NotEmpty(t, svc.requests[0].Header.Get(headerRequestID))
	assert.Equal(t, "minio", svc.requests[0].Header.Get(headerPlatform))
}

func TestGetFileLinks_FillsPathAndExpiry(t *testing.T) {
	d, _ := newTestDriver(t)
	d.now = func() time.Time { return time.Unix(100, 0) }

	links, err := d.GetFileLinks(context.Background(), []string{"a.txt", "b.txt"}, nil, 60, nil)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "a.txt", links["a.txt"].Path)
	assert.Equal(t, int64(160), links["a.txt"].ExpiresAt)
}

func TestFilesystem_RoundTrip(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Write(ctx, "docs/a b.txt", strings.NewReader("hello"), 5, "text/plain"))
	ok, err := d.Exists(ctx, "docs/a b.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := d.Read(ctx, "docs/a b.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(data))

	require.NoError(t, d.Delete(ctx, "docs/a b.txt"))
	ok, err = d.Exists(ctx, "docs/a b.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Read(ctx, "missing")
	assert.True(t, errors.Is(err, object.ErrNotFound))
}

func TestUploadAndAppend_WithCredentialToken(t *testing.T) {
	d, svc := newTestDriver(t)
	ctx := context.Background()
	cred := &object.Credential{Platform: object.AdapterMinio, Payload: map[string]any{CredToken: "tok"}}

	file := object.NewUploadFileFromBytes("logs/app.log", []byte("abc"), "text/plain")
	require.NoError(t, d.UploadObject(ctx, cred, file, nil))
	assert.Equal(t, "abc", string(svc.objects["logs/app.log"]))
	assert.Equal(t, "Bearer tok", svc.requests[len(svc.requests)-1].Header.Get("Authorization"))

	src := filepath.Join(t.TempDir(), "more.log")
	require.NoError(t, os.WriteFile(src, []byte("def"), 0o644))
	app := object.NewAppendUploadFile(src, "logs/app.log", 3)
	defer app.Release()
	next, err := d.AppendUploadObject(ctx, cred, app, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), next)

	stale := object.NewAppendUploadFile(src, "logs/app.log", 3)
	defer stale.Release()
	_, err = d.AppendUploadObject(ctx, cred, stale, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "PositionNotEqualToLength", apiErr.Code)

	err = d.UploadObject(ctx, &object.Credential{Payload: map[string]any{}}, file, nil)
	assert.Error(t, err)
}

func TestDownloadByChunks(t *testing.T) {
	d, svc := newTestDriver(t)
	content := bytes.Repeat([]byte("0123456789"), 100)
	svc.objects["big.bin"] = content

	dest := filepath.Join(t.TempDir(), "out", "big.bin")
	err := d.DownloadByChunks(context.Background(), "big.bin", dest, &object.ChunkDownloadConfig{PartSize: 64, Concurrency: 4}, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadByChunks_MissingLeavesNoFile(t *testing.T) {
	d, _ := newTestDriver(t)
	dest := filepath.Join(t.TempDir(), "missing.bin")
	err := d.DownloadByChunks(context.Background(), "missing.bin", dest, nil, nil)
	assert.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
