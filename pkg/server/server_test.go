package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"docvault/pkg/backend"
	"docvault/pkg/backend/backendtest"
	"docvault/pkg/backend/gitrepo"
	"docvault/pkg/treebuilder"
	"docvault/pkg/types"
)

func seededServer(t *testing.T) (*gitrepo.Repository, http.Handler) {
	t.Helper()
	be := gitrepo.NewMemory()
	backendtest.MustSeed(t, be, "gh-pages", map[string]string{
		"index.html":            "<p>root</p>",
		"versions.json":         `[{"version":"1.0","title":"1.0","aliases":[]}]`,
		"1.0/index.html":        "<p>one</p>",
		"1.0/css/site.css":      "body{}",
		"1.0/guide/install.htm": "<p>install</p>",
		"1.0/empty/readme.txt":  "no index here",
	})
	return be, Handler(be, "gh-pages", zap.NewNop())
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServe_Files(t *testing.T) {
	_, h := seededServer(t)

	tests := []struct {
		target      string
		status      int
		body        string
		contentType string
	}{
		{"/1.0/index.html", 200, "<p>one</p>", "text/html; charset=utf-8"},
		{"/1.0/", 200, "<p>one</p>", "text/html; charset=utf-8"},
		{"/", 200, "<p>root</p>", "text/html; charset=utf-8"},
		{"/1.0/css/site.css", 200, "body{}", "text/css; charset=utf-8"},
		{"/versions.json", 200, `[{"version":"1.0","title":"1.0","aliases":[]}]`, "application/json"},
		{"/1.0/../1.0/index.html", 200, "<p>one</p>", ""},
		{"/2.0/", 404, "", ""},
		{"/1.0/nope.html", 404, "", ""},
		{"/1.0/empty/", 404, "", ""},
		{"/1.0/index.html/", 404, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServe_DirectoryRedirect(t *testing.T) {
	_, h := seededServer(t)

	rec := get(t, h, http.MethodGet, "/1.0?x=1")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/1.0/?x=1", rec.Header().Get("Location"))

	rec = get(t, h, http.MethodGet, "/1.0/guide")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/1.0/guide/", rec.Header().Get("Location"))
}

func TestServe_HeadAndMethods(t *testing.T) {
	_, h := seededServer(t)

	rec := get(t, h, http.MethodHead, "/1.0/index.html")
	assert.Equal(t, 200, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))

	rec = get(t, h, http.MethodPost, "/1.0/index.html")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestServe_ETag(t *testing.T) {
	_, h := seededServer(t)
	rec := get(t, h, http.MethodGet, "/1.0/index.html")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/1.0/index.html", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

// cutBackend serves only the first n bytes of every blob, then fails the read.
type cutBackend struct {
	backend.Backend
	n int64
}

var errCut = errors.New("connection to storage lost")

func (b cutBackend) ReadBlob(ctx context.Context, h types.Hash) (io.ReadCloser, error) {
	rc, err := b.Backend.ReadBlob(ctx, h)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{io.MultiReader(io.LimitReader(rc, b.n), iotest.ErrReader(errCut)), rc}, nil
}

func TestServe_StreamsBlob(t *testing.T) {
	be, _ := seededServer(t)
	core, logs := observer.New(zap.InfoLevel)
	h := Handler(cutBackend{Backend: be, n: 4}, "gh-pages", zap.New(core))

	rec := get(t, h, http.MethodGet, "/1.0/index.html")
	assert.Equal(t, http.StatusOK, rec.Code, "headers go out before the blob is fully read")
	assert.Equal(t, "<p>o", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, logs.FilterMessage("failed to stream file").Len())
}

func TestServe_RangeAndSniffing(t *testing.T) {
	be, h := seededServer(t)
	tx, err := treebuilder.Open(context.Background(), be, "gh-pages", "license")
	require.NoError(t, err)
	require.NoError(t, tx.AddFile("1.0/LICENSE", []byte("MIT License")))
	_, err = tx.Commit(context.Background())
	require.NoError(t, err)

	rec := get(t, h, http.MethodGet, "/1.0/LICENSE")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MIT License", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/1.0/index.html", nil)
	req.Header.Set("Range", "bytes=3-5")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "one", rec.Body.String())
}

func TestServe_FollowsBranchTip(t *testing.T) {
	be, h := seededServer(t)

	tx, err := treebuilder.Open(context.Background(), be, "gh-pages", "update")
	require.NoError(t, err)
	require.NoError(t, tx.AddFile("1.0/index.html", []byte("<p>one v2</p>")))
	_, err = tx.Commit(context.Background())
	require.NoError(t, err)

	rec := get(t, h, http.MethodGet, "/1.0/")
	assert.Equal(t, "<p>one v2</p>", rec.Body.String(), "every request re-reads the tip")
}

func TestServe_MissingBranch(t *testing.T) {
	h := Handler(gitrepo.NewMemory(), "gh-pages", nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/").Code)
}

type brokenBackend struct{ backend.Backend }

func (brokenBackend) ResolveRef(context.Context, string) (types.Hash, error) {
	return "", errors.New("disk on fire")
}

func TestServe_StorageErrorIs500(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Handler(brokenBackend{gitrepo.NewMemory()}, "gh-pages", zap.New(core))

	rec := get(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotZero(t, logs.FilterMessage("failed to serve file").Len())

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(500), entries[0].ContextMap()["status"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), AccessLog(logger), Recovery(logger))

	rec := get(t, h, http.MethodGet, "/x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("🔥 PANIC RECOVERED").Len())
	assert.Equal(t, 1, logs.FilterMessage("http request").Len())
}

func TestServe_GracefulShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, h := seededServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, h, zap.NewNop()) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/1.0/index.html")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<p>one</p>", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
