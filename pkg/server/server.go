// Package server answers HTTP requests straight from the current tip of a docs branch.
package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

// BranchFileServer serves files from a branch, re-reading the tip on every request.
type BranchFileServer struct {
	be     backend.Backend
	branch string
	logger *zap.Logger
}

// NewBranchFileServer returns the bare handler. Handler adds logging and recovery.
func NewBranchFileServer(be backend.Backend, branch string, logger *zap.Logger) *BranchFileServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BranchFileServer{be: be, branch: branch, logger: logger}
}

// Handler is the file server wrapped in the access log and panic recovery.
func Handler(be backend.Backend, branch string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Chain(NewBranchFileServer(be, branch, logger), AccessLog(logger), Recovery(logger))
}

func (s *BranchFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	urlPath := r.URL.Path
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	name := path.Clean(urlPath)
	trailing := strings.HasSuffix(urlPath, "/")

	_, tree, err := backend.Tip(ctx, s.be, s.branch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := backend.Lookup(ctx, s.be, tree, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if entry.IsDir() {
		if !trailing {
			// relative links inside index.html need the slash
			target := r.URL.EscapedPath() + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		if entry, err = backend.Lookup(ctx, s.be, tree, name); err != nil || entry.IsDir() {
			if err == nil {
				err = backend.ErrPathNotFound
			}
			s.fail(w, r, err)
			return
		}
	} else if trailing {
		s.fail(w, r, backend.ErrPathNotFound)
		return
	}

	w.Header().Set("ETag", `"`+entry.Hash.String()+`"`)
	if r.Method == http.MethodGet && !conditional(r) {
		s.stream(w, r, name, entry.Hash)
		return
	}

	// HEAD, ranges and preconditions need the length and a seeker
	data, err := backend.ReadAll(ctx, s.be, entry.Hash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.ServeContent(w, r, path.Base(name), time.Time{}, bytes.NewReader(data))
}

func conditional(r *http.Request) bool {
	for _, h := range []string{"Range", "If-Range", "If-Match", "If-None-Match"} {
		if r.Header.Get(h) != "" {
			return true
		}
	}
	return false
}

// stream copies the blob to w without holding it in memory.
func (s *BranchFileServer) stream(w http.ResponseWriter, r *http.Request, name string, hash types.Hash) {
	rc, err := s.be.ReadBlob(r.Context(), hash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) {
			s.fail(w, r, err)
			return
		}
		ctype = http.DetectContentType(head)
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, br); err != nil {
		// headers are out, the client sees a short body
		s.logger.Warn("failed to stream file", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

const sniffLen = 512

func (s *BranchFileServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	if backend.IsNotFound(err) {
		http.NotFound(w, r)
		return
	}
	s.logger.Error("failed to serve file", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
