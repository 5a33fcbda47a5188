package treebuilder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

// spyBackend counts tree reads and can fail selected writes.
type spyBackend struct {
	backend.Backend

	mu        sync.Mutex
	treeReads map[types.Hash]int

	failTrees bool
}

var errInjected = errors.New("injected write failure")

func newSpy(inner backend.Backend) *spyBackend {
	return &spyBackend{Backend: inner, treeReads: map[types.Hash]int{}}
}

func (s *spyBackend) ReadTree(ctx context.Context, h types.Hash) ([]backend.Entry, error) {
	s.mu.Lock()
	s.treeReads[h]++
	s.mu.Unlock()
	return s.Backend.ReadTree(ctx, h)
}

func (s *spyBackend) WriteTree(ctx context.Context, entries []backend.Entry) (types.Hash, error) {
	if s.failTrees {
		return "", errInjected
	}
	return s.Backend.WriteTree(ctx, entries)
}

func (s *spyBackend) reads(h types.Hash) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treeReads[h]
}

// mustFiles returns path -> content for every file on the branch.
func mustFiles(t *testing.T, be backend.Backend, branch string) map[string]string {
	t.Helper()
	out := map[string]string{}
	ctx := context.Background()
	for f, err := range backend.Walk(ctx, be, branch, "") {
		require.NoError(t, err)
		data, err := backend.ReadAll(ctx, be, f.Hash)
		require.NoError(t, err)
		out[f.Path] = string(data)
	}
	return out
}

func mustOpen(t *testing.T, be backend.Backend, opts ...Option) *Transaction {
	t.Helper()
	tx, err := Open(context.Background(), be, "gh-pages", "test commit", opts...)
	require.NoError(t, err)
	return tx
}

func mustCommit(t *testing.T, tx *Transaction) types.Hash {
	t.Helper()
	h, err := tx.Commit(context.Background())
	require.NoError(t, err)
	return h
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
