package meta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"docvault/pkg/core"
	"docvault/pkg/types"

	"github.com/stretchr/testify/require"
)

func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func mustNewCommit(t *testing.T, treeHash types.Hash, parents []types.Hash, author, msg string, msgAndArgs ...any) *core.Commit {
	t.Helper()
	c, err := core.NewCommit(treeHash, parents, author, msg, time.Now())
	require.NoError(t, err, msgAndArgs...)
	return c
}

func mustIndexCommit(t *testing.T, repo *Repository, c *core.Commit, msgAndArgs ...any) {
	t.Helper()
	err := repo.IndexCommit(context.Background(), c, nil)
	require.NoError(t, err, msgAndArgs...)
}

func mustUpdateRef(t *testing.T, repo *Repository, name string, newHash, expected types.Hash, msgAndArgs ...any) {
	t.Helper()
	err := repo.UpdateRef(context.Background(), name, newHash, expected)
	require.NoError(t, err, msgAndArgs...)
}
