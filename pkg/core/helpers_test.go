package core

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"docvault/pkg/types"

	"github.com/stretchr/testify/require"
)

// mockHash returns a valid 64-char hex id derived from input.
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func mustNewCommit(t *testing.T, treeHash types.Hash, parents []types.Hash, author, msg string, msgAndArgs ...any) *Commit {
	t.Helper()
	c, err := NewCommit(treeHash, parents, author, msg, time.Unix(1700000000, 0))
	require.NoError(t, err, msgAndArgs...)
	return c
}

func mustNewTree(t *testing.T, entries []TreeEntry, msgAndArgs ...any) *Tree {
	t.Helper()
	tr, err := NewTree(entries)
	require.NoError(t, err, msgAndArgs...)
	return tr
}
