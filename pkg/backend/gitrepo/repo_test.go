package gitrepo

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/pkg/backend"
	"docvault/pkg/backend/backendtest"
)

func TestRepository_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return NewMemory()
	})
}

func TestRepository_OnDisk(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	repo, err := Open(dir)
	require.NoError(t, err)

	backendtest.MustSeed(t, repo, "gh-pages", map[string]string{"index.html": "hello"})

	// a second handle sees the branch through the real object database
	again, err := Open(dir)
	require.NoError(t, err)
	data, err := backend.ReadFile(context.Background(), again, "gh-pages", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// the checkout is untouched: HEAD still points at the unborn default branch
	g, err := git.PlainOpen(dir)
	require.NoError(t, err)
	_, err = g.Head()
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestRepository_OpenMissing(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestRepository_CommitsReadableByGoGit(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	head := backendtest.MustSeed(t, repo, "gh-pages", map[string]string{
		"1.0/index.html": "v1",
		"versions.json":  "[]",
	})

	c, err := object.GetCommit(repo.st, plumbing.NewHash(head.String()))
	require.NoError(t, err)
	f, err := c.File("1.0/index.html")
	require.NoError(t, err)
	content, err := f.Contents()
	require.NoError(t, err)
	assert.Equal(t, "v1", content)

	ref, err := repo.ResolveRef(ctx, "gh-pages")
	require.NoError(t, err)
	assert.Equal(t, head, ref)
}

func TestSortEntries_GitOrder(t *testing.T) {
	entries := []object.TreeEntry{
		{Name: "foo.txt", Mode: filemode.Regular},
		{Name: "foo", Mode: filemode.Dir},
		{Name: "foo-bar", Mode: filemode.Regular},
	}
	sortEntries(entries)

	// "foo-bar" < "foo.txt" < "foo/" because '-' < '.' < '/'
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"foo-bar", "foo.txt", "foo"}, names)
}

func TestUpdateRef_RejectsMalformedHash(t *testing.T) {
	repo := NewMemory()
	err := repo.UpdateRef(context.Background(), "gh-pages", "not-a-hash", "")
	assert.Error(t, err)

	_, err = repo.ResolveRef(context.Background(), "gh-pages")
	assert.ErrorIs(t, err, backend.ErrRefNotFound)
}
