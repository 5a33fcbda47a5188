// Package backendtest is a conformance suite shared by every backend.Backend implementation.
package backendtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

// Run exercises objects, refs and the walk helpers against a fresh backend per subtest.
func Run(t *testing.T, newBackend func(t *testing.T) backend.Backend) {
	t.Run("BlobRoundTrip", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		h, err := b.WriteBlob(ctx, []byte("<h1>hi</h1>"))
		require.NoError(t, err)
		assert.True(t, h.IsValid())

		again, err := b.WriteBlob(ctx, []byte("<h1>hi</h1>"))
		require.NoError(t, err)
		assert.Equal(t, h, again, "identical content must share an id")

		data, err := backend.ReadAll(ctx, b, h)
		require.NoError(t, err)
		assert.Equal(t, "<h1>hi</h1>", string(data))
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		h, err := b.WriteBlob(ctx, nil)
		require.NoError(t, err)
		data, err := backend.ReadAll(ctx, b, h)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("TreeOrderIndependent", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		a := MustBlob(t, b, "a")
		c := MustBlob(t, b, "c")
		sub := MustTree(t, b, backend.Entry{Name: "x.html", Mode: backend.ModeFile, Hash: a})

		t1 := MustTree(t, b,
			backend.Entry{Name: "b.txt", Mode: backend.ModeFile, Hash: a},
			backend.Entry{Name: "b", Mode: backend.ModeDir, Hash: sub},
			backend.Entry{Name: "run.sh", Mode: backend.ModeExecutable, Hash: c},
		)
		t2 := MustTree(t, b,
			backend.Entry{Name: "run.sh", Mode: backend.ModeExecutable, Hash: c},
			backend.Entry{Name: "b", Mode: backend.ModeDir, Hash: sub},
			backend.Entry{Name: "b.txt", Mode: backend.ModeFile, Hash: a},
		)
		assert.Equal(t, t1, t2)

		entries, err := b.ReadTree(ctx, t1)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		modes := map[string]backend.EntryMode{}
		for _, e := range entries {
			modes[e.Name] = e.Mode
		}
		assert.Equal(t, backend.ModeDir, modes["b"])
		assert.Equal(t, backend.ModeFile, modes["b.txt"])
		assert.Equal(t, backend.ModeExecutable, modes["run.sh"])
	})

	t.Run("CommitRoundTrip", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		tree := MustTree(t, b)
		when := time.Unix(1700000000, 0)
		first := MustCommit(t, b, tree, nil, "first", when)
		second := MustCommit(t, b, tree, []types.Hash{first}, "second", when.Add(time.Minute))

		info, err := b.ReadCommit(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, second, info.Hash)
		assert.Equal(t, tree, info.Tree)
		assert.Equal(t, []types.Hash{first}, info.Parents)
		assert.Equal(t, "second", info.Message)
		assert.Equal(t, "Docs Bot", info.Author.Name)
		assert.Equal(t, "docs@example.com", info.Author.Email)
		assert.Equal(t, when.Add(time.Minute).Unix(), info.Author.When.Unix())
	})

	t.Run("MissingObjects", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		// a real id of the right shape that was never written
		absent, err := newBackend(t).WriteBlob(ctx, []byte("elsewhere"))
		require.NoError(t, err)

		_, err = b.ReadBlob(ctx, absent)
		assert.ErrorIs(t, err, backend.ErrObjectNotFound)
		_, err = b.ReadTree(ctx, absent)
		assert.ErrorIs(t, err, backend.ErrObjectNotFound)
		_, err = b.ReadCommit(ctx, absent)
		assert.ErrorIs(t, err, backend.ErrObjectNotFound)
	})

	t.Run("RefCAS", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		_, err := b.ResolveRef(ctx, "gh-pages")
		require.ErrorIs(t, err, backend.ErrRefNotFound)

		tree := MustTree(t, b)
		c1 := MustCommit(t, b, tree, nil, "one", time.Now())
		c2 := MustCommit(t, b, tree, []types.Hash{c1}, "two", time.Now())
		c3 := MustCommit(t, b, tree, []types.Hash{c1}, "three", time.Now())

		require.NoError(t, b.UpdateRef(ctx, "gh-pages", c1, ""))
		err = b.UpdateRef(ctx, "gh-pages", c2, "")
		assert.ErrorIs(t, err, backend.ErrConcurrentUpdate, "creating an existing branch must fail")

		require.NoError(t, b.UpdateRef(ctx, "gh-pages", c2, c1))

		err = b.UpdateRef(ctx, "gh-pages", c3, c1)
		assert.ErrorIs(t, err, backend.ErrConcurrentUpdate, "stale expectation must fail")

		head, err := b.ResolveRef(ctx, "gh-pages")
		require.NoError(t, err)
		assert.Equal(t, c2, head)
	})

	t.Run("LookupAndWalk", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		head := MustSeed(t, b, "gh-pages", map[string]string{
			"versions.json":      "[]",
			"1.0/index.html":     "v1",
			"1.0/api/index.html": "api",
			"2.0/index.html":     "v2",
			"latest/index.html":  "redirect",
		})
		assert.True(t, head.IsValid())

		data, err := backend.ReadFile(ctx, b, "gh-pages", "1.0/api/index.html")
		require.NoError(t, err)
		assert.Equal(t, "api", string(data))

		_, err = backend.ReadFile(ctx, b, "gh-pages", "1.0/missing.html")
		assert.ErrorIs(t, err, backend.ErrPathNotFound)
		_, err = backend.ReadFile(ctx, b, "gh-pages", "1.0")
		assert.ErrorIs(t, err, backend.ErrPathNotFound, "directories are not files")

		var paths []string
		for f, err := range backend.Walk(ctx, b, "gh-pages", "1.0") {
			require.NoError(t, err)
			paths = append(paths, f.Path)
		}
		assert.ElementsMatch(t, []string{"1.0/index.html", "1.0/api/index.html"}, paths)

		// early break stops the walk
		n := 0
		for _, err := range backend.Walk(ctx, b, "gh-pages", "") {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)

		for _, err := range backend.Walk(ctx, b, "gh-pages", "3.0") {
			assert.ErrorIs(t, err, backend.ErrPathNotFound)
		}
		for _, err := range backend.Walk(ctx, b, "other", "") {
			assert.ErrorIs(t, err, backend.ErrRefNotFound)
		}

		// fixed roots
		_, root, err := backend.Tip(ctx, b, "gh-pages")
		require.NoError(t, err)
		data, err = backend.ReadFileAt(ctx, b, root, "2.0/index.html")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
		paths = nil
		for f, err := range backend.WalkTree(ctx, b, root, "latest") {
			require.NoError(t, err)
			paths = append(paths, f.Path)
		}
		assert.Equal(t, []string{"latest/index.html"}, paths)

		_, err = backend.ReadFileAt(ctx, b, "", "versions.json")
		assert.ErrorIs(t, err, backend.ErrPathNotFound, "a zero root is empty")
		for _, err := range backend.WalkTree(ctx, b, "", "") {
			t.Fatalf("zero root yielded %v", err)
		}
	})
}

var testAuthor = backend.Signature{Name: "Docs Bot", Email: "docs@example.com"}

func MustBlob(t *testing.T, b backend.Backend, content string) types.Hash {
	t.Helper()
	h, err := b.WriteBlob(context.Background(), []byte(content))
	require.NoError(t, err)
	return h
}

func MustTree(t *testing.T, b backend.Backend, entries ...backend.Entry) types.Hash {
	t.Helper()
	h, err := b.WriteTree(context.Background(), entries)
	require.NoError(t, err)
	return h
}

func MustCommit(t *testing.T, b backend.Backend, tree types.Hash, parents []types.Hash, msg string, when time.Time) types.Hash {
	t.Helper()
	sig := testAuthor
	sig.When = when
	h, err := b.WriteCommit(context.Background(), backend.CommitRequest{
		Tree:    tree,
		Parents: parents,
		Author:  sig,
		Message: msg,
	})
	require.NoError(t, err)
	return h
}

// MustSeed commits files (path -> content) as a new orphan branch and returns the commit.
func MustSeed(t *testing.T, b backend.Backend, branch string, files map[string]string) types.Hash {
	t.Helper()
	root := MustTree(t, b, buildEntries(t, b, files)...)
	c := MustCommit(t, b, root, nil, "seed", time.Now())
	require.NoError(t, b.UpdateRef(context.Background(), branch, c, ""))
	return c
}

func buildEntries(t *testing.T, b backend.Backend, files map[string]string) []backend.Entry {
	t.Helper()
	dirs := map[string]map[string]string{}
	var entries []backend.Entry
	for p, content := range files {
		parts := backend.SplitPath(p)
		if len(parts) == 1 {
			entries = append(entries, backend.Entry{Name: parts[0], Mode: backend.ModeFile, Hash: MustBlob(t, b, content)})
			continue
		}
		if dirs[parts[0]] == nil {
			dirs[parts[0]] = map[string]string{}
		}
		dirs[parts[0]][strings.Join(parts[1:], "/")] = content
	}
	for name, children := range dirs {
		sub := MustTree(t, b, buildEntries(t, b, children)...)
		entries = append(entries, backend.Entry{Name: name, Mode: backend.ModeDir, Hash: sub})
	}
	return entries
}
