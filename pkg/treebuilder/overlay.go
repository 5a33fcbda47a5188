package treebuilder

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

// node is one entry of the in-memory overlay on top of the base tree.
// A directory whose children are nil has not been read and is reused by hash.
type node struct {
	isDir bool
	mode  backend.EntryMode
	hash  types.Hash

	children map[string]*node
	dirty    bool

	staged *stagedFile
}

func newDirNode(hash types.Hash) *node {
	n := &node{isDir: true, mode: backend.ModeDir, hash: hash}
	if hash.IsZero() {
		n.children = map[string]*node{}
		n.dirty = true
	}
	return n
}

// load reads a base directory on first touch.
func (n *node) load(ctx context.Context, be backend.Backend) error {
	if n.children != nil {
		return nil
	}
	entries, err := be.ReadTree(ctx, n.hash)
	if err != nil {
		return fmt.Errorf("failed to read tree %s: %w", n.hash.Short(), err)
	}
	n.children = make(map[string]*node, len(entries))
	for _, e := range entries {
		n.children[e.Name] = &node{isDir: e.IsDir(), mode: e.Mode, hash: e.Hash}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Deletions
// -----------------------------------------------------------------------------

type pattern struct {
	raw  string
	segs []string
}

func parsePattern(raw string) (pattern, error) {
	p := strings.Trim(raw, "/")
	if p == "" {
		return pattern{}, fmt.Errorf("%w: empty deletion pattern", ErrInvalidArgument)
	}
	if !doublestar.ValidatePattern(p) {
		return pattern{}, fmt.Errorf("%w: bad deletion pattern %q", ErrInvalidArgument, raw)
	}
	return pattern{raw: p, segs: strings.Split(p, "/")}, nil
}

func (p pattern) matches(name string) bool {
	ok, _ := doublestar.Match(p.raw, name)
	return ok
}

// mayContain reports whether a directory at dirSegs can hold a match.
func (p pattern) mayContain(dirSegs []string) bool {
	for i, s := range dirSegs {
		if i >= len(p.segs) {
			return false
		}
		if p.segs[i] == "**" {
			return true
		}
		if ok, _ := doublestar.Match(p.segs[i], s); !ok {
			return false
		}
	}
	return len(dirSegs) < len(p.segs)
}

// applyDeletes removes matching base entries and returns how many were removed.
// Only directories some pattern may reach are read.
func (tx *Transaction) applyDeletes(ctx context.Context, root *node) (int, error) {
	if len(tx.deletes) == 0 || tx.baseTree.IsZero() {
		return 0, nil
	}
	return tx.deleteIn(ctx, root, nil)
}

func (tx *Transaction) deleteIn(ctx context.Context, dir *node, segs []string) (int, error) {
	if err := dir.load(ctx, tx.be); err != nil {
		return 0, err
	}
	removed := 0
	for name, child := range dir.children {
		childSegs := append(segs[:len(segs):len(segs)], name)
		childPath := strings.Join(childSegs, "/")

		hit := false
		for _, p := range tx.deletes {
			if p.matches(childPath) {
				hit = true
				break
			}
		}
		if hit {
			delete(dir.children, name)
			dir.dirty = true
			removed++
			continue
		}
		if !child.isDir || !tx.anyMayContain(childSegs) {
			continue
		}
		n, err := tx.deleteIn(ctx, child, childSegs)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			dir.dirty = true
			removed += n
		}
	}
	return removed, nil
}

func (tx *Transaction) anyMayContain(segs []string) bool {
	for _, p := range tx.deletes {
		if p.mayContain(segs) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Additions
// -----------------------------------------------------------------------------

func (tx *Transaction) applyAdds(ctx context.Context, root *node) error {
	paths := make([]string, 0, len(tx.adds))
	for p := range tx.adds {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		staged := tx.adds[p]
		parts := strings.Split(p, "/")

		current := root
		for i, part := range parts[:len(parts)-1] {
			if err := current.load(ctx, tx.be); err != nil {
				return err
			}
			current.dirty = true
			child, ok := current.children[part]
			switch {
			case ok && child.staged != nil:
				return fmt.Errorf("%w: %s is staged as a file and as a directory", ErrInvalidArgument, path.Join(parts[:i+1]...))
			case !ok || !child.isDir:
				// a base file in the way is replaced
				child = newDirNode("")
				current.children[part] = child
			}
			current = child
		}

		if err := current.load(ctx, tx.be); err != nil {
			return err
		}
		current.dirty = true
		name := parts[len(parts)-1]
		if existing, ok := current.children[name]; ok && existing.isDir && hasStaged(existing) {
			return fmt.Errorf("%w: %s is staged as a file and as a directory", ErrInvalidArgument, p)
		}
		current.children[name] = &node{mode: staged.mode, staged: &staged}
	}
	return nil
}

func hasStaged(n *node) bool {
	if n.staged != nil {
		return true
	}
	for _, c := range n.children {
		if hasStaged(c) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Writing
// -----------------------------------------------------------------------------

// writeBlobs stores every staged file with bounded parallelism.
func (tx *Transaction) writeBlobs(ctx context.Context, root *node) error {
	var files []*node
	collectStaged(root, &files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tx.concurrency)

	var mu sync.Mutex
	for _, f := range files {
		g.Go(func() error {
			h, err := tx.be.WriteBlob(gctx, f.staged.data)
			if err != nil {
				return fmt.Errorf("failed to write blob: %w", err)
			}
			mu.Lock()
			f.hash = h
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func collectStaged(n *node, out *[]*node) {
	if n.staged != nil {
		*out = append(*out, n)
		return
	}
	for _, c := range n.children {
		collectStaged(c, out)
	}
}

// writeNode stores dirty directories bottom-up and returns the node hash.
// Clean nodes keep their base hash. An empty non-root directory returns a zero hash and is dropped.
func (tx *Transaction) writeNode(ctx context.Context, n *node, isRoot bool) (types.Hash, error) {
	if !n.isDir || !n.dirty {
		return n.hash, nil
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]backend.Entry, 0, len(names))
	for _, name := range names {
		child := n.children[name]
		h, err := tx.writeNode(ctx, child, false)
		if err != nil {
			return "", err
		}
		if h.IsZero() {
			continue
		}
		entries = append(entries, backend.Entry{Name: name, Mode: child.mode, Hash: h})
	}

	if len(entries) == 0 && !isRoot {
		return "", nil
	}
	h, err := tx.be.WriteTree(ctx, entries)
	if err != nil {
		return "", fmt.Errorf("failed to write tree: %w", err)
	}
	return h, nil
}

// Literal escapes glob metacharacters so that p only matches itself as a deletion pattern.
func Literal(p string) string {
	var b strings.Builder
	for _, r := range p {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
