package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"docvault/pkg/types"
)

// Tip resolves a branch to its commit and root tree.
// A missing branch yields zero hashes and ErrRefNotFound.
func Tip(ctx context.Context, b Backend, branch string) (commit, tree types.Hash, err error) {
	commit, err = b.ResolveRef(ctx, branch)
	if err != nil {
		return "", "", err
	}
	info, err := b.ReadCommit(ctx, commit)
	if err != nil {
		return "", "", fmt.Errorf("failed to read tip commit %s: %w", commit.Short(), err)
	}
	return commit, info.Tree, nil
}

// Lookup descends from root along a slash separated path.
// An empty path (or "/") resolves to root itself as a directory entry.
// A zero root is the empty tree of a branch that does not exist yet.
func Lookup(ctx context.Context, b Backend, root types.Hash, p string) (Entry, error) {
	current := Entry{Mode: ModeDir, Hash: root}
	parts := SplitPath(p)
	if root.IsZero() && len(parts) > 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	for _, part := range parts {
		if !current.IsDir() {
			return Entry{}, fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}
		entries, err := b.ReadTree(ctx, current.Hash)
		if err != nil {
			return Entry{}, err
		}
		found := false
		for _, e := range entries {
			if e.Name == part {
				current = e
				found = true
				break
			}
		}
		if !found {
			return Entry{}, fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}
	}
	return current, nil
}

// ReadFile reads one file from the tip of a branch.
func ReadFile(ctx context.Context, b Backend, branch, p string) ([]byte, error) {
	_, tree, err := Tip(ctx, b, branch)
	if err != nil {
		return nil, err
	}
	return ReadFileAt(ctx, b, tree, p)
}

// ReadFileAt reads one file from the tree root.
func ReadFileAt(ctx context.Context, b Backend, root types.Hash, p string) ([]byte, error) {
	entry, err := Lookup(ctx, b, root, p)
	if err != nil {
		return nil, err
	}
	if entry.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrPathNotFound, p)
	}
	return ReadAll(ctx, b, entry.Hash)
}

// ReadAll reads a whole blob.
func ReadAll(ctx context.Context, b Backend, hash types.Hash) ([]byte, error) {
	rc, err := b.ReadBlob(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %w", ErrStorage, hash.Short(), err)
	}
	return data, nil
}

// FileEntry is a file found by Walk, with its path relative to the branch root.
type FileEntry struct {
	Path string
	Entry
}

// Walk lazily yields every file below dir in the tree at the tip of branch.
// Subtrees are read only as iteration reaches them, and breaking out of the loop stops the walk.
// A missing branch or directory yields a single ErrRefNotFound / ErrPathNotFound error.
func Walk(ctx context.Context, b Backend, branch, dir string) iter.Seq2[FileEntry, error] {
	return func(yield func(FileEntry, error) bool) {
		_, tree, err := Tip(ctx, b, branch)
		if err != nil {
			yield(FileEntry{}, err)
			return
		}
		for f, err := range WalkTree(ctx, b, tree, dir) {
			if !yield(f, err) {
				return
			}
		}
	}
}

// WalkTree is Walk over a fixed root tree instead of a branch tip.
// A zero root is empty: dir "" yields nothing, anything else ErrPathNotFound.
func WalkTree(ctx context.Context, b Backend, root types.Hash, dir string) iter.Seq2[FileEntry, error] {
	return func(yield func(FileEntry, error) bool) {
		if root.IsZero() && len(SplitPath(dir)) == 0 {
			return
		}
		start, err := Lookup(ctx, b, root, dir)
		if err != nil {
			yield(FileEntry{}, err)
			return
		}
		prefix := strings.Join(SplitPath(dir), "/")
		if !start.IsDir() {
			yield(FileEntry{Path: prefix, Entry: start}, nil)
			return
		}
		walkTree(ctx, b, start.Hash, prefix, yield)
	}
}

// walkTree returns false once the consumer stops.
func walkTree(ctx context.Context, b Backend, hash types.Hash, prefix string, yield func(FileEntry, error) bool) bool {
	if err := ctx.Err(); err != nil {
		return yield(FileEntry{}, err)
	}
	entries, err := b.ReadTree(ctx, hash)
	if err != nil {
		return yield(FileEntry{}, err)
	}
	for _, e := range entries {
		p := path.Join(prefix, e.Name)
		if e.IsDir() {
			if !walkTree(ctx, b, e.Hash, p, yield) {
				return false
			}
			continue
		}
		if !yield(FileEntry{Path: p, Entry: e}, nil) {
			return false
		}
	}
	return true
}

// SplitPath cleans p and returns its non-empty segments.
func SplitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsNotFound reports whether err means the branch, object or path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRefNotFound) || errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrObjectNotFound)
}
