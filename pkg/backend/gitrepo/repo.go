// Package gitrepo implements backend.Backend on a git object database through go-git.
//
// Objects are written straight into the repository's object store and branches are
// moved with a checked ref update. The worktree, index and HEAD are never touched, so
// a docs branch can be published from a repository with a dirty checkout.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

// Repository is a git-backed object/ref store.
type Repository struct {
	st storage.Storer

	// refMu serializes ref updates issued through this value.
	refMu sync.Mutex
}

var _ backend.Backend = (*Repository)(nil)

// Open opens the git repository containing path.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", path, err)
	}
	return &Repository{st: repo.Storer}, nil
}

// NewMemory returns a repository held entirely in memory.
func NewMemory() *Repository {
	return &Repository{st: memory.NewStorage()}
}

// New wraps an existing go-git storer.
func New(st storage.Storer) *Repository {
	return &Repository{st: st}
}

func (r *Repository) ResolveRef(_ context.Context, branch string) (types.Hash, error) {
	ref, err := r.st.Reference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("%w: %s", backend.ErrRefNotFound, branch)
		}
		return "", fmt.Errorf("%w: read ref %s: %w", backend.ErrStorage, branch, err)
	}
	return types.Hash(ref.Hash().String()), nil
}

func (r *Repository) ReadCommit(_ context.Context, hash types.Hash) (*backend.CommitInfo, error) {
	h, err := toGitHash(hash)
	if err != nil {
		return nil, err
	}
	c, err := object.GetCommit(r.st, h)
	if err != nil {
		return nil, translate(err, "commit", hash)
	}
	info := &backend.CommitInfo{
		Hash:    hash,
		Tree:    types.Hash(c.TreeHash.String()),
		Message: c.Message,
		Author: backend.Signature{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			When:  c.Author.When,
		},
	}
	for _, p := range c.ParentHashes {
		info.Parents = append(info.Parents, types.Hash(p.String()))
	}
	return info, nil
}

func (r *Repository) ReadTree(_ context.Context, hash types.Hash) ([]backend.Entry, error) {
	h, err := toGitHash(hash)
	if err != nil {
		return nil, err
	}
	t, err := object.GetTree(r.st, h)
	if err != nil {
		return nil, translate(err, "tree", hash)
	}
	entries := make([]backend.Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		var mode backend.EntryMode
		switch e.Mode {
		case filemode.Dir:
			mode = backend.ModeDir
		case filemode.Executable:
			mode = backend.ModeExecutable
		case filemode.Submodule:
			// gitlinks point outside this object database
			continue
		default:
			mode = backend.ModeFile
		}
		entries = append(entries, backend.Entry{Name: e.Name, Mode: mode, Hash: types.Hash(e.Hash.String())})
	}
	return entries, nil
}

func (r *Repository) ReadBlob(_ context.Context, hash types.Hash) (io.ReadCloser, error) {
	h, err := toGitHash(hash)
	if err != nil {
		return nil, err
	}
	b, err := object.GetBlob(r.st, h)
	if err != nil {
		return nil, translate(err, "blob", hash)
	}
	rc, err := b.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: open blob %s: %w", backend.ErrStorage, hash.Short(), err)
	}
	return rc, nil
}

func (r *Repository) WriteBlob(_ context.Context, data []byte) (types.Hash, error) {
	obj := r.st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: write blob: %w", backend.ErrStorage, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: write blob: %w", backend.ErrStorage, err)
	}
	return r.store(obj)
}

func (r *Repository) WriteTree(_ context.Context, entries []backend.Entry) (types.Hash, error) {
	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		h, err := toGitHash(e.Hash)
		if err != nil {
			return "", err
		}
		mode := filemode.Regular
		switch e.Mode {
		case backend.ModeDir:
			mode = filemode.Dir
		case backend.ModeExecutable:
			mode = filemode.Executable
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: e.Name, Mode: mode, Hash: h})
	}
	sortEntries(tree.Entries)

	obj := r.st.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return "", fmt.Errorf("failed to encode tree: %w", err)
	}
	return r.store(obj)
}

func (r *Repository) WriteCommit(_ context.Context, req backend.CommitRequest) (types.Hash, error) {
	treeHash, err := toGitHash(req.Tree)
	if err != nil {
		return "", err
	}
	sig := object.Signature{Name: req.Author.Name, Email: req.Author.Email, When: req.Author.When}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   req.Message,
		TreeHash:  treeHash,
	}
	for _, p := range req.Parents {
		ph, err := toGitHash(p)
		if err != nil {
			return "", err
		}
		c.ParentHashes = append(c.ParentHashes, ph)
	}

	obj := r.st.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return "", fmt.Errorf("failed to encode commit: %w", err)
	}
	return r.store(obj)
}

// UpdateRef moves a branch with a checked update.
// Creation (zero expected) is checked and set under refMu only, so two processes
// creating the same orphan branch at the same instant are not detected.
func (r *Repository) UpdateRef(_ context.Context, branch string, newHash, expected types.Hash) error {
	name := plumbing.NewBranchReferenceName(branch)
	nh, err := toGitHash(newHash)
	if err != nil {
		return err
	}

	r.refMu.Lock()
	defer r.refMu.Unlock()

	current, err := r.st.Reference(name)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		current = nil
	case err != nil:
		return fmt.Errorf("%w: read ref %s: %w", backend.ErrStorage, branch, err)
	}

	newRef := plumbing.NewHashReference(name, nh)
	if expected.IsZero() {
		if current != nil {
			return fmt.Errorf("%w: %s already exists at %s", backend.ErrConcurrentUpdate, branch, current.Hash().String()[:8])
		}
		if err := r.st.SetReference(newRef); err != nil {
			return fmt.Errorf("%w: set ref %s: %w", backend.ErrStorage, branch, err)
		}
		return nil
	}

	eh, err := toGitHash(expected)
	if err != nil {
		return err
	}
	if current == nil || current.Hash() != eh {
		return fmt.Errorf("%w: %s no longer points at %s", backend.ErrConcurrentUpdate, branch, expected.Short())
	}
	if err := r.st.CheckAndSetReference(newRef, plumbing.NewHashReference(name, eh)); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("%w: %s", backend.ErrConcurrentUpdate, branch)
		}
		return fmt.Errorf("%w: set ref %s: %w", backend.ErrStorage, branch, err)
	}
	return nil
}

func (r *Repository) store(obj plumbing.EncodedObject) (types.Hash, error) {
	h, err := r.st.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("%w: store %s: %w", backend.ErrStorage, obj.Type(), err)
	}
	return types.Hash(h.String()), nil
}

// sortEntries orders entries the way git does: directories compare as if their name ended in "/".
func sortEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool { return key(entries[i]) < key(entries[j]) })
}

func toGitHash(h types.Hash) (plumbing.Hash, error) {
	if len(h) != 40 || !h.IsValid() {
		return plumbing.ZeroHash, fmt.Errorf("%w: invalid git object id %q", backend.ErrObjectNotFound, h)
	}
	return plumbing.NewHash(string(h)), nil
}

func translate(err error, kind string, hash types.Hash) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s %s", backend.ErrObjectNotFound, kind, hash.Short())
	}
	return fmt.Errorf("%w: read %s %s: %w", backend.ErrStorage, kind, hash.Short(), err)
}
