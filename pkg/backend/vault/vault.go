// Package vault implements backend.Backend on the native object store.
//
// Objects are canonical CBOR nodes from pkg/core persisted in a storage.Store
// (disk, S3 or Redis-cached). Branch heads live in SQL and move by compare-and-swap
// on the commit hash. Every written commit is also projected into the commits table.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/core"
	"docvault/pkg/meta"
	"docvault/pkg/refs"
	"docvault/pkg/storage"
	"docvault/pkg/types"
)

// Vault is the native object/ref store.
type Vault struct {
	store  storage.Store
	refs   *refs.Manager
	index  *meta.Repository
	logger *zap.Logger
}

var _ backend.Backend = (*Vault)(nil)

func New(store storage.Store, repo *meta.Repository, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		store:  store,
		refs:   refs.NewManager(repo),
		index:  repo,
		logger: logger,
	}
}

func (v *Vault) ResolveRef(ctx context.Context, branch string) (types.Hash, error) {
	h, err := v.refs.Resolve(ctx, branch)
	if errors.Is(err, refs.ErrNoRef) {
		return "", fmt.Errorf("%w: %s", backend.ErrRefNotFound, branch)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	return h, nil
}

// ReadCommit answers from the SQL commit index and falls back to the object store
// for commits that were never indexed.
func (v *Vault) ReadCommit(ctx context.Context, hash types.Hash) (*backend.CommitInfo, error) {
	m, err := v.index.GetCommit(ctx, hash)
	switch {
	case err == nil:
		return indexedCommit(m)
	case !errors.Is(err, meta.ErrCommitNotFound):
		return nil, fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}

	data, err := v.read(ctx, "commit", hash)
	if err != nil {
		return nil, err
	}
	c, err := core.DecodeCommit(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	name, email := splitAuthor(c.Author)
	return &backend.CommitInfo{
		Hash:    hash,
		Tree:    c.TreeCid.Hash,
		Parents: c.ParentHashes(),
		Author: backend.Signature{
			Name:  name,
			Email: email,
			When:  time.Unix(c.Timestamp, 0),
		},
		Message: c.Message,
	}, nil
}

func indexedCommit(m *meta.CommitModel) (*backend.CommitInfo, error) {
	parents, err := m.ParentsOf()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	name, email := splitAuthor(m.Author)
	return &backend.CommitInfo{
		Hash:    types.Hash(m.Hash),
		Tree:    types.Hash(m.TreeHash),
		Parents: parents,
		Author: backend.Signature{
			Name:  name,
			Email: email,
			When:  time.Unix(m.Timestamp, 0),
		},
		Message: m.Message,
	}, nil
}

func (v *Vault) ReadTree(ctx context.Context, hash types.Hash) ([]backend.Entry, error) {
	data, err := v.read(ctx, "tree", hash)
	if err != nil {
		return nil, err
	}
	t, err := core.DecodeTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	entries := make([]backend.Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		mode := backend.ModeFile
		switch e.Type {
		case core.EntryDir:
			mode = backend.ModeDir
		case core.EntryExec:
			mode = backend.ModeExecutable
		}
		entries = append(entries, backend.Entry{Name: e.Name, Mode: mode, Hash: e.Hash.Hash})
	}
	return entries, nil
}

func (v *Vault) ReadBlob(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	rc, err := v.store.Get(ctx, hash)
	if err != nil {
		return nil, translate(err, "blob", hash)
	}
	return rc, nil
}

func (v *Vault) WriteBlob(ctx context.Context, data []byte) (types.Hash, error) {
	blob := core.NewBlob(data)
	if err := v.put(ctx, blob); err != nil {
		return "", err
	}
	return blob.ID(), nil
}

func (v *Vault) WriteTree(ctx context.Context, entries []backend.Entry) (types.Hash, error) {
	nodes := make([]core.TreeEntry, 0, len(entries))
	for _, e := range entries {
		typ := core.EntryFile
		switch e.Mode {
		case backend.ModeDir:
			typ = core.EntryDir
		case backend.ModeExecutable:
			typ = core.EntryExec
		}
		nodes = append(nodes, core.TreeEntry{Name: e.Name, Type: typ, Hash: core.NewLink(e.Hash)})
	}
	tree, err := core.NewTree(nodes)
	if err != nil {
		return "", err
	}
	if err := v.put(ctx, tree); err != nil {
		return "", err
	}
	return tree.ID(), nil
}

// WriteCommit stores the commit object and indexes it for history queries.
func (v *Vault) WriteCommit(ctx context.Context, req backend.CommitRequest) (types.Hash, error) {
	when := req.Author.When
	if when.IsZero() {
		when = time.Now()
	}
	c, err := core.NewCommit(req.Tree, req.Parents, joinAuthor(req.Author), req.Message, when)
	if err != nil {
		return "", err
	}
	if err := v.put(ctx, c); err != nil {
		return "", err
	}
	if err := v.index.IndexCommit(ctx, c, nil); err != nil {
		return "", fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	v.logger.Debug("commit written", zap.String("hash", c.ID().Short()), zap.Int("parents", len(req.Parents)))
	return c.ID(), nil
}

func (v *Vault) UpdateRef(ctx context.Context, branch string, newHash, expected types.Hash) error {
	err := v.refs.Advance(ctx, branch, newHash, expected)
	if errors.Is(err, refs.ErrStaleRef) {
		return fmt.Errorf("%w: %s", backend.ErrConcurrentUpdate, branch)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrStorage, err)
	}
	return nil
}

func (v *Vault) read(ctx context.Context, kind string, hash types.Hash) ([]byte, error) {
	data, err := storage.ReadAll(ctx, v.store, hash)
	if err != nil {
		return nil, translate(err, kind, hash)
	}
	return data, nil
}

func (v *Vault) put(ctx context.Context, obj core.Object) error {
	if err := v.store.Put(ctx, obj); err != nil {
		return fmt.Errorf("%w: put %s %s: %w", backend.ErrStorage, obj.Type(), obj.ID().Short(), err)
	}
	return nil
}

func translate(err error, kind string, hash types.Hash) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", backend.ErrObjectNotFound, kind, hash.Short())
	}
	return fmt.Errorf("%w: read %s %s: %w", backend.ErrStorage, kind, hash.Short(), err)
}

// joinAuthor renders "Name <email>", the form stored in commit objects.
func joinAuthor(s backend.Signature) string {
	if s.Email == "" {
		return s.Name
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

func splitAuthor(author string) (name, email string) {
	i := strings.LastIndex(author, " <")
	if i < 0 || !strings.HasSuffix(author, ">") {
		return author, ""
	}
	return author[:i], author[i+2 : len(author)-1]
}
