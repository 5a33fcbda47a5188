// Package treebuilder turns staged file changes into exactly one new commit on a branch.
//
// A Transaction captures the branch tip when it is opened. Additions and deletion
// patterns are held in memory; Commit rebuilds only the directories on changed paths,
// writes one commit whose parent is the captured tip and then moves the branch with a
// compare-and-swap against that tip. Nothing is visible on the branch until the swap
// succeeds.
package treebuilder

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/types"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = fmt.Errorf("%w: transaction already finished", ErrInvalidArgument)
)

// State is the lifecycle position of a Transaction.
type State int

const (
	StateOpened State = iota
	StateStaging
	StateCommitted
	StateConflict
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateStaging:
		return "staging"
	case StateCommitted:
		return "committed"
	case StateConflict:
		return "conflict"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further calls are accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateConflict || s == StateFailed
}

type Option func(*Transaction)

func WithLogger(l *zap.Logger) Option {
	return func(tx *Transaction) {
		if l != nil {
			tx.logger = l
		}
	}
}

// WithAuthor sets the commit signature. A zero When is stamped at commit time.
func WithAuthor(sig backend.Signature) Option {
	return func(tx *Transaction) { tx.author = sig }
}

// WithConcurrency bounds parallel blob writes during Commit.
func WithConcurrency(n int) Option {
	return func(tx *Transaction) {
		if n > 0 {
			tx.concurrency = n
		}
	}
}

// Transaction is one pending commit against a branch.
type Transaction struct {
	mu sync.Mutex

	be      backend.Backend
	branch  string
	message string

	parent   types.Hash // captured tip, zero for an orphan branch
	baseTree types.Hash // zero for an orphan branch

	adds    map[string]stagedFile
	deletes []pattern

	state State

	logger      *zap.Logger
	author      backend.Signature
	concurrency int
}

type stagedFile struct {
	data []byte
	mode backend.EntryMode
}

// Open captures the current tip of branch. A missing branch is an empty base.
func Open(ctx context.Context, be backend.Backend, branch, message string, opts ...Option) (*Transaction, error) {
	tx := &Transaction{
		be:          be,
		branch:      branch,
		message:     message,
		adds:        make(map[string]stagedFile),
		logger:      zap.NewNop(),
		author:      backend.Signature{Name: "docvault", Email: "docvault@localhost"},
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(tx)
	}

	parent, tree, err := backend.Tip(ctx, be, branch)
	switch {
	case errors.Is(err, backend.ErrRefNotFound):
		tx.logger.Debug("branch does not exist, starting orphan", zap.String("branch", branch))
	case err != nil:
		return nil, fmt.Errorf("failed to open transaction on %s: %w", branch, err)
	default:
		tx.parent = parent
		tx.baseTree = tree
	}
	return tx, nil
}

// Parent is the captured tip, zero when the branch did not exist.
func (tx *Transaction) Parent() types.Hash {
	return tx.parent
}

// ReadFile reads p from the captured base, ignoring staged changes.
// Reads stay on the captured snapshot even if the branch has moved since Open.
func (tx *Transaction) ReadFile(ctx context.Context, p string) ([]byte, error) {
	return backend.ReadFileAt(ctx, tx.be, tx.baseTree, p)
}

// Walk yields the files below dir in the captured base.
func (tx *Transaction) Walk(ctx context.Context, dir string) iter.Seq2[backend.FileEntry, error] {
	return backend.WalkTree(ctx, tx.be, tx.baseTree, dir)
}

// SetMessage replaces the commit message.
func (tx *Transaction) SetMessage(message string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state.Terminal() {
		return ErrClosed
	}
	tx.message = message
	return nil
}

func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// AddFile stages content at p. It wins over deletions and base content,
// and a later add of the same path replaces an earlier one.
func (tx *Transaction) AddFile(p string, data []byte) error {
	return tx.add(p, data, backend.ModeFile)
}

// AddExecutable stages content with the executable bit set.
func (tx *Transaction) AddExecutable(p string, data []byte) error {
	return tx.add(p, data, backend.ModeExecutable)
}

func (tx *Transaction) add(p string, data []byte, mode backend.EntryMode) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state.Terminal() {
		return ErrClosed
	}
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}
	tx.adds[clean] = stagedFile{data: data, mode: mode}
	tx.state = StateStaging
	return nil
}

// DeleteFiles records removal of base entries matching any pattern.
// A pattern is an exact path, a directory (removes its subtree), a doublestar glob, or "*".
func (tx *Transaction) DeleteFiles(patterns ...string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state.Terminal() {
		return ErrClosed
	}
	parsed := make([]pattern, 0, len(patterns))
	for _, raw := range patterns {
		pat, err := parsePattern(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, pat)
	}
	tx.deletes = append(tx.deletes, parsed...)
	tx.state = StateStaging
	return nil
}

// Commit writes the staged result and advances the branch.
// On a moved branch it returns backend.ErrConcurrentUpdate and the branch is unchanged.
func (tx *Transaction) Commit(ctx context.Context) (types.Hash, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state.Terminal() {
		return "", ErrClosed
	}

	hash, err := tx.commit(ctx)
	switch {
	case err == nil:
		tx.state = StateCommitted
	case errors.Is(err, backend.ErrConcurrentUpdate):
		tx.state = StateConflict
	default:
		tx.state = StateFailed
	}
	return hash, err
}

func (tx *Transaction) commit(ctx context.Context) (types.Hash, error) {
	// 1. Overlay: base tree minus deletions plus additions
	root := newDirNode(tx.baseTree)
	removed, err := tx.applyDeletes(ctx, root)
	if err != nil {
		return "", err
	}
	if err := tx.applyAdds(ctx, root); err != nil {
		return "", err
	}

	// 2. Blobs in parallel, then trees bottom-up
	if err := tx.writeBlobs(ctx, root); err != nil {
		return "", err
	}
	treeHash, err := tx.writeNode(ctx, root, true)
	if err != nil {
		return "", err
	}

	// 3. Commit object
	sig := tx.author
	if sig.When.IsZero() {
		sig.When = time.Now()
	}
	var parents []types.Hash
	if !tx.parent.IsZero() {
		parents = []types.Hash{tx.parent}
	}
	commitHash, err := tx.be.WriteCommit(ctx, backend.CommitRequest{
		Tree:    treeHash,
		Parents: parents,
		Author:  sig,
		Message: tx.message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write commit: %w", err)
	}

	// 4. Publish
	if err := tx.be.UpdateRef(ctx, tx.branch, commitHash, tx.parent); err != nil {
		tx.logger.Warn("branch update rejected",
			zap.String("branch", tx.branch),
			zap.String("expected", tx.parent.Short()),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to update %s: %w", tx.branch, err)
	}

	tx.logger.Info("committed",
		zap.String("branch", tx.branch),
		zap.String("commit", commitHash.Short()),
		zap.String("parent", tx.parent.Short()),
		zap.Int("added", len(tx.adds)),
		zap.Int("removed", removed),
	)
	return commitHash, nil
}

func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: path %q must be relative", ErrInvalidArgument, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: path %q escapes the branch root", ErrInvalidArgument, p)
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	return clean, nil
}
