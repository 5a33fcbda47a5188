// Package refs manages branch heads of the vault backend on top of the metadata repository.
package refs

import (
	"context"
	"errors"
	"fmt"

	"docvault/pkg/meta"
	"docvault/pkg/types"
)

var (
	ErrNoRef    = errors.New("branch has no commits yet")
	ErrStaleRef = errors.New("branch head is stale, someone else committed first")
)

// Manager reads and advances branch heads.
type Manager struct {
	repo *meta.Repository
}

func NewManager(repo *meta.Repository) *Manager {
	return &Manager{repo: repo}
}

// Resolve returns the commit a branch points at, or ErrNoRef.
func (m *Manager) Resolve(ctx context.Context, branch string) (types.Hash, error) {
	ref, err := m.repo.GetRef(ctx, branch)
	if errors.Is(err, meta.ErrRefNotFound) {
		return "", ErrNoRef
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ref %s: %w", branch, err)
	}
	return types.Hash(ref.CommitHash), nil
}

// Advance moves branch from expected to newHash.
// expected is the head the caller read; empty means the branch must not exist yet.
func (m *Manager) Advance(ctx context.Context, branch string, newHash, expected types.Hash) error {
	err := m.repo.UpdateRef(ctx, branch, newHash, expected)
	if errors.Is(err, meta.ErrConcurrentUpdate) {
		return ErrStaleRef
	}
	if err != nil {
		return fmt.Errorf("failed to advance %s: %w", branch, err)
	}
	return nil
}
