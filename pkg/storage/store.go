package storage

import (
	"context"
	"errors"
	"io"

	"docvault/pkg/core"
	"docvault/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Store defines the interface for a vault object backend.
// Implementations can be local disk, S3-compatible object storage, or a caching decorator.
// Objects are immutable and addressed by their hash, so Put is idempotent.
type Store interface {
	// Put persists an object under obj.ID().
	Put(ctx context.Context, obj core.Object) error

	// Get streams the raw bytes of an object. Returns ErrNotFound when absent.
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has reports whether an object exists, used to skip redundant uploads.
	Has(ctx context.Context, hash types.Hash) (bool, error)
}

// ReadAll is a convenience wrapper around Get for small objects such as trees and commits.
func ReadAll(ctx context.Context, s Store, hash types.Hash) ([]byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
