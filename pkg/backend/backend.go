// Package backend defines the object/ref store capability every docs branch lives on.
//
// A Backend exposes content-addressed blobs, trees and commits plus one
// compare-and-swap operation on branch refs. Nothing here touches a working copy:
// callers read and write objects explicitly and publish them by moving a ref.
package backend

import (
	"context"
	"errors"
	"io"
	"time"

	"docvault/pkg/types"
)

var (
	ErrRefNotFound      = errors.New("branch not found")
	ErrObjectNotFound   = errors.New("object not found")
	ErrPathNotFound     = errors.New("path not found in tree")
	ErrConcurrentUpdate = errors.New("branch was updated concurrently (CAS failed)")
	ErrStorage          = errors.New("storage failure")
)

// EntryMode is the kind of a tree entry.
type EntryMode int

const (
	ModeFile EntryMode = iota
	ModeExecutable
	ModeDir
)

func (m EntryMode) String() string {
	switch m {
	case ModeDir:
		return "dir"
	case ModeExecutable:
		return "exec"
	default:
		return "file"
	}
}

// Entry is one named child of a tree.
type Entry struct {
	Name string
	Mode EntryMode
	Hash types.Hash
}

func (e Entry) IsDir() bool { return e.Mode == ModeDir }

// Signature identifies who produced a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo is a decoded commit.
type CommitInfo struct {
	Hash    types.Hash
	Tree    types.Hash
	Parents []types.Hash
	Author  Signature
	Message string
}

// CommitRequest describes a commit to be written.
type CommitRequest struct {
	Tree    types.Hash
	Parents []types.Hash
	Author  Signature
	Message string
}

// Backend is the object/ref store capability.
type Backend interface {
	// ResolveRef returns the commit a branch points at, or ErrRefNotFound.
	ResolveRef(ctx context.Context, branch string) (types.Hash, error)

	ReadCommit(ctx context.Context, hash types.Hash) (*CommitInfo, error)

	// ReadTree lists the direct children of a tree.
	ReadTree(ctx context.Context, hash types.Hash) ([]Entry, error)

	ReadBlob(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	WriteBlob(ctx context.Context, data []byte) (types.Hash, error)

	// WriteTree stores a tree. Entry order is irrelevant; implementations canonicalize it.
	WriteTree(ctx context.Context, entries []Entry) (types.Hash, error)

	WriteCommit(ctx context.Context, c CommitRequest) (types.Hash, error)

	// UpdateRef moves branch to newHash only if it still points at expected.
	// A zero expected means the branch must not exist yet.
	// Returns ErrConcurrentUpdate when the condition fails.
	UpdateRef(ctx context.Context, branch string, newHash, expected types.Hash) error
}
