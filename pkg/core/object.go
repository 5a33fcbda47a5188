package core

import "docvault/pkg/types"

// ObjectType is the kind of a node in the vault Merkle DAG.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"   // raw file content
	TypeTree   ObjectType = "tree"   // directory listing
	TypeCommit ObjectType = "commit" // branch snapshot
)

// Object is the common interface of every DAG node.
type Object interface {
	Type() ObjectType

	// ID is the content hash. It is fixed when the object is constructed.
	ID() types.Hash

	// Bytes is the serialized form written to storage.
	Bytes() []byte
}
