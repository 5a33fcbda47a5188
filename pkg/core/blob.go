package core

import "docvault/pkg/types"

// Blob is a leaf of the DAG holding one file's bytes verbatim.
// Blobs are not CBOR-wrapped, so their id is the plain SHA-256 of the content.
type Blob struct {
	hash types.Hash
	data []byte
}

func NewBlob(data []byte) *Blob {
	return &Blob{
		hash: CalculateBlobHash(data),
		data: data,
	}
}

func (b *Blob) Type() ObjectType { return TypeBlob }
func (b *Blob) ID() types.Hash   { return b.hash }
func (b *Blob) Bytes() []byte    { return b.data }
func (b *Blob) Size() int64      { return int64(len(b.data)) }
