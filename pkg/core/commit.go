package core

import (
	"time"

	"docvault/pkg/types"
)

type Commit struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal ObjectType `cbor:"t"`

	TreeCid Link   `cbor:"th"`
	Parents []Link `cbor:"p"`

	Author  string `cbor:"a"`
	Message string `cbor:"m"`

	Timestamp int64 `cbor:"ts"`
}

func NewCommit(treeHash types.Hash, parents []types.Hash, author, msg string, when time.Time) (*Commit, error) {
	parentLinks := make([]Link, len(parents))
	for i, p := range parents {
		parentLinks[i] = NewLink(p)
	}

	c := &Commit{
		TypeVal:   TypeCommit,
		TreeCid:   NewLink(treeHash),
		Parents:   parentLinks,
		Author:    author,
		Message:   msg,
		Timestamp: when.Unix(),
	}

	h, b, err := CalculateHash(c)
	if err != nil {
		return nil, err
	}
	c.hash = h
	c.rawBytes = b
	return c, nil
}

func (c *Commit) Type() ObjectType { return TypeCommit }
func (c *Commit) ID() types.Hash   { return c.hash }
func (c *Commit) Bytes() []byte    { return c.rawBytes }

// ParentHashes unwraps the parent links.
func (c *Commit) ParentHashes() []types.Hash {
	out := make([]types.Hash, len(c.Parents))
	for i, p := range c.Parents {
		out[i] = p.Hash
	}
	return out
}
