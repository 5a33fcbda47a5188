package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"docvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// DAG-CBOR style encoding options.
var encOptions = cbor.EncOptions{
	// Canonical map key order, so equal objects hash equally.
	Sort: cbor.SortCanonical,

	ShortestFloat: cbor.ShortestFloatNone,
	// Timestamps are plain unix integers, no tag 0/1.
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// Arrays and maps must declare their length up front.
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// Bounds against hostile headers.
	MaxArrayElements: 100000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// CalculateHash encodes v canonically and returns its id and bytes.
func CalculateHash(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}

	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:])), data, nil
}

// CalculateBlobHash hashes raw content.
func CalculateBlobHash(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// DecodeObject decodes with the strict decoder.
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// DecodeTree decodes data and checks that it really is a tree.
func DecodeTree(data []byte) (*Tree, error) {
	var t Tree
	if err := DecodeObject(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	if t.TypeVal != TypeTree {
		return nil, fmt.Errorf("object is not a tree, got: %q", t.TypeVal)
	}
	t.hash = CalculateBlobHash(data)
	t.rawBytes = data
	return &t, nil
}

// DecodeCommit decodes data and checks that it really is a commit.
func DecodeCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := DecodeObject(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode commit: %w", err)
	}
	if c.TypeVal != TypeCommit {
		return nil, fmt.Errorf("object is not a commit, got: %q", c.TypeVal)
	}
	c.hash = CalculateBlobHash(data)
	c.rawBytes = data
	return &c, nil
}
