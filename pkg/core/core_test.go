package core

import (
	"encoding/hex"
	"testing"
	"time"

	"docvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. Link
// -----------------------------------------------------------------------------

func TestLink_Marshal_Compliance(t *testing.T) {
	link := NewLink(mockHash("test-content"))

	data, err := link.MarshalCBOR()
	require.NoError(t, err)

	// Tag 42 (0xd82a) + ByteString 33 bytes (0x5821) + Prefix (0x00)
	assert.Equal(t, "d82a582100", hex.EncodeToString(data)[:10], "link must carry tag 42 and the 0x00 prefix")
}

func TestLink_Unmarshal_RoundTrip(t *testing.T) {
	originalHash := mockHash("round-trip-test")
	data, err := NewLink(originalHash).MarshalCBOR()
	require.NoError(t, err)

	var l2 Link
	require.NoError(t, l2.UnmarshalCBOR(data))
	assert.Equal(t, originalHash, l2.Hash)
}

func TestLink_Unmarshal_Strictness(t *testing.T) {
	// Missing 0x00 prefix.
	badPrefixBytes, _ := hex.DecodeString("d82a5820" + string(mockHash("bad")))

	var l Link
	err := l.UnmarshalCBOR(badPrefixBytes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing 0x00 multibase prefix")

	// Tag 43 instead of 42.
	wrongTagBytes, _ := hex.DecodeString("d82b582100" + string(mockHash("wrong")))
	assert.Error(t, l.UnmarshalCBOR(wrongTagBytes))
}

func TestLink_Marshal_RejectsNonHex(t *testing.T) {
	_, err := NewLink(types.Hash("not-hex")).MarshalCBOR()
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------
// 2. Canonical encoding
// -----------------------------------------------------------------------------

func TestCanonical_Encoding(t *testing.T) {
	c := mustNewCommit(t, mockHash("tree_root"), []types.Hash{mockHash("parent1")}, "author_test", "message_test")

	decoded, err := DecodeCommit(c.Bytes())
	require.NoError(t, err)

	hash2, _, err := CalculateHash(decoded)
	require.NoError(t, err)

	assert.Equal(t, c.ID(), hash2, "hash must be deterministic across a decode/encode cycle")
	assert.Equal(t, c.ID(), decoded.ID(), "decoded commit keeps its id")
	assert.Equal(t, []types.Hash{mockHash("parent1")}, decoded.ParentHashes())
}

func TestTree_OrderIndependentHash(t *testing.T) {
	a := TreeEntry{Name: "a.html", Type: EntryFile, Hash: NewLink(mockHash("a")), Size: 1}
	b := TreeEntry{Name: "b", Type: EntryDir, Hash: NewLink(mockHash("b"))}

	t1 := mustNewTree(t, []TreeEntry{a, b})
	t2 := mustNewTree(t, []TreeEntry{b, a})

	assert.Equal(t, t1.ID(), t2.ID())
	assert.Equal(t, "a.html", t1.Entries[0].Name)
}

func TestTree_RejectsDuplicateNames(t *testing.T) {
	e := TreeEntry{Name: "dup", Type: EntryFile, Hash: NewLink(mockHash("x"))}
	_, err := NewTree([]TreeEntry{e, e})
	assert.Error(t, err)
}

func TestTree_DecodeRoundTrip(t *testing.T) {
	blob := NewBlob([]byte("<html></html>"))
	entry := TreeEntry{Name: "index.html", Type: EntryFile, Hash: NewLink(blob.ID()), Size: blob.Size()}

	tr := mustNewTree(t, []TreeEntry{entry})
	decoded, err := DecodeTree(tr.Bytes())
	require.NoError(t, err)

	assert.Equal(t, tr.ID(), decoded.ID())
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, blob.ID(), decoded.Entries[0].Hash.Hash)
}

func TestDecode_TypeMismatch(t *testing.T) {
	tr := mustNewTree(t, nil)
	_, err := DecodeCommit(tr.Bytes())
	assert.Error(t, err)

	c := mustNewCommit(t, mockHash("tree"), nil, "me", "msg")
	_, err = DecodeTree(c.Bytes())
	assert.Error(t, err)
}

func TestCommit_Timestamp_Type(t *testing.T) {
	now := time.Now()
	c, err := NewCommit(mockHash("tree"), nil, "me", "msg", now)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), c.Timestamp)
}

func TestBlob_HashIsContentHash(t *testing.T) {
	b := NewBlob([]byte("hello"))
	assert.Equal(t, CalculateBlobHash([]byte("hello")), b.ID())
	assert.Equal(t, TypeBlob, b.Type())
}
