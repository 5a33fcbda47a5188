// pkg/types/common.go
package types

import "encoding/hex"

// Hash is the hex id of a content-addressed object.
// The git backend produces 40-char SHA-1 ids, the vault backend 64-char SHA-256 ids.
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid checks length and hex alphabet only.
func (h Hash) IsValid() bool {
	if len(h) != 40 && len(h) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short returns the 8-char abbreviation used in CLI output.
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}
