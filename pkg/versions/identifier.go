package versions

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
)

// Identifier is an ordered version token. Its canonical form is the trimmed input,
// which is both the directory name on the branch and the registry key.
//
// Tokens that parse as (tolerant) semantic versions order semantically; anything
// else ("dev", "nightly") orders below every semantic version and lexically among
// its peers. Equal semantic values with different spellings tie-break on the string.
type Identifier struct {
	raw      string
	sv       semver.Version
	semantic bool
}

// ParseIdentifier validates and parses a version token.
func ParseIdentifier(s string) (Identifier, error) {
	raw := strings.TrimSpace(s)
	if err := validName(raw); err != nil {
		return Identifier{}, fmt.Errorf("version %w", err)
	}
	id := Identifier{raw: raw}
	if sv, err := semver.ParseTolerant(raw); err == nil {
		id.sv = sv
		id.semantic = true
	}
	return id, nil
}

// MustParseIdentifier is ParseIdentifier for literals known to be valid.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Identifier) String() string { return i.raw }

func (i Identifier) IsZero() bool { return i.raw == "" }

// IsSemantic reports whether the token parsed as a semantic version.
func (i Identifier) IsSemantic() bool { return i.semantic }

// Compare returns -1, 0 or +1. Zero means the canonical strings are equal.
func (i Identifier) Compare(o Identifier) int {
	switch {
	case i.semantic && !o.semantic:
		return 1
	case !i.semantic && o.semantic:
		return -1
	case i.semantic && o.semantic:
		if c := i.sv.Compare(o.sv); c != 0 {
			return c
		}
	}
	return strings.Compare(i.raw, o.raw)
}

func (i Identifier) MarshalText() ([]byte, error) {
	return []byte(i.raw), nil
}

func (i *Identifier) UnmarshalText(b []byte) error {
	id, err := ParseIdentifier(string(b))
	if err != nil {
		return err
	}
	*i = id
	return nil
}

// validName accepts tokens usable as a single directory name.
func validName(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q is not a directory name", ErrInvalidArgument, s)
	case strings.ContainsAny(s, "/\\"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidArgument, s)
	}
	return nil
}
