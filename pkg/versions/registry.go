// Package versions models the deployed versions of a site, their titles and their aliases.
//
// A Registry keeps every version identifier unique and every alias unique across the
// whole registry: no alias may equal an identifier or another entry's alias. Moving an
// alias to a new owner ("theft") removes it from the old one. Mutations either succeed
// completely or leave the registry as it was.
package versions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("version not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Info is one deployed version.
type Info struct {
	Version Identifier `json:"version" yaml:"version"`
	Title   string     `json:"title" yaml:"title"`
	Aliases []string   `json:"aliases" yaml:"aliases"`
}

// HasAlias reports whether a is one of the entry's aliases.
func (i *Info) HasAlias(a string) bool {
	return slices.Contains(i.Aliases, a)
}

// Dirs lists the branch directories owned by the entry: its version dir and alias dirs.
func (i *Info) Dirs() []string {
	return append([]string{i.Version.String()}, i.Aliases...)
}

func (i *Info) clone() *Info {
	c := *i
	c.Aliases = slices.Clone(i.Aliases)
	if c.Aliases == nil {
		c.Aliases = []string{}
	}
	return &c
}

func (i *Info) addAlias(a string) bool {
	if i.HasAlias(a) {
		return false
	}
	i.Aliases = append(i.Aliases, a)
	sort.Strings(i.Aliases)
	return true
}

func (i *Info) removeAlias(a string) bool {
	idx := slices.Index(i.Aliases, a)
	if idx < 0 {
		return false
	}
	i.Aliases = slices.Delete(i.Aliases, idx, idx+1)
	return true
}

// Registry is the ordered collection of versions, sorted descending by identifier.
type Registry struct {
	entries []*Info
}

func New() *Registry {
	return &Registry{}
}

// Load parses a registry document. A nil or blank document is an empty registry.
// Stored titles and aliases are kept as written; only entry and alias order are canonicalized.
func Load(doc []byte) (*Registry, error) {
	r := New()
	if len(bytes.TrimSpace(doc)) == 0 {
		return r, nil
	}
	var infos []*Info
	if err := json.Unmarshal(doc, &infos); err != nil {
		return nil, fmt.Errorf("%w: malformed registry document: %w", ErrInvalidArgument, err)
	}

	seen := map[string]string{} // name -> what claimed it
	for _, info := range infos {
		if info == nil || info.Version.IsZero() {
			return nil, fmt.Errorf("%w: registry entry without a version", ErrInvalidArgument)
		}
		v := info.Version.String()
		if prev, ok := seen[v]; ok {
			return nil, fmt.Errorf("%w: version %q collides with %s", ErrInvalidArgument, v, prev)
		}
		seen[v] = "version " + v
	}
	for _, info := range infos {
		entry := info.clone()
		entry.Aliases = entry.Aliases[:0]
		for _, a := range info.Aliases {
			if err := validName(a); err != nil {
				return nil, fmt.Errorf("alias of %s: %w", info.Version, err)
			}
			if entry.HasAlias(a) {
				continue
			}
			if prev, ok := seen[a]; ok {
				return nil, fmt.Errorf("%w: alias %q of %s collides with %s", ErrInvalidArgument, a, info.Version, prev)
			}
			seen[a] = "alias of " + info.Version.String()
			entry.addAlias(a)
		}
		r.entries = append(r.entries, entry)
	}
	r.sort()
	return r, nil
}

// Marshal renders the canonical document: entries descending, aliases sorted, two-space indent.
func (r *Registry) Marshal() ([]byte, error) {
	out := r.List()
	if out == nil {
		out = []Info{}
	}
	return json.MarshalIndent(out, "", "  ")
}

func (r *Registry) Len() int { return len(r.entries) }

// List returns copies of all entries, newest first.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e.clone())
	}
	return out
}

// Get looks up an entry by identifier only.
func (r *Registry) Get(id string) (*Info, bool) {
	e := r.byVersion(strings.TrimSpace(id))
	if e == nil {
		return nil, false
	}
	return e.clone(), true
}

// Add creates a version or returns the existing one.
//
// For an existing version a non-empty title retitles it. With updateAliases the given
// aliases are merged in, taken from their current owners; without it they are ignored.
// A new version gets title (default: the identifier) and aliases, again taking them
// from current owners.
func (r *Registry) Add(id, title string, aliases []string, updateAliases bool) (*Info, error) {
	ident, err := ParseIdentifier(id)
	if err != nil {
		return nil, err
	}
	key := ident.String()

	if existing := r.byVersion(key); existing != nil {
		if updateAliases {
			names, err := r.checkAliases(key, aliases)
			if err != nil {
				return nil, err
			}
			r.assign(existing, names)
		}
		if title != "" {
			existing.Title = title
		}
		return existing.clone(), nil
	}

	if owner := r.aliasOwner(key); owner != nil {
		return nil, fmt.Errorf("%w: %q is already an alias of %s", ErrInvalidArgument, key, owner.Version)
	}
	names, err := r.checkAliases(key, aliases)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = key
	}
	entry := &Info{Version: ident, Title: title, Aliases: []string{}}
	r.assign(entry, names)
	r.entries = append(r.entries, entry)
	r.sort()
	return entry.clone(), nil
}

// Find resolves a token. An identifier match wins; when not strict, aliases are tried next.
func (r *Registry) Find(token string, strict bool) (*Info, error) {
	token = strings.TrimSpace(token)
	if e := r.byVersion(token); e != nil {
		return e.clone(), nil
	}
	if !strict {
		if e := r.aliasOwner(token); e != nil {
			return e.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
}

// Update retitles (title != nil) and/or reassigns aliases to the version id.
// It returns the aliases newly attached to the entry, i.e. the alias directories
// whose content now belongs to this version.
func (r *Registry) Update(id string, title *string, aliases []string) ([]string, error) {
	key := strings.TrimSpace(id)
	entry := r.byVersion(key)
	if entry == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	names, err := r.checkAliases(key, aliases)
	if err != nil {
		return nil, err
	}
	if title != nil {
		entry.Title = *title
		if entry.Title == "" {
			entry.Title = key
		}
	}
	return r.assign(entry, names), nil
}

// DifferenceUpdate removes each token: a version token drops the whole entry, an
// alias token strips that alias from its owner. Unknown tokens fail the whole call
// and leave the registry unchanged. A token already removed earlier in the same call
// (an alias of a deleted version, or a repeat) is skipped.
func (r *Registry) DifferenceUpdate(tokens []string) ([]DeletionResult, error) {
	work := r.clone()
	gone := map[string]bool{}

	var results []DeletionResult
	for _, raw := range tokens {
		token := strings.TrimSpace(raw)
		if gone[token] {
			continue
		}
		if e := work.byVersion(token); e != nil {
			work.remove(token)
			gone[token] = true
			for _, a := range e.Aliases {
				gone[a] = true
			}
			results = append(results, WholeVersion{Info: *e.clone()})
			continue
		}
		if owner := work.aliasOwner(token); owner != nil {
			owner.removeAlias(token)
			gone[token] = true
			results = append(results, AliasOnly{Alias: token, Owner: owner.Version})
			continue
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
	}

	r.entries = work.entries
	return results, nil
}

// -----------------------------------------------------------------------------
// internals
// -----------------------------------------------------------------------------

func (r *Registry) byVersion(key string) *Info {
	for _, e := range r.entries {
		if e.Version.String() == key {
			return e
		}
	}
	return nil
}

func (r *Registry) aliasOwner(alias string) *Info {
	for _, e := range r.entries {
		if e.HasAlias(alias) {
			return e
		}
	}
	return nil
}

// checkAliases normalizes aliases for owner and rejects any that name a version.
func (r *Registry) checkAliases(owner string, aliases []string) ([]string, error) {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if err := validName(a); err != nil {
			return nil, fmt.Errorf("alias %w", err)
		}
		if a == owner || r.byVersion(a) != nil {
			return nil, fmt.Errorf("%w: alias %q is already a version", ErrInvalidArgument, a)
		}
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// assign moves aliases to entry and returns those it did not already hold.
func (r *Registry) assign(entry *Info, aliases []string) []string {
	var moved []string
	for _, a := range aliases {
		if entry.HasAlias(a) {
			continue
		}
		if prev := r.aliasOwner(a); prev != nil {
			prev.removeAlias(a)
		}
		entry.addAlias(a)
		moved = append(moved, a)
	}
	sort.Strings(moved)
	return moved
}

func (r *Registry) remove(key string) {
	r.entries = slices.DeleteFunc(r.entries, func(e *Info) bool { return e.Version.String() == key })
}

func (r *Registry) sort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Version.Compare(r.entries[j].Version) > 0
	})
}

func (r *Registry) clone() *Registry {
	c := &Registry{entries: make([]*Info, len(r.entries))}
	for i, e := range r.entries {
		c.entries[i] = e.clone()
	}
	return c
}
