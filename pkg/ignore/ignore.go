package ignore

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// DefaultFile is the per-site ignore file looked up at the build directory root.
const DefaultFile = ".docvaultignore"

// Matcher decides which build-directory files are left out of a deploy.
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher compiles the built-in rules plus the optional ignore file found at root/ignoreFile.
// An empty ignoreFile uses DefaultFile.
func NewMatcher(fsys afero.Fs, root, ignoreFile string) (*Matcher, error) {
	if ignoreFile == "" {
		ignoreFile = DefaultFile
	}

	// always enforced
	rules := []string{
		".git",
		".docvault",
		".env",
		".DS_Store",
		"Thumbs.db",
		"/" + strings.TrimPrefix(ignoreFile, "/"),
	}

	data, err := afero.ReadFile(fsys, path.Join(root, ignoreFile))
	switch {
	case err == nil:
		rules = append(rules, strings.Split(string(data), "\n")...)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", ignoreFile, err)
	}

	return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}, nil
}

// Matches reports whether a root-relative, slash-separated path should be skipped.
func (m *Matcher) Matches(p string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(p)
}
