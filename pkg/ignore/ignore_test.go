package ignore

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	matcher, err := NewMatcher(fsys, "site", "")
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".git", true},
		{".git/HEAD", true},
		{".docvault/objects/aa", true},
		{".DS_Store", true},
		{"img/.DS_Store", true},
		{".docvaultignore", true},
		{"index.html", false},
		{"assets/app.js", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := `
# build leftovers
*.map
tmp
!keep.map
`
	require.NoError(t, afero.WriteFile(fsys, "site/.docvaultignore", []byte(content), 0644))

	matcher, err := NewMatcher(fsys, "site", "")
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".git", true},
		{"app.js.map", true},
		{"js/app.js.map", true},
		{"tmp", true},
		{"tmp/file", true},
		{"index.html", false},
		{"keep.map", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "path: %s", tt.path)
		})
	}
}

func TestMatcher_CustomFileName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "out/.publishignore", []byte("drafts/\n"), 0644))

	matcher, err := NewMatcher(fsys, "out", ".publishignore")
	require.NoError(t, err)
	assert.True(t, matcher.Matches("drafts/post.html"))
	assert.True(t, matcher.Matches(".publishignore"))
	assert.False(t, matcher.Matches(".docvaultignore"))
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}
