package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/pkg/app"
	"docvault/pkg/backend"
	"docvault/pkg/backend/gitrepo"
	"docvault/pkg/versions"
)

// setupSite creates a git repository with a built site and makes it the working directory.
func setupSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	site := filepath.Join(dir, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("<h1>docs</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "css", "site.css"), []byte("body{}"), 0o644))
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "none"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_Lifecycle(t *testing.T) {
	dir := setupSite(t)

	out := mustRun(t, "deploy", "1.0", "latest")
	assert.Contains(t, out, "Done (2 files)")
	assert.Contains(t, out, "🔗 Aliases: latest")

	out = mustRun(t, "deploy", "2.0", "latest", "-u", "-m", "release 2.0")
	assert.Contains(t, out, "✅ [gh-pages ")

	assert.Equal(t, "2.0 [latest]\n1.0\n", mustRun(t, "list"))

	reg, err := versions.Load([]byte(mustRun(t, "list", "-o", "json")))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	assert.Contains(t, mustRun(t, "alias", "1.0", "old"), "🔗 old -> 1.0")
	mustRun(t, "retitle", "1.0", "Legacy")
	assert.Equal(t, "\"Legacy\" (1.0) [old]\n", mustRun(t, "list", "old"))

	assert.Contains(t, mustRun(t, "set-default", "latest"), "🏠 / -> latest/")

	log := mustRun(t, "log", "-n", "2")
	lines := strings.Split(strings.TrimSpace(log), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Set default version to latest")
	assert.Contains(t, mustRun(t, "log"), "release 2.0")

	outDir := filepath.Join(dir, "exported")
	assert.Contains(t, mustRun(t, "export", "latest", outDir), "Exported 2.0 (2 files)")
	data, err := os.ReadFile(filepath.Join(outDir, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	assert.Contains(t, mustRun(t, "delete", "old"), "Removed alias old from 1.0")
	out = mustRun(t, "delete", "1.0")
	assert.Contains(t, out, "Removed version 1.0")

	mustRun(t, "delete", "--all")
	assert.Equal(t, "No versions deployed yet.\n", mustRun(t, "list"))

	// the working copy is untouched
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	_, err = repo.Head()
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	_, err = repo.Reference(plumbing.NewBranchReferenceName("gh-pages"), true)
	assert.NoError(t, err)
}

func readBranch(t *testing.T, dir, branch, p string) string {
	t.Helper()
	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	data, err := backend.ReadFile(context.Background(), repo, branch, p)
	require.NoError(t, err)
	return string(data)
}

func TestCLI_RedirectFlags(t *testing.T) {
	dir := setupSite(t)

	mustRun(t, "deploy", "1.0", "latest", "--no-redirect")
	assert.Equal(t, "<h1>docs</h1>", readBranch(t, dir, "gh-pages", "latest/index.html"))

	mustRun(t, "deploy", "1.0", "latest")
	page := readBranch(t, dir, "gh-pages", "latest/index.html")
	assert.Contains(t, page, "../1.0/")
	assert.Equal(t, "body{}", readBranch(t, dir, "gh-pages", "latest/css/site.css"))

	tmpl := filepath.Join(dir, "redirect.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte(`go to {{.Href}}`), 0o644))
	mustRun(t, "set-default", "1.0", "-T", tmpl)
	assert.Equal(t, "go to 1.0/", readBranch(t, dir, "gh-pages", "index.html"))
}

func TestCLI_Errors(t *testing.T) {
	setupSite(t)

	_, err := run(t, "deploy", "1.0", "-d", "missing")
	assert.ErrorContains(t, err, "deploy failed")

	_, err = run(t, "alias", "9.9", "latest")
	assert.ErrorIs(t, err, versions.ErrNotFound)

	_, err = run(t, "delete")
	assert.ErrorIs(t, err, versions.ErrInvalidArgument)

	_, err = run(t, "delete", "--all", "1.0")
	assert.ErrorContains(t, err, "--all cannot be combined")

	_, err = run(t, "deploy", "1.0", "--redirect", "--no-redirect")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = run(t, "list", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = run(t, "--backend", "svn", "list")
	assert.ErrorContains(t, err, "unsupported backend type")
}

func TestCLI_TemplateFlag(t *testing.T) {
	c := &cli{app: &app.App{Template: []byte("configured")}}

	bare := &cobra.Command{Use: "bare"}
	_, err := c.template(bare)
	assert.ErrorContains(t, err, "template", "a command without the flag is an error, not the default")

	cmd := &cobra.Command{Use: "deploy"}
	addRedirectFlags(cmd)
	got, err := c.template(cmd)
	require.NoError(t, err)
	assert.Equal(t, "configured", string(got))

	require.NoError(t, cmd.Flags().Set("template", filepath.Join(t.TempDir(), "missing.tmpl")))
	_, err = c.template(cmd)
	assert.ErrorContains(t, err, "failed to read redirect template")
}

func TestCLI_EmptyBranch(t *testing.T) {
	setupSite(t)
	assert.Equal(t, "No versions deployed yet.\n", mustRun(t, "list"))
	assert.Equal(t, "No commits yet.\n", mustRun(t, "log"))
	assert.Equal(t, "[]\n", mustRun(t, "list", "-o", "json"))
}

func TestCLI_Branch(t *testing.T) {
	setupSite(t)
	mustRun(t, "--branch", "docs", "deploy", "1.0")
	assert.Equal(t, "No versions deployed yet.\n", mustRun(t, "list"))
	assert.Equal(t, "1.0\n", mustRun(t, "-b", "docs", "list"))
}
