package service

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"docvault/pkg/backend"
	"docvault/pkg/backend/gitrepo"
	"docvault/pkg/versions"
)

type testEnv struct {
	be  *gitrepo.Repository
	fs  afero.Fs
	svc *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	be := gitrepo.NewMemory()
	fsys := afero.NewMemMapFs()
	svc := New(be, Config{
		Branch:      "gh-pages",
		Author:      backend.Signature{Name: "Docs Bot", Email: "docs@example.com"},
		Concurrency: 4,
		AppVersion:  "1.2.3",
		Fs:          fsys,
	}, nil)
	return &testEnv{be: be, fs: fsys, svc: svc}
}

// writeSite replaces the build directory with files (path -> content).
func (e *testEnv) writeSite(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, e.fs.RemoveAll(dir))
	for p, content := range files {
		require.NoError(t, afero.WriteFile(e.fs, dir+"/"+p, []byte(content), 0644))
	}
}

func (e *testEnv) files(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()
	out := map[string]string{}
	for f, err := range backend.Walk(ctx, e.be, "gh-pages", "") {
		require.NoError(t, err)
		data, err := backend.ReadAll(ctx, e.be, f.Hash)
		require.NoError(t, err)
		out[f.Path] = string(data)
	}
	return out
}

func (e *testEnv) registry(t *testing.T) *versions.Registry {
	t.Helper()
	reg, err := e.svc.LoadRegistry(context.Background())
	require.NoError(t, err)
	return reg
}

func (e *testEnv) mustDeploy(t *testing.T, req DeployRequest) *DeployResult {
	t.Helper()
	res, err := e.svc.Deploy(context.Background(), req)
	require.NoError(t, err)
	return res
}

func aliasesOf(t *testing.T, reg *versions.Registry, id string) []string {
	t.Helper()
	info, ok := reg.Get(id)
	require.True(t, ok, "version %s missing", id)
	return info.Aliases
}

func pathsUnder(files map[string]string, dir string) []string {
	var out []string
	for p := range files {
		if len(p) > len(dir) && p[:len(dir)+1] == dir+"/" {
			out = append(out, p)
		}
	}
	return out
}
