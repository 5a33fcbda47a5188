// Package exporter gets deployed docs back out of a branch: as files on disk,
// or as listings of versions and history for the CLI.
package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"docvault/pkg/backend"
	"docvault/pkg/sitefs"
)

type Exporter struct {
	be     backend.Backend
	branch string
	fs     afero.Fs
}

// NewExporter writes to fsys, the OS filesystem when nil.
func NewExporter(be backend.Backend, branch string, fsys afero.Fs) *Exporter {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Exporter{be: be, branch: branch, fs: fsys}
}

type RestoreCallback func(path string, size int64)

// RestoreDir copies every file below dir on the branch tip into targetDir, keeping
// the layout relative to dir. Existing files are overwritten. It returns the file count.
func (e *Exporter) RestoreDir(ctx context.Context, dir, targetDir string, onRestore RestoreCallback) (int, error) {
	n := 0
	for f, err := range sitefs.WalkBranch(ctx, e.be, e.branch, dir) {
		if err != nil {
			return n, fmt.Errorf("failed to read %s from %s: %w", dir, e.branch, err)
		}
		rel := f.Rebase(dir, "")
		fullPath := filepath.Join(targetDir, filepath.FromSlash(rel.Path))

		if err := e.fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return n, fmt.Errorf("failed to create dir for %s: %w", fullPath, err)
		}
		perm := os.FileMode(0o644)
		if f.Executable {
			perm = 0o755
		}
		if err := afero.WriteFile(e.fs, fullPath, f.Data, perm); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", fullPath, err)
		}
		n++
		if onRestore != nil {
			onRestore(rel.Path, int64(len(f.Data)))
		}
	}
	return n, nil
}
