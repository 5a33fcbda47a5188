// Package sitefs produces the files of a documentation site as lazy sequences,
// either from a local build directory or from a directory of a branch.
package sitefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"docvault/pkg/backend"
	"docvault/pkg/ignore"
)

// File is one site file. Path is slash-separated and relative to the branch root
// (or to the build directory root for WalkDir).
type File struct {
	Path string
	Data []byte

	Executable bool
}

// Rebase moves the file from directory from to directory to: "1.0/a/b.html" rebased
// from "1.0" to "latest" is "latest/a/b.html". An empty from means the root.
func (f File) Rebase(from, to string) File {
	rel := f.Path
	if from != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(f.Path, strings.Trim(from, "/")), "/")
	}
	out := f
	out.Path = path.Join(strings.Trim(to, "/"), rel)
	return out
}

// WalkDir yields every regular file under root on fsys, skipping what matcher ignores.
// Files are read one at a time as the sequence is consumed.
func WalkDir(fsys afero.Fs, root string, matcher *ignore.Matcher) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		info, err := fsys.Stat(root)
		if err != nil {
			yield(File{}, fmt.Errorf("failed to open site directory: %w", err))
			return
		}
		if !info.IsDir() {
			yield(File{}, fmt.Errorf("site directory %s is not a directory", root))
			return
		}

		stop := errors.New("walk stopped")
		err = afero.Walk(fsys, root, func(p string, fi fs.FileInfo, walkErr error) error {
			if walkErr != nil {
				if !yield(File{}, walkErr) {
					return stop
				}
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			if matcher.Matches(rel) {
				if fi.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !fi.Mode().IsRegular() {
				return nil
			}

			data, err := afero.ReadFile(fsys, p)
			if err != nil {
				if !yield(File{}, fmt.Errorf("failed to read %s: %w", rel, err)) {
					return stop
				}
				return nil
			}
			if !yield(File{Path: rel, Data: data, Executable: fi.Mode()&0o111 != 0}, nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield(File{}, err)
		}
	}
}

// WalkBranch yields every file below dir at the current tip of branch.
// Subtrees and blobs are read only as the sequence reaches them.
func WalkBranch(ctx context.Context, be backend.Backend, branch, dir string) iter.Seq2[File, error] {
	return Load(ctx, be, backend.Walk(ctx, be, branch, dir))
}

// Load reads the blob behind each walked entry.
func Load(ctx context.Context, be backend.Backend, entries iter.Seq2[backend.FileEntry, error]) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		for entry, err := range entries {
			if err != nil {
				yield(File{}, err)
				return
			}
			data, err := backend.ReadAll(ctx, be, entry.Hash)
			if err != nil {
				yield(File{}, fmt.Errorf("failed to read %s: %w", entry.Path, err))
				return
			}
			if !yield(File{Path: entry.Path, Data: data, Executable: entry.Mode == backend.ModeExecutable}, nil) {
				return
			}
		}
	}
}
