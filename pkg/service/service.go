// Package service implements the docs commands on top of a backend. Every
// mutating command opens a transaction, reads the registry from the tree it captured,
// changes it, and publishes the registry together with the affected site files as one commit.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/redirect"
	"docvault/pkg/sitefs"
	"docvault/pkg/treebuilder"
	"docvault/pkg/versions"
)

const (
	RegistryFile = "versions.json"
	MarkerFile   = ".nojekyll"
)

var (
	ErrInvalidArgument = versions.ErrInvalidArgument
	ErrNotFound        = versions.ErrNotFound
)

// Config carries what every command needs besides the backend.
type Config struct {
	Branch      string
	Author      backend.Signature
	Concurrency int

	// AppVersion appears in generated commit messages.
	AppVersion string

	// Fs is where build directories are read from. Defaults to the OS filesystem.
	Fs         afero.Fs
	IgnoreFile string
}

// Service runs docs commands against one branch.
type Service struct {
	be     backend.Backend
	cfg    Config
	logger *zap.Logger
}

func New(be backend.Backend, cfg Config, logger *zap.Logger) *Service {
	if cfg.Branch == "" {
		cfg.Branch = "gh-pages"
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{be: be, cfg: cfg, logger: logger.With(zap.String("branch", cfg.Branch))}
}

func (s *Service) Branch() string { return s.cfg.Branch }

// LoadRegistry reads the registry at the branch tip. A missing branch or document is empty.
func (s *Service) LoadRegistry(ctx context.Context) (*versions.Registry, error) {
	return decodeRegistry(backend.ReadFile(ctx, s.be, s.cfg.Branch, RegistryFile))
}

// loadRegistry reads the registry from the tree the transaction was opened on,
// so the commit's compare-and-swap covers the read.
func loadRegistry(ctx context.Context, tx *treebuilder.Transaction) (*versions.Registry, error) {
	return decodeRegistry(tx.ReadFile(ctx, RegistryFile))
}

func decodeRegistry(doc []byte, err error) (*versions.Registry, error) {
	if err != nil {
		if errors.Is(err, backend.ErrRefNotFound) || errors.Is(err, backend.ErrPathNotFound) {
			return versions.New(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", RegistryFile, err)
	}
	reg, err := versions.Load(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", RegistryFile, err)
	}
	return reg, nil
}

// literals turns directory names into exact-match deletion patterns.
func literals(dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = treebuilder.Literal(d)
	}
	return out
}

// open starts a transaction without a message; commands set it once the registry is read.
func (s *Service) open(ctx context.Context) (*treebuilder.Transaction, error) {
	return treebuilder.Open(ctx, s.be, s.cfg.Branch, "",
		treebuilder.WithLogger(s.logger),
		treebuilder.WithAuthor(s.cfg.Author),
		treebuilder.WithConcurrency(s.cfg.Concurrency),
	)
}

// stageRegistry stages the registry document and the marker file.
func stageRegistry(tx *treebuilder.Transaction, reg *versions.Registry) error {
	doc, err := reg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := tx.AddFile(RegistryFile, doc); err != nil {
		return err
	}
	return tx.AddFile(MarkerFile, nil)
}

// stageFile stages a file, keeping its executable bit.
func stageFile(tx *treebuilder.Transaction, f sitefs.File) error {
	if f.Executable {
		return tx.AddExecutable(f.Path, f.Data)
	}
	return tx.AddFile(f.Path, f.Data)
}

// stageAliases mirrors one canonical file into every alias directory.
// Documents become redirect stubs when gen is set; everything else is copied.
func stageAliases(tx *treebuilder.Transaction, gen *redirect.Generator, canonical sitefs.File, from string, aliases []string) error {
	for _, alias := range aliases {
		aliasFile := canonical.Rebase(from, alias)
		if gen != nil && redirect.IsDocument(aliasFile.Path) {
			stub, err := gen.Render(aliasFile.Path, canonical.Path)
			if err != nil {
				return err
			}
			aliasFile.Data = stub
			aliasFile.Executable = false
		}
		if err := stageFile(tx, aliasFile); err != nil {
			return err
		}
	}
	return nil
}

// message returns given, or the default built from format with the app version appended.
func (s *Service) message(given, format string, args ...any) string {
	if given != "" {
		return given
	}
	return fmt.Sprintf(format, append(args, s.cfg.AppVersion)...)
}

func (s *Service) commit(ctx context.Context, tx *treebuilder.Transaction, op string) (Result, error) {
	hash, err := tx.Commit(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info(op+" committed", zap.String("commit", hash.Short()))
	return Result{Commit: hash, Parent: tx.Parent()}, nil
}
