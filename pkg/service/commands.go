package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/ignore"
	"docvault/pkg/redirect"
	"docvault/pkg/sitefs"
	"docvault/pkg/types"
	"docvault/pkg/versions"
)

// Result describes the commit a command produced.
type Result struct {
	Commit types.Hash
	Parent types.Hash
}

// -----------------------------------------------------------------------------
// deploy
// -----------------------------------------------------------------------------

type DeployRequest struct {
	SiteDir       string
	Version       string
	Title         string
	Aliases       []string
	UpdateAliases bool

	// Redirect makes alias documents redirect stubs instead of copies.
	Redirect bool
	// Template overrides the built-in redirect template.
	Template []byte

	Message          string
	GeneratorVersion string
}

type DeployResult struct {
	Result
	Info  versions.Info
	Files int
}

// Deploy publishes a build directory as Version and refreshes its alias directories.
func (s *Service) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	if req.SiteDir == "" {
		return nil, fmt.Errorf("%w: site directory is required", ErrInvalidArgument)
	}

	tx, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	info, err := reg.Add(req.Version, req.Title, req.Aliases, req.UpdateAliases)
	if err != nil {
		return nil, err
	}
	version := info.Version.String()

	var gen *redirect.Generator
	if req.Redirect && len(info.Aliases) > 0 {
		if gen, err = redirect.New(req.Template); err != nil {
			return nil, err
		}
	}
	matcher, err := ignore.NewMatcher(s.cfg.Fs, req.SiteDir, s.cfg.IgnoreFile)
	if err != nil {
		return nil, err
	}

	generator := "unknown generator"
	if req.GeneratorVersion != "" {
		generator = req.GeneratorVersion
	}
	if err := tx.SetMessage(s.message(req.Message, "Deployed %s with %s and docvault %s", version, generator)); err != nil {
		return nil, err
	}

	// 1. clear the version and alias directories
	if err := tx.DeleteFiles(literals(info.Dirs())...); err != nil {
		return nil, err
	}

	// 2. build output, mirrored into every alias
	files := 0
	for f, err := range sitefs.WalkDir(s.cfg.Fs, req.SiteDir, matcher) {
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", req.SiteDir, err)
		}
		canonical := f.Rebase("", version)
		if err := stageFile(tx, canonical); err != nil {
			return nil, err
		}
		if err := stageAliases(tx, gen, canonical, version, info.Aliases); err != nil {
			return nil, err
		}
		files++
	}
	if files == 0 {
		s.logger.Warn("site directory is empty", zap.String("dir", req.SiteDir))
	}

	// 3. registry
	if err := stageRegistry(tx, reg); err != nil {
		return nil, err
	}

	res, err := s.commit(ctx, tx, "deploy")
	if err != nil {
		return nil, err
	}
	s.logger.Info("deployed",
		zap.String("version", version),
		zap.Strings("aliases", info.Aliases),
		zap.Int("files", files),
	)
	return &DeployResult{Result: res, Info: *info, Files: files}, nil
}

// -----------------------------------------------------------------------------
// delete
// -----------------------------------------------------------------------------

type DeleteRequest struct {
	Versions []string
	All      bool
	Message  string
}

type DeleteResult struct {
	Result
	Removed []versions.DeletionResult
}

// Delete removes versions or aliases, or with All the whole site.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	if !req.All && len(req.Versions) == 0 {
		return nil, fmt.Errorf("%w: specify versions to delete or all", ErrInvalidArgument)
	}

	if req.All {
		tx, err := s.open(ctx)
		if err != nil {
			return nil, err
		}
		if err := tx.SetMessage(s.message(req.Message, "Removed everything with docvault %s")); err != nil {
			return nil, err
		}
		if err := tx.DeleteFiles("*"); err != nil {
			return nil, err
		}
		res, err := s.commit(ctx, tx, "delete")
		if err != nil {
			return nil, err
		}
		return &DeleteResult{Result: res}, nil
	}

	tx, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	removed, err := reg.DifferenceUpdate(req.Versions)
	if err != nil {
		return nil, err
	}
	if err := tx.SetMessage(s.message(req.Message, "Removed %s with docvault %s", strings.Join(req.Versions, ", "))); err != nil {
		return nil, err
	}
	for _, r := range removed {
		if err := tx.DeleteFiles(literals(r.Dirs())...); err != nil {
			return nil, err
		}
	}
	if err := stageRegistry(tx, reg); err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, tx, "delete")
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Result: res, Removed: removed}, nil
}

// -----------------------------------------------------------------------------
// alias
// -----------------------------------------------------------------------------

type AliasRequest struct {
	Version  string
	Aliases  []string
	Redirect bool
	Template []byte
	Message  string
}

type AliasResult struct {
	Result
	Version string
	// Moved lists the alias directories that were rewritten.
	Moved []string
}

// Alias points aliases at an existing version, copying its files from the branch.
func (s *Service) Alias(ctx context.Context, req AliasRequest) (*AliasResult, error) {
	if len(req.Aliases) == 0 {
		return nil, fmt.Errorf("%w: at least one alias is required", ErrInvalidArgument)
	}
	tx, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	info, err := reg.Find(req.Version, true)
	if err != nil {
		return nil, err
	}
	version := info.Version.String()

	moved, err := reg.Update(version, nil, req.Aliases)
	if err != nil {
		return nil, err
	}

	var gen *redirect.Generator
	if req.Redirect && len(moved) > 0 {
		if gen, err = redirect.New(req.Template); err != nil {
			return nil, err
		}
	}

	if err := tx.SetMessage(s.message(req.Message, "Copied %s to %s with docvault %s", version, strings.Join(req.Aliases, ", "))); err != nil {
		return nil, err
	}
	if len(moved) > 0 {
		if err := tx.DeleteFiles(literals(moved)...); err != nil {
			return nil, err
		}
		// copy from the captured tree, the same one the registry came from
		for f, err := range sitefs.Load(ctx, s.be, tx.Walk(ctx, version)) {
			if err != nil {
				return nil, fmt.Errorf("failed to read %s from %s: %w", version, s.cfg.Branch, err)
			}
			if err := stageAliases(tx, gen, f, version, moved); err != nil {
				return nil, err
			}
		}
	}
	if err := stageRegistry(tx, reg); err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, tx, "alias")
	if err != nil {
		return nil, err
	}
	return &AliasResult{Result: res, Version: version, Moved: moved}, nil
}

// -----------------------------------------------------------------------------
// retitle / set-default
// -----------------------------------------------------------------------------

// Retitle changes the display title of a version.
func (s *Service) Retitle(ctx context.Context, version, title, message string) (*Result, error) {
	tx, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := reg.Update(version, &title, nil); err != nil {
		return nil, err
	}
	if err := tx.SetMessage(s.message(message, "Set title of %s to %s with docvault %s", version, title)); err != nil {
		return nil, err
	}
	if err := stageRegistry(tx, reg); err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, tx, "retitle")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SetDefault writes a root index.html that redirects to version (or alias).
func (s *Service) SetDefault(ctx context.Context, version string, template []byte, message string) (*Result, error) {
	tx, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := reg.Find(version, false); err != nil {
		return nil, err
	}
	gen, err := redirect.New(template)
	if err != nil {
		return nil, err
	}
	page, err := gen.RenderHref(strings.TrimSpace(version) + "/")
	if err != nil {
		return nil, err
	}

	if err := tx.SetMessage(s.message(message, "Set default version to %s with docvault %s", version)); err != nil {
		return nil, err
	}
	if err := tx.AddFile("index.html", page); err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, tx, "set-default")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// -----------------------------------------------------------------------------
// read-only
// -----------------------------------------------------------------------------

// List returns the deployed versions, newest first.
func (s *Service) List(ctx context.Context) ([]versions.Info, error) {
	reg, err := s.LoadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.List(), nil
}

// Lookup finds a version by identifier or alias.
func (s *Service) Lookup(ctx context.Context, token string) (*versions.Info, error) {
	reg, err := s.LoadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Find(token, false)
}

// Log walks first parents from the branch tip, newest first. limit <= 0 means all.
func (s *Service) Log(ctx context.Context, limit int) ([]backend.CommitInfo, error) {
	current, err := s.be.ResolveRef(ctx, s.cfg.Branch)
	if err != nil {
		if errors.Is(err, backend.ErrRefNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var out []backend.CommitInfo
	for !current.IsZero() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := s.be.ReadCommit(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", current.Short(), err)
		}
		out = append(out, *info)
		current = ""
		if len(info.Parents) > 0 {
			current = info.Parents[0]
		}
	}
	return out, nil
}
