// Package app wires configuration into a ready-to-use backend and service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"docvault/pkg/backend"
	"docvault/pkg/backend/gitrepo"
	"docvault/pkg/backend/vault"
	"docvault/pkg/config"
	"docvault/pkg/meta"
	"docvault/pkg/service"
	"docvault/pkg/storage"
	"docvault/pkg/storage/cache"
	"docvault/pkg/storage/disk"
	"docvault/pkg/storage/s3"
)

// Version is stamped into commit messages. Overridden at build time with -ldflags.
var Version = "dev"

// App is the dependency container shared by the CLI commands.
type App struct {
	Backend backend.Backend
	Service *service.Service
	Logger  *zap.Logger

	// Template is the custom redirect template, nil for the built-in one.
	Template []byte
	// Redirect is the configured default for alias redirects.
	Redirect bool

	closers []func() error
}

// NewApp builds everything from the current viper settings.
func NewApp(ctx context.Context, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger, Redirect: viper.GetBool(config.KeyRedirectEnabled)}

	be, err := a.initBackend(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Backend = be

	if p := viper.GetString(config.KeyRedirectTemplate); p != "" {
		if a.Template, err = os.ReadFile(p); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to read redirect template: %w", err)
		}
	}

	a.Service = service.New(be, service.Config{
		Branch: viper.GetString(config.KeyBranch),
		Author: backend.Signature{
			Name:  viper.GetString(config.KeyUserName),
			Email: viper.GetString(config.KeyUserEmail),
		},
		Concurrency: viper.GetInt(config.KeyConcurrency),
		AppVersion:  Version,
		IgnoreFile:  viper.GetString(config.KeyIgnoreFile),
	}, logger)
	return a, nil
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) initBackend(ctx context.Context) (backend.Backend, error) {
	switch t := viper.GetString(config.KeyBackendType); t {
	case "git", "":
		path := viper.GetString(config.KeyGitPath)
		repo, err := gitrepo.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open git repository at %s: %w", path, err)
		}
		a.Logger.Debug("using git backend", zap.String("path", path))
		return repo, nil

	case "vault":
		store, err := a.initStore(ctx)
		if err != nil {
			return nil, err
		}
		repo, err := a.initMeta(ctx)
		if err != nil {
			return nil, err
		}
		a.Logger.Debug("using vault backend", zap.String("storage", viper.GetString(config.KeyStorageType)))
		return vault.New(store, repo, a.Logger), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", t)
	}
}

// initStore picks disk or s3 and optionally puts the redis existence cache in front.
func (a *App) initStore(ctx context.Context) (storage.Store, error) {
	var store storage.Store
	switch t := viper.GetString(config.KeyStorageType); t {
	case "disk", "":
		path := viper.GetString(config.KeyStoragePath)
		if path == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		d, err := disk.NewAdapter(path)
		if err != nil {
			return nil, fmt.Errorf("failed to init storage: %w", err)
		}
		store = d

	case "s3":
		s, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString(config.KeyS3Endpoint),
			Region:          viper.GetString(config.KeyS3Region),
			Bucket:          viper.GetString(config.KeyS3Bucket),
			AccessKeyID:     viper.GetString(config.KeyS3AccessKey),
			SecretAccessKey: viper.GetString(config.KeyS3SecretKey),
			Logger:          a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		store = s

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}

	if url := viper.GetString(config.KeyRedisURL); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration(config.KeyCacheTTL),
			Logger:   a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
		a.closers = append(a.closers, cached.Close)
		store = cached
	}
	return store, nil
}

func (a *App) initMeta(ctx context.Context) (*meta.Repository, error) {
	cfg := meta.Config{
		Driver:   viper.GetString(config.KeyRefsDriver),
		DSN:      viper.GetString(config.KeyRefsDSN),
		Host:     viper.GetString(config.KeyDBHost),
		Port:     viper.GetInt(config.KeyDBPort),
		User:     viper.GetString(config.KeyDBUser),
		Password: viper.GetString(config.KeyDBPassword),
		DBName:   viper.GetString(config.KeyDBName),
		SSLMode:  viper.GetString(config.KeyDBSSLMode),
		Verbose:  viper.GetString(config.KeyLogLevel) == "debug",
	}
	if cfg.Driver == "sqlite" && isFilePath(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create refs directory: %w", err)
		}
	}
	db, err := meta.NewDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init refs database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return meta.NewRepository(db), nil
}

func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}
