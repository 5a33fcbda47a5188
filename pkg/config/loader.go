// Package config loads docvault settings through viper.
//
// Precedence, highest first: bound flags, DOCVAULT_* environment variables,
// config.yaml, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "DOCVAULT"

// Keys
const (
	KeyBranch      = "branch"
	KeyBackendType = "backend.type"
	KeyGitPath     = "git.path"

	KeyStorageType = "vault.storage.type"
	KeyStoragePath = "vault.storage.path"
	KeyS3Endpoint  = "vault.s3.endpoint"
	KeyS3Region    = "vault.s3.region"
	KeyS3Bucket    = "vault.s3.bucket"
	KeyS3AccessKey = "vault.s3.access_key"
	KeyS3SecretKey = "vault.s3.secret_key"
	KeyRedisURL    = "vault.cache.redis_url"
	KeyCacheTTL    = "vault.cache.ttl"
	KeyRefsDriver  = "vault.refs.driver"
	KeyRefsDSN     = "vault.refs.dsn"
	KeyDBHost      = "vault.database.host"
	KeyDBPort      = "vault.database.port"
	KeyDBUser      = "vault.database.user"
	KeyDBPassword  = "vault.database.password"
	KeyDBName      = "vault.database.dbname"
	KeyDBSSLMode   = "vault.database.sslmode"

	KeyUserName         = "user.name"
	KeyUserEmail        = "user.email"
	KeyRedirectEnabled  = "redirect.enabled"
	KeyRedirectTemplate = "redirect.template"
	KeyServerAddr       = "server.addr"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyConcurrency      = "deploy.concurrency"
	KeyIgnoreFile       = "deploy.ignore_file"
)

// Load sets defaults, then reads cfgFile, or config.yaml from ., .docvault and
// $HOME/.docvault in that order. A missing config file is not an error.
func Load(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(".docvault")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".docvault"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// vault.cache.redis_url -> DOCVAULT_VAULT_CACHE_REDIS_URL
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

// Used is the config file that was read, or "" when running on defaults and env.
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	viper.SetDefault(KeyBranch, "gh-pages")
	viper.SetDefault(KeyBackendType, "git")
	viper.SetDefault(KeyGitPath, ".")

	viper.SetDefault(KeyStorageType, "disk")
	viper.SetDefault(KeyStoragePath, filepath.Join(".docvault", "objects"))
	viper.SetDefault(KeyS3Region, "us-east-1")
	viper.SetDefault(KeyCacheTTL, 24*time.Hour)
	viper.SetDefault(KeyRefsDriver, "sqlite")
	viper.SetDefault(KeyRefsDSN, filepath.Join(".docvault", "refs.db"))
	viper.SetDefault(KeyDBHost, "localhost")
	viper.SetDefault(KeyDBPort, 5432)
	viper.SetDefault(KeyDBSSLMode, "disable")

	viper.SetDefault(KeyUserName, "docvault")
	viper.SetDefault(KeyUserEmail, "docvault@localhost")
	viper.SetDefault(KeyRedirectEnabled, true)
	viper.SetDefault(KeyServerAddr, "localhost:8000")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "console")
	viper.SetDefault(KeyConcurrency, 8)
	viper.SetDefault(KeyIgnoreFile, ".docvaultignore")
}
