// Package config loads the shelf configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths holds where works and the library catalog live.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	LibraryDB   string `toml:"library_db"`
}

// Download tunes the download pipeline.
type Download struct {
	// RateLimit is the number of page fetches in flight at once.
	RateLimit int `toml:"rate_limit"`
	// BatchSize splits a download into sequential chunks. 0 downloads
	// everything in one chunk.
	BatchSize         int     `toml:"batch_size"`
	ImageFormat       string  `toml:"image_format"`
	ChapterFormat     string  `toml:"chapter_format"`
	RequestTimeout    int     `toml:"request_timeout"` // seconds, 0 = none
	MaxRetries        int     `toml:"max_retries"`     // 0 = retry forever
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UserAgent         string  `toml:"user_agent"`
	Proxy             string  `toml:"proxy"`
}

// Sources configures the built-in source adapters.
type Sources struct {
	Language    string `toml:"language"`
	MangaDexAPI string `toml:"mangadex_api"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Library configures the catalog of mirrored works.
type Library struct {
	Enabled bool `toml:"enabled"`
}

// Config is the whole shelf configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Download Download `toml:"download"`
	Sources  Sources  `toml:"sources"`
	Logging  Logging  `toml:"logging"`
	Library  Library  `toml:"library"`
}

// DefaultConfigPath returns the absolute path of the user configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelf/config.toml")
}

// Load locates, parses and validates a configuration file. A missing file
// is not an error: defaults are used. Environment variables override file
// values. It returns the config, the resolved path and whether the file
// existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadDotEnv()
	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// RequestTimeout is the per-request timeout, zero when unset.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Download.RequestTimeout) * time.Second
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("shelf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the config path rules (~ expansion, absolute) to p.
func ExpandPath(p string) (string, error) {
	return expandPath(p)
}
