package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// applyEnv overrides file values with SHELF_* environment variables.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"SHELF_DOWNLOAD_DIR":   &c.Paths.DownloadDir,
		"SHELF_LIBRARY_DB":     &c.Paths.LibraryDB,
		"SHELF_IMAGE_FORMAT":   &c.Download.ImageFormat,
		"SHELF_CHAPTER_FORMAT": &c.Download.ChapterFormat,
		"SHELF_USER_AGENT":     &c.Download.UserAgent,
		"SHELF_PROXY":          &c.Download.Proxy,
		"SHELF_LANGUAGE":       &c.Sources.Language,
		"SHELF_MANGADEX_API":   &c.Sources.MangaDexAPI,
		"SHELF_LOG_LEVEL":      &c.Logging.Level,
		"SHELF_LOG_FORMAT":     &c.Logging.Format,
	}
	for key, dst := range strs {
		if value, ok := lookup(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"SHELF_RATE_LIMIT":      &c.Download.RateLimit,
		"SHELF_BATCH_SIZE":      &c.Download.BatchSize,
		"SHELF_REQUEST_TIMEOUT": &c.Download.RequestTimeout,
		"SHELF_MAX_RETRIES":     &c.Download.MaxRetries,
	}
	for key, dst := range ints {
		value, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if value, ok := lookup("SHELF_REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("SHELF_REQUESTS_PER_SECOND: %w", err)
		}
		c.Download.RequestsPerSecond = f
	}
	if value, ok := lookup("SHELF_LIBRARY"); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("SHELF_LIBRARY: %w", err)
		}
		c.Library.Enabled = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}
