package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeSources()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if strings.TrimSpace(c.Paths.LibraryDB) == "" {
		c.Paths.LibraryDB = defaultLibraryDB
	}
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LibraryDB, err = expandPath(c.Paths.LibraryDB); err != nil {
		return fmt.Errorf("paths.library_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	if c.Download.RateLimit == 0 {
		c.Download.RateLimit = defaultRateLimit
	}
	c.Download.ImageFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Download.ImageFormat), "."))
	if c.Download.ImageFormat == "" {
		c.Download.ImageFormat = defaultImageFormat
	}
	if strings.TrimSpace(c.Download.ChapterFormat) == "" {
		c.Download.ChapterFormat = defaultChapterFormat
	}
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	c.Download.Proxy = strings.TrimSpace(c.Download.Proxy)
}

func (c *Config) normalizeSources() {
	c.Sources.Language = strings.TrimSpace(c.Sources.Language)
	if c.Sources.Language == "" {
		c.Sources.Language = defaultLanguage
	}
	c.Sources.MangaDexAPI = strings.TrimRight(strings.TrimSpace(c.Sources.MangaDexAPI), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
