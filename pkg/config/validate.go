package config

import (
	"errors"
	"fmt"

	"github.com/kerbaras/shelf/pkg/tree"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownload() error {
	if c.Download.RateLimit < 1 {
		return errors.New("download.rate_limit must be at least 1")
	}
	if c.Download.BatchSize < 0 {
		return errors.New("download.batch_size must not be negative")
	}
	if !tree.ValidImageFormat(c.Download.ImageFormat) {
		return fmt.Errorf("download.image_format %q is not one of png, jpg, jpeg, gif", c.Download.ImageFormat)
	}
	if c.Download.RequestTimeout < 0 {
		return errors.New("download.request_timeout must not be negative")
	}
	if c.Download.MaxRetries < 0 {
		return errors.New("download.max_retries must not be negative")
	}
	if c.Download.RequestsPerSecond < 0 {
		return errors.New("download.requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}
