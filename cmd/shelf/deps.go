package cmd

import (
	"fmt"
	"io"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/config"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/logging"
	"github.com/kerbaras/shelf/pkg/network"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/sources"
)

// deps is everything a command needs, built from the configuration.
type deps struct {
	cfg        *config.Config
	logger     *log.Logger
	bus        *services.Bus
	repo       *data.Repository
	controller *services.MangaController
}

// newDeps loads the configuration and wires the pipeline. Logs go to out,
// or stderr when nil.
func newDeps(cmd *cobra.Command, out io.Writer) (*deps, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: out,
	})
	logger.Debug().Str("config", resolved).Bool("exists", exists).Msg("configuration loaded")

	factory, err := network.NewFactory(network.Options{
		Proxy:     cfg.Download.Proxy,
		UserAgent: cfg.Download.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg, logger: logger, bus: services.NewBus(logger)}
	var repo services.Repository
	if cfg.Library.Enabled {
		d.repo, err = data.NewDuckDBRepository(cfg.Paths.LibraryDB)
		if err != nil {
			return nil, fmt.Errorf("open library: %w", err)
		}
		repo = d.repo
	}

	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Download.MaxRetries
	d.controller = services.NewMangaController(services.ControllerOptions{
		Registry: sources.DefaultRegistry(sources.Options{
			Language:    cfg.Sources.Language,
			MangaDexAPI: cfg.Sources.MangaDexAPI,
		}),
		Sessions:          factory.Session,
		Repo:              repo,
		Bus:               d.bus,
		Logger:            logger,
		Retry:             &retry,
		RequestsPerSecond: cfg.Download.RequestsPerSecond,
	})
	return d, nil
}

func (d *deps) Close() {
	if d.repo != nil {
		if err := d.repo.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("close library")
		}
	}
}

// downloadOptions are the configured defaults of a download run.
func (d *deps) downloadOptions() services.DownloadOptions {
	dl := d.cfg.Download
	return services.DownloadOptions{
		Root:          d.cfg.Paths.DownloadDir,
		Method:        services.Chunked(dl.BatchSize),
		RateLimit:     dl.RateLimit,
		ChapterFormat: dl.ChapterFormat,
		ImageFormat:   dl.ImageFormat,
	}
}

func (d *deps) exporter(outputDir string) *integrations.EPubBuilder {
	return integrations.NewEPubBuilder(outputDir, d.logger)
}
