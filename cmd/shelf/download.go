package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/config"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/tree"
)

var downloadCmd = &cobra.Command{
	Use:   "download URL|DIR",
	Short: "Mirror a work to disk",
	Long: `Download every page of a work that is not on disk yet.

The argument is either the URL of a work on a supported site or the
directory of a work downloaded before. Interrupted runs are resumed by
running the same command again.`,
	Example: `  shelf download https://mangadex.org/title/<id> -f "1:10"
  shelf download ~/Mangas/Title -r 50 -s 100`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := fetchOptions(cmd)
		cobra.CheckErr(err)

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		tui := !noTUI && isatty.IsTerminal(os.Stdout.Fd())

		var logs io.Writer
		if tui {
			logs = io.Discard
		}
		d, err := newDeps(cmd, logs)
		cobra.CheckErr(err)
		defer d.Close()

		if path, _ := cmd.Flags().GetString("path"); path != "" {
			d.cfg.Paths.DownloadDir, err = config.ExpandPath(path)
			cobra.CheckErr(err)
		}
		dl, err := downloadFlags(cmd, d.downloadOptions())
		cobra.CheckErr(err)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		run := func(ctx context.Context) (*services.Report, error) {
			manga, src, workDir, err := openWork(ctx, d, args[0], opts)
			if err != nil {
				return nil, err
			}
			dl.WorkDir = workDir
			return d.controller.Download(ctx, manga, src, dl)
		}

		var report *services.Report
		if tui {
			report, err = runWithProgress(ctx, d.bus, run)
		} else {
			logProgress(d)
			report, err = run(ctx)
		}
		if report != nil {
			printReport(report)
		}
		cobra.CheckErr(err)
	},
}

func init() {
	addFilterFlags(downloadCmd)
	downloadCmd.Flags().StringP("path", "p", "", "Download directory (default from config)")
	downloadCmd.Flags().IntP("batch-size", "s", -1, "Pages per sequential chunk, 0 for a single chunk (default from config)")
	downloadCmd.Flags().IntP("rate-limit", "r", 0, "Page fetches in flight at once (default from config)")
	downloadCmd.Flags().String("image-format", "", "Page file format: png, jpg or gif")
	downloadCmd.Flags().String("chapter-format", "", "Chapter directory template using {index}, {title} and {volume}")
	downloadCmd.Flags().Bool("skip-cover", false, "Do not download the cover")
	downloadCmd.Flags().Bool("no-tui", false, "Log progress instead of drawing it")
}

// downloadFlags overrides the configured defaults with the command flags.
func downloadFlags(cmd *cobra.Command, opts services.DownloadOptions) (services.DownloadOptions, error) {
	flags := cmd.Flags()
	if n, _ := flags.GetInt("batch-size"); n >= 0 {
		opts.Method = services.Chunked(n)
	}
	if n, _ := flags.GetInt("rate-limit"); n > 0 {
		opts.RateLimit = n
	}
	if f, _ := flags.GetString("image-format"); f != "" {
		if !tree.ValidImageFormat(f) {
			return opts, fmt.Errorf("unsupported image format %q", f)
		}
		opts.ImageFormat = f
	}
	if f, _ := flags.GetString("chapter-format"); f != "" {
		opts.ChapterFormat = f
	}
	opts.SkipCover, _ = flags.GetBool("skip-cover")
	return opts, nil
}

// logProgress reports chunk boundaries and skipped pages on the logger.
func logProgress(d *deps) {
	d.bus.OnFunc(services.EventFetchEnd, func(e services.Event) {
		d.logger.Info().Str("title", e.Title).Int("chapters", e.Chapters).Msg("work discovered")
	})
	d.bus.OnFunc(services.EventChunk, func(e services.Event) {
		d.logger.Info().Int("chunk", e.Chunk).Int("chunks", e.Chunks).Int("pages", e.ChunkSize).Msg("chunk started")
	})
	d.bus.OnFunc(services.EventPageErrorRejected, func(e services.Event) {
		d.logger.Warn().Str("url", e.URL).Int("attempt", e.Attempt).Err(e.Err).Msg("page skipped")
	})
}

func printReport(r *services.Report) {
	fmt.Printf("%s\n  %s\n", r.Title, r.Root)
	fmt.Printf("  %s pages, %s were missing: %s written, %s skipped in %s\n",
		humanize.Comma(int64(r.Expected)),
		humanize.Comma(int64(r.Missing)),
		humanize.Comma(int64(r.Written)),
		humanize.Comma(int64(r.Skipped)),
		r.Duration.Round(time.Millisecond),
	)
	if r.Skipped > 0 {
		fmt.Println("  Run the download again to retry the skipped pages.")
	}
}
