package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/shelf"
	"github.com/kerbaras/shelf/pkg/sources"
	"github.com/kerbaras/shelf/pkg/tree"
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("filter", "f", "", `Keep only matching chapters, e.g. "1:10 V[2]"`)
	cmd.Flags().StringP("ignore", "i", "", "Drop matching chapters")
}

// fetchOptions compiles the --filter and --ignore expressions.
func fetchOptions(cmd *cobra.Command) (services.FetchOptions, error) {
	var opts services.FetchOptions
	var err error
	if expr, _ := cmd.Flags().GetString("filter"); expr != "" {
		if opts.Include, err = shelf.Parse(expr); err != nil {
			return opts, fmt.Errorf("--filter: %w", err)
		}
	}
	if expr, _ := cmd.Flags().GetString("ignore"); expr != "" {
		if opts.Exclude, err = shelf.Parse(expr); err != nil {
			return opts, fmt.Errorf("--ignore: %w", err)
		}
	}
	return opts, nil
}

// openWork resolves a handle that is either a work URL or the directory of
// a mirrored work. workDir is that directory, or empty for a URL.
func openWork(ctx context.Context, d *deps, handle string, opts services.FetchOptions) (manga *data.Manga, src sources.Source, workDir string, err error) {
	if tree.IsWorkRoot(handle) {
		manga, src, err = d.controller.Resume(handle, opts)
		return manga, src, handle, err
	}
	manga, src, err = d.controller.Fetch(ctx, handle, opts)
	return manga, src, "", err
}
