package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/app"
	"github.com/kerbaras/shelf/pkg/app/screens"
	"github.com/kerbaras/shelf/pkg/integrations"
)

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "A resumable manga mirror",
	Long: `Mirror manga from supported sites into a plain directory tree.

Runs can be interrupted at any time: running the same download again, or
pointing it at the work directory, fetches only the pages still missing.
Without a subcommand shelf opens the library browser.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// the browser owns the terminal
		d, err := newDeps(cmd, io.Discard)
		cobra.CheckErr(err)
		defer d.Close()

		a := app.NewApp(&screens.Env{
			Controller: d.controller,
			Exporter:   d.exporter(d.cfg.Paths.DownloadDir),
			Merge:      integrations.MergeWork,
			Download:   d.downloadOptions(),
		})
		cobra.CheckErr(a.Run())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default ~/.config/shelf/config.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn or error")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
