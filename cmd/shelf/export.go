package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/config"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/tree"
)

var exportCmd = &cobra.Command{
	Use:   "export DIR",
	Short: "Pack a mirrored work into EPUB files",
	Long: `Build EPUB books from the pages of a mirrored work found on disk.

With --merge work the whole work becomes one book. With --merge volume
every volume gets its own book and chapters without a volume share one.`,
	Example: `  shelf export ~/Mangas/Title --merge volume -o ~/Books`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mergeName, _ := cmd.Flags().GetString("merge")
		merge, err := integrations.ParseMerge(mergeName)
		cobra.CheckErr(err)

		d, err := newDeps(cmd, nil)
		cobra.CheckErr(err)
		defer d.Close()

		t, err := tree.Open(args[0],
			tree.WithChapterFormat(d.cfg.Download.ChapterFormat),
			tree.WithImageFormat(d.cfg.Download.ImageFormat),
		)
		cobra.CheckErr(err)

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = filepath.Dir(t.Root())
		}
		output, err = config.ExpandPath(output)
		cobra.CheckErr(err)

		paths, err := d.exporter(output).Export(t, merge)
		cobra.CheckErr(err)
		for _, p := range paths {
			fmt.Println(p)
		}
	},
}

func init() {
	exportCmd.Flags().String("merge", "work", "One book per: work or volume")
	exportCmd.Flags().StringP("output", "o", "", "Directory the books are written to (default: next to the work)")
}
