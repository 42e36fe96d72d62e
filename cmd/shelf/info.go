package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/tree"
)

var infoCmd = &cobra.Command{
	Use:   "info URL|DIR",
	Short: "Show the chapters of a work",
	Long: `Fetch the title and chapter list of a work and print them.

Given the directory of a mirrored work, the recovery record is read instead
and the table also shows how many pages of each chapter are on disk.`,
	Example: `  shelf info https://mangadex.org/title/<id> --filter "1:20"
  shelf info ~/Mangas/Title --format yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		withPages, _ := cmd.Flags().GetBool("pages")

		opts, err := fetchOptions(cmd)
		cobra.CheckErr(err)
		opts.InfoOnly = !withPages

		d, err := newDeps(cmd, nil)
		cobra.CheckErr(err)
		defer d.Close()

		manga, _, workDir, err := openWork(cmd.Context(), d, args[0], opts)
		cobra.CheckErr(err)

		if format != "table" {
			f, err := data.ParseFormat(format)
			cobra.CheckErr(err)
			cobra.CheckErr(data.Encode(os.Stdout, manga, f))
			return
		}

		var status []tree.ChapterStatus
		if workDir != "" {
			status, err = chapterStatus(d, workDir, manga)
			cobra.CheckErr(err)
		}
		printInfo(manga, status, withPages || status != nil)
	},
}

func init() {
	addFilterFlags(infoCmd)
	infoCmd.Flags().Bool("pages", false, "Also discover the pages of every chapter")
	infoCmd.Flags().String("format", "table", "Output format: table, yaml, json or toml")
}

// chapterStatus counts the pages of manga found in workDir, in chapter
// order.
func chapterStatus(d *deps, workDir string, manga *data.Manga) ([]tree.ChapterStatus, error) {
	t, err := tree.At(workDir, manga,
		tree.WithChapterFormat(d.cfg.Download.ChapterFormat),
		tree.WithImageFormat(d.cfg.Download.ImageFormat),
	)
	if err != nil {
		return nil, err
	}
	return t.Status(manga)
}

func printInfo(manga *data.Manga, status []tree.ChapterStatus, pages bool) {
	fmt.Printf("\n%s\n%s\n\n", manga.Title, manga.URL)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"#", "Vol.", "Title"}
	if pages {
		header = append(header, "Pages")
	}
	if status != nil {
		header = append(header, "On disk")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 60},
	})

	for i := range manga.Chapters {
		ch := &manga.Chapters[i]
		volume := ""
		if ch.Volume != nil {
			volume = data.FormatNumber(*ch.Volume)
		}
		row := table.Row{data.FormatNumber(ch.Index), volume, ch.Title}
		if pages {
			row = append(row, strconv.Itoa(len(ch.Pages)))
		}
		if status != nil {
			s := status[i]
			row = append(row, fmt.Sprintf("%d/%d", s.Present, s.Total))
		}
		t.AppendRow(row)
	}

	footer := fmt.Sprintf("%s chapters", humanize.Comma(int64(len(manga.Chapters))))
	if pages {
		footer += fmt.Sprintf(", %s pages", humanize.Comma(int64(manga.PageCount())))
	}
	t.AppendFooter(table.Row{footer})
	t.Render()
}
