package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/kerbaras/shelf/pkg/app/styles"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the works in the library",
	Long:  "Display every mirrored work recorded in the library with its on-disk progress",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := newDeps(cmd, nil)
		cobra.CheckErr(err)
		defer d.Close()

		if d.repo == nil {
			cobra.CheckErr(errors.New("the library is disabled in the configuration"))
		}
		works, err := d.controller.Works()
		cobra.CheckErr(err)

		if len(works) == 0 {
			fmt.Println("No works in the library. Use 'shelf download URL' to mirror one.")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.SetTitle(fmt.Sprintf("Library (%d works)", len(works)))
		t.AppendHeader(table.Row{"Title", "Status", "Chapters", "Pages", "Updated", "Directory"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 40},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})
		for _, w := range works {
			t.AppendRow(table.Row{
				w.Title,
				styles.StatusOf(w.Present, w.Pages),
				w.Chapters,
				fmt.Sprintf("%s/%s", humanize.Comma(int64(w.Present)), humanize.Comma(int64(w.Pages))),
				humanize.Time(w.UpdatedAt),
				w.Root,
			})
		}
		t.Render()
	},
}
