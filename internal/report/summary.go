package report

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"archiver-go/internal/archiver"
)

// Summary renders one table row per archive set.
func Summary(results []*archiver.SetResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Set", "Discs", "Unique", "Discovered", "Content", "Reserved/disc"})

	for _, r := range results {
		var content int64
		for _, d := range r.Discs {
			content += archiver.TotalSize(d.Files)
		}
		tw.AppendRow(table.Row{
			r.Name,
			strconv.Itoa(len(r.Discs)),
			strconv.Itoa(r.Unique),
			strconv.Itoa(r.Discovered),
			size(content),
			size(r.Overhead),
		})
	}

	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}}
	for i := 2; i <= 6; i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
