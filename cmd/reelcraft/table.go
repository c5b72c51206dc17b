package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column. A positive width caps the cell; longer
// values are cut with an ellipsis so locators and error text keep tables
// inside a terminal.
type column struct {
	title string
	right bool
	width int
}

var (
	galleryColumns = []column{{title: "Name"}, {title: "Size", right: true}, {title: "Modified"}, {title: "Locator", width: 72}}
	historyColumns = []column{{title: "Job"}, {title: "Title", width: 32}, {title: "Status"}, {title: "Stage"}, {title: "Updated"}, {title: "Detail", width: 56}}
	jobsColumns    = []column{{title: "ID"}, {title: "Title", width: 40}, {title: "Status"}, {title: "Format"}, {title: "Started"}, {title: "Finished"}}
	savedColumns   = []column{{title: "ID", right: true}, {title: "Title", width: 40}, {title: "Length", right: true}, {title: "Created"}, {title: "Locator", width: 72}}
	voicesColumns  = []column{{title: "Voice"}, {title: ""}}
	keysColumns    = []column{{title: "Provider"}, {title: "Key"}}
)

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if col.right {
			configs[i].Align = text.AlignRight
		}
		if col.width > 0 {
			configs[i].WidthMax = col.width
			configs[i].WidthMaxEnforcer = ellipsize
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func ellipsize(value string, width int) string {
	if width < 2 || text.StringWidthWithoutEscSequences(value) <= width {
		return value
	}
	return text.Trim(value, width-1) + "…"
}
