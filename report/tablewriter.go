/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// newTable returns a markdown table writing into buf.
func newTable(headers []string, buf *bytes.Buffer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(buf,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// section renders rows under a markdown heading.
func section(title string, headers []string, rows [][]string) string {
	var buf bytes.Buffer
	table := newTable(headers, &buf)
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
	return fmt.Sprintf("## %s\n\n%s", title, buf.String())
}

func percent(v float64) string { return fmt.Sprintf("%.1f%%", v) }

func dollars(v float64) string { return fmt.Sprintf("$%.4f", v) }

func score(v float64) string { return fmt.Sprintf("%.1f", v) }

// flag prefixes bad values with a cross.
func flag(bad bool, s string) string {
	if bad {
		return "❌ " + s
	}
	return s
}
