package console

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/users"
)

// newTable creates a borderless left-aligned table.
func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
	table.Header(headers)
	return table
}

func renderUsers(w io.Writer, state listing.State[users.User]) {
	rows := make([][]string, 0, len(state.Items))
	for _, u := range state.Items {
		status := color.New(color.FgGreen).Sprint("enabled")
		if !u.Enabled {
			status = color.New(color.FgRed).Sprint("disabled")
		}
		rows = append(rows, []string{u.ID, u.Username, status})
	}
	table := newTable(w, []string{"ID", "Username", "Status"})
	table.Bulk(rows)
	table.Render()

	summary := fmt.Sprintf("Page %d (%d per page), %d users total",
		state.Pagination.PageIndex, state.Pagination.PageSize, state.Pagination.Total)
	if state.Filter != "" {
		summary += fmt.Sprintf(", filter %q", state.Filter)
	}
	fmt.Fprintln(w, summary)
}

func renderRoles(w io.Writer, state listing.State[users.Role]) {
	rows := make([][]string, 0, len(state.Items))
	for _, r := range state.Items {
		member := color.New(color.Faint).Sprint("no")
		if r.IsInRole {
			member = color.New(color.FgGreen).Sprint("yes")
		}
		rows = append(rows, []string{r.ID, r.Name, member})
	}
	table := newTable(w, []string{"ID", "Role", "Member"})
	table.Bulk(rows)
	table.Render()
}
