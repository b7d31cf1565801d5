package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

const emptyCell = "-"

// textRenderer writes the table layout for terminals. Severity is carried
// by color: missing red, unused yellow, redundant cyan, correct green.
type textRenderer struct {
	color string
}

func (r *textRenderer) Render(w io.Writer, rep *audit.Report) error {
	switch r.color {
	case ColorAlways:
		color.NoColor = false //nolint:reassign // intentional override of library global
	case ColorNever:
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	rep.Sort()

	var b strings.Builder

	fmt.Fprintf(&b, "Package %s (%s)\n\n", rep.Package, rep.Path)
	b.WriteString(renderFindingsTable(rep))

	if details := renderDetails(rep); details != "" {
		b.WriteString("\n")
		b.WriteString(details)
	}

	b.WriteString("\n")
	b.WriteString(renderSummary(rep))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func renderFindingsTable(rep *audit.Report) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"TARGET", "KIND", "MISSING", "UNUSED", "REDUNDANT", "CORRECT"})

	for i := range rep.Results {
		res := &rep.Results[i]

		members := make([]string, 0, len(res.Redundant))
		for _, finding := range res.Redundant {
			members = append(members, finding.Target)
		}

		tbl.AppendRow(table.Row{
			res.Target,
			string(res.Kind),
			findingCell(res.Missing, color.FgRed),
			findingCell(res.Unused, color.FgYellow),
			findingCell(members, color.FgCyan),
			findingCell(res.Correct, color.FgGreen),
		})
	}

	return tbl.Render() + "\n"
}

// findingCell joins names into one colored table cell, "-" when empty.
func findingCell(names []string, attr color.Attribute) string {
	if len(names) == 0 {
		return emptyCell
	}

	return color.New(attr).Sprint(strings.Join(names, ", "))
}

// renderDetails explains product satisfactions and redundancies, which the
// table alone cannot attribute to their products.
func renderDetails(rep *audit.Report) string {
	var b strings.Builder

	for i := range rep.Results {
		res := &rep.Results[i]

		for _, ps := range res.ProductSatisfied {
			fmt.Fprintf(&b, " %s: import %s satisfied by product %s (%s)\n", res.Target, ps.Import, ps.Product, ps.Package)
		}

		for _, rd := range res.Redundant {
			fmt.Fprintf(&b, " %s: %s already provided by product %s (%s)\n", res.Target, rd.Target, rd.Product, rd.Package)
		}
	}

	return b.String()
}

func renderSummary(rep *audit.Report) string {
	var missing, unused, redundant int

	for i := range rep.Results {
		missing += len(rep.Results[i].Missing)
		unused += len(rep.Results[i].Unused)
		redundant += len(rep.Results[i].Redundant)
	}

	line := fmt.Sprintf("%s audited: %s, %s, %s\n",
		english.Plural(len(rep.Results), "target", ""),
		english.Plural(missing, "missing import", ""),
		english.Plural(unused, "unused dependency", "unused dependencies"),
		english.Plural(redundant, "redundant declaration", ""),
	)

	switch {
	case rep.HasError():
		return line + color.New(color.FgRed).Sprint("missing dependencies found") + "\n"
	case rep.HasWarning():
		return line + color.New(color.FgYellow).Sprint("unused or redundant declarations found") + "\n"
	default:
		return line + color.New(color.FgGreen).Sprint("no dependency issues found") + "\n"
	}
}
