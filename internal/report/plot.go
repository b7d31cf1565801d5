package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

const plotStackName = "findings"

// Series colors follow the echarts default palette.
const (
	colorMissing   = "#ee6666"
	colorUnused    = "#fac858"
	colorRedundant = "#5470c6"
)

// plotRenderer writes a standalone HTML page with one stacked bar per
// target, split by finding class.
type plotRenderer struct{}

type findingSeries struct {
	name  string
	color string
	count func(*audit.Result) int
}

func (plotRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Dependency findings",
			Subtitle: fmt.Sprintf("package %s", rep.Package),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "target"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "findings"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%", Left: "center"}),
	)

	labels := make([]string, len(rep.Results))
	for i := range rep.Results {
		labels[i] = rep.Results[i].Target
	}

	bar.SetXAxis(labels)

	series := []findingSeries{
		{name: "missing", color: colorMissing, count: func(r *audit.Result) int { return len(r.Missing) }},
		{name: "unused", color: colorUnused, count: func(r *audit.Result) int { return len(r.Unused) }},
		{name: "redundant", color: colorRedundant, count: func(r *audit.Result) int { return len(r.Redundant) }},
	}

	for _, s := range series {
		data := make([]opts.BarData, len(rep.Results))
		for i := range rep.Results {
			data[i] = opts.BarData{Value: s.count(&rep.Results[i])}
		}

		bar.AddSeries(s.name, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.color}),
			charts.WithBarChartOpts(opts.BarChart{Stack: plotStackName}),
		)
	}

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
