package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/packfang/internal/report"
	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

// fixtureReport builds a report with one finding of every class. Results
// are deliberately out of order so renderer sorting is exercised.
func fixtureReport() *audit.Report {
	return &audit.Report{
		Package: "Demo",
		Path:    "/tmp/demo",
		Results: []audit.Result{
			{
				Target: "Utils",
				Kind:   manifest.KindLibrary,
				SourceFiles: []scanner.SourceFile{
					{Path: "Sources/Utils/Utils.swift", Imports: []scanner.Import{}},
				},
			},
			{
				Target:  "App",
				Kind:    manifest.KindExecutable,
				Missing: []string{"Logging"},
				Unused:  []string{"Spare"},
				Correct: []string{"Utils"},
				ProductSatisfied: []audit.ProductSatisfied{
					{Import: "KitCore", Product: "Kit", Package: "swift-kit"},
				},
				Redundant: []audit.Redundant{
					{Target: "KitCore", Product: "Kit", Package: "swift-kit"},
				},
				SourceFiles: []scanner.SourceFile{
					{Path: "Sources/App/main.swift", Imports: []scanner.Import{
						{Module: "Utils", Line: 1},
						{Module: "KitCore", Line: 2},
						{Module: "Logging", Line: 3},
					}},
				},
				Declarations: []manifest.Dependency{
					{Name: "Utils", Kind: manifest.DependencyTarget, Line: 12},
					{Name: "Spare", Kind: manifest.DependencyTarget, Line: 13},
					{Name: "KitCore", Kind: manifest.DependencyTarget, Line: 14},
					{Name: "Kit", Kind: manifest.DependencyProduct, Package: "swift-kit", Line: 15},
				},
				HasError:   true,
				HasWarning: true,
			},
		},
	}
}

// cleanReport builds a report without findings.
func cleanReport() *audit.Report {
	return &audit.Report{
		Package: "Demo",
		Path:    "/tmp/demo",
		Results: []audit.Result{
			{Target: "Utils", Kind: manifest.KindLibrary},
		},
	}
}

func TestFormat_Valid(t *testing.T) {
	t.Parallel()

	valid := []report.Format{
		report.FormatText,
		report.FormatCompact,
		report.FormatJSON,
		report.FormatYAML,
		report.FormatXcode,
		report.FormatPlot,
		report.FormatBinary,
	}
	for _, format := range valid {
		assert.True(t, format.Valid(), string(format))
	}

	for _, format := range []report.Format{"", "html", "TEXT", "jsonl"} {
		assert.False(t, format.Valid(), string(format))
	}
}

func TestNew_EveryValidFormat(t *testing.T) {
	t.Parallel()

	formats := []report.Format{
		report.FormatText,
		report.FormatCompact,
		report.FormatJSON,
		report.FormatYAML,
		report.FormatXcode,
		report.FormatPlot,
		report.FormatBinary,
	}

	for _, format := range formats {
		renderer, err := report.New(format, report.Options{Color: report.ColorNever})
		require.NoError(t, err, string(format))
		require.NotNil(t, renderer, string(format))
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := report.New("csv", report.Options{})

	require.ErrorIs(t, err, report.ErrUnknownFormat)
}
