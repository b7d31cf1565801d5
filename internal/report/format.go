// Package report renders audit reports for terminals, build systems and
// machine consumers. Every renderer sorts results by target name before
// writing, so output is deterministic regardless of audit concurrency.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
)

// ErrUnknownFormat is returned when a format name has no renderer.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names a report output encoding.
type Format string

// Supported report formats.
const (
	// FormatText is the colored table layout for terminals.
	FormatText Format = "text"
	// FormatCompact prints one grep-friendly line per finding.
	FormatCompact Format = "compact"
	// FormatJSON emits the report as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML emits the report as YAML.
	FormatYAML Format = "yaml"
	// FormatXcode prints path:line: diagnostics that Xcode and editors
	// attach to the offending files.
	FormatXcode Format = "xcode"
	// FormatPlot writes an HTML page with a stacked findings chart.
	FormatPlot Format = "plot"
	// FormatBinary writes the compressed binary encoding.
	FormatBinary Format = "bin"
)

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatCompact, FormatJSON, FormatYAML, FormatXcode, FormatPlot, FormatBinary:
		return true
	default:
		return false
	}
}

// Color modes accepted by the text renderer. Auto defers to terminal
// detection, the other two force the choice.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Renderer writes one report encoding to a stream.
type Renderer interface {
	Render(w io.Writer, report *audit.Report) error
}

// Options adjust renderer behavior. Color applies to the text renderer
// only.
type Options struct {
	Color string
}

// New returns the renderer for the named format.
func New(format Format, opts Options) (Renderer, error) {
	switch format {
	case FormatText:
		return &textRenderer{color: opts.Color}, nil
	case FormatCompact:
		return &compactRenderer{}, nil
	case FormatJSON:
		return &jsonRenderer{}, nil
	case FormatYAML:
		return &yamlRenderer{}, nil
	case FormatXcode:
		return &xcodeRenderer{}, nil
	case FormatPlot:
		return &plotRenderer{}, nil
	case FormatBinary:
		return &binaryRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
