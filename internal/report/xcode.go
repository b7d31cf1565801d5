package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// xcodeRenderer prints one path:line: severity: line per finding, the
// format Xcode and most editors parse into inline diagnostics. Missing
// imports point at the first source line importing the module; unused and
// redundant declarations point at their manifest lines.
type xcodeRenderer struct{}

func (xcodeRenderer) Render(w io.Writer, rep *audit.Report) error {
	rep.Sort()

	manifestPath := filepath.Join(rep.Path, manifest.FileName)

	var b strings.Builder

	for i := range rep.Results {
		res := &rep.Results[i]

		for _, name := range res.Missing {
			path, line := importCitation(rep.Path, res, name)
			fmt.Fprintf(&b, "%s:%d: error: target '%s' imports '%s' without declaring a dependency on it\n",
				path, line, res.Target, name)
		}

		for _, name := range res.Unused {
			fmt.Fprintf(&b, "%s:%d: warning: target '%s' declares dependency '%s' but never imports it\n",
				manifestPath, declarationLine(res, name), res.Target, name)
		}

		for _, rd := range res.Redundant {
			fmt.Fprintf(&b, "%s:%d: warning: target '%s' declares '%s' already provided by product '%s' (%s)\n",
				manifestPath, declarationLine(res, rd.Target), res.Target, rd.Target, rd.Product, rd.Package)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// importCitation returns the first source position importing module,
// falling back to the manifest when the sources are unavailable.
func importCitation(root string, res *audit.Result, module string) (string, int) {
	for _, file := range res.SourceFiles {
		for _, imp := range file.Imports {
			if imp.Module == module {
				return filepath.Join(root, file.Path), max(imp.Line, 1)
			}
		}
	}

	return filepath.Join(root, manifest.FileName), 1
}

// declarationLine finds the manifest line declaring name, 1 when unknown.
func declarationLine(res *audit.Result, name string) int {
	for _, dep := range res.Declarations {
		if dep.Name == name {
			return max(dep.Line, 1)
		}
	}

	return 1
}
