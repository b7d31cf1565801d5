package lsp

import (
	"context"
	"fmt"
	"path/filepath"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// Diagnose audits the package the manifest document belongs to and converts
// the findings into LSP diagnostics. Non-manifest documents yield no
// diagnostics. An unparsable manifest yields a single parse-error
// diagnostic; audit failures beyond that are logged, and whatever results
// completed still produce diagnostics.
func (srv *Server) Diagnose(ctx context.Context, uri, content string) []protocol.Diagnostic {
	if !isManifestURI(uri) {
		return nil
	}

	parser, err := manifest.New(srv.backend)
	if err != nil {
		return []protocol.Diagnostic{errorDiagnostic(0, err.Error())}
	}

	// Parse the buffered content, not the file: during editing the two
	// differ, and parse errors must point at what the user sees.
	_, parseErr := parser.Parse(ctx, []byte(content))
	if parseErr != nil {
		return []protocol.Diagnostic{errorDiagnostic(0, fmt.Sprintf("invalid manifest: %v", parseErr))}
	}

	dir := filepath.Dir(uriToPath(uri))

	report, err := srv.runner(ctx, dir)
	if err != nil {
		srv.logger.Warn("audit for diagnostics failed", "dir", dir, "error", err)
	}

	if report == nil {
		return nil
	}

	report.Sort()

	var diagnostics []protocol.Diagnostic

	for i := range report.Results {
		diagnostics = append(diagnostics, resultDiagnostics(&report.Results[i])...)
	}

	return diagnostics
}

// resultDiagnostics converts one target's findings. Unused and redundant
// declarations point at their manifest line when the parser recorded one;
// missing imports have no manifest line to point at and land on line 1 with
// the importing source location in the message.
func resultDiagnostics(result *audit.Result) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	for _, name := range result.Missing {
		message := fmt.Sprintf("target %s: missing dependency %q", result.Target, name)

		if path, line, ok := firstImport(result, name); ok {
			message = fmt.Sprintf("%s (imported at %s:%d)", message, path, line)
		}

		diagnostics = append(diagnostics, errorDiagnostic(0, message))
	}

	for _, name := range result.Unused {
		line := declarationLine(result, name)
		message := fmt.Sprintf("target %s: unused dependency %q", result.Target, name)
		diagnostics = append(diagnostics, warningDiagnostic(line, message))
	}

	for _, finding := range result.Redundant {
		line := declarationLine(result, finding.Target)
		message := fmt.Sprintf("target %s: %q is already provided by product %q of package %q",
			result.Target, finding.Target, finding.Product, finding.Package)
		diagnostics = append(diagnostics, warningDiagnostic(line, message))
	}

	return diagnostics
}

// declarationLine returns the zero-based manifest line of a declared
// dependency, 0 when the parser recorded none.
func declarationLine(result *audit.Result, name string) protocol.UInteger {
	for _, decl := range result.Declarations {
		if decl.Name == name && decl.Line > 0 {
			return protocol.UInteger(decl.Line - 1)
		}
	}

	return 0
}

// firstImport locates the first source occurrence of an imported module.
func firstImport(result *audit.Result, module string) (string, int, bool) {
	for _, file := range result.SourceFiles {
		for _, imp := range file.Imports {
			if imp.Module == module {
				return file.Path, imp.Line, true
			}
		}
	}

	return "", 0, false
}

func errorDiagnostic(line protocol.UInteger, message string) protocol.Diagnostic {
	return newDiagnostic(line, message, protocol.DiagnosticSeverityError)
}

func warningDiagnostic(line protocol.UInteger, message string) protocol.Diagnostic {
	return newDiagnostic(line, message, protocol.DiagnosticSeverityWarning)
}

func newDiagnostic(line protocol.UInteger, message string, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	source := serverName

	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: 0},
			End:   protocol.Position{Line: line + 1, Character: 0},
		},
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}
