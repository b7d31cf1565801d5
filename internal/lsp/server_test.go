package lsp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

const validManifest = `// swift-tools-version:5.9
import PackageDescription

let package = Package(
    name: "Demo",
    targets: [
        .target(name: "App", dependencies: ["Unused"]),
    ]
)
`

func newServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer(Options{Backend: manifest.BackendLexical})
	require.NoError(t, err)

	return srv
}

func TestDocumentStore(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	_, ok := store.Get("file:///tmp/Package.swift")
	assert.False(t, ok)

	store.Set("file:///tmp/Package.swift", "content")

	content, ok := store.Get("file:///tmp/Package.swift")
	assert.True(t, ok)
	assert.Equal(t, "content", content)

	store.Delete("file:///tmp/Package.swift")

	_, ok = store.Get("file:///tmp/Package.swift")
	assert.False(t, ok)
}

func TestURIToPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.FromSlash("/pkg/Package.swift"), uriToPath("file:///pkg/Package.swift"))
	assert.Equal(t, filepath.FromSlash("/pkg name/Package.swift"), uriToPath("file:///pkg%20name/Package.swift"))
	assert.Empty(t, uriToPath("https://example.com/Package.swift"))
}

func TestDiagnose_IgnoresNonManifestDocuments(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	diagnostics := srv.Diagnose(context.Background(), "file:///pkg/Sources/App/main.swift", "import Foundation")
	assert.Nil(t, diagnostics)
}

func TestDiagnose_InvalidManifest(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	diagnostics := srv.Diagnose(context.Background(), "file:///pkg/Package.swift", "not a manifest")
	require.Len(t, diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diagnostics[0].Severity)
	assert.Contains(t, diagnostics[0].Message, "invalid manifest")
}

func TestDiagnose_FindingsBecomeDiagnostics(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	srv.runner = func(_ context.Context, _ string) (*audit.Report, error) {
		return &audit.Report{
			Package: "Demo",
			Results: []audit.Result{{
				Target:  "App",
				Kind:    manifest.KindLibrary,
				Missing: []string{"Logging"},
				Unused:  []string{"Unused"},
				Redundant: []audit.Redundant{
					{Target: "Member", Product: "Kit", Package: "swift-kit"},
				},
				Declarations: []manifest.Dependency{
					{Name: "Unused", Kind: manifest.DependencyTarget, Line: 7},
				},
				SourceFiles: []scanner.SourceFile{{
					Path:    "Sources/App/main.swift",
					Imports: []scanner.Import{{Module: "Logging", Line: 3}},
				}},
				HasError:    true,
				HasWarning:  true,
			}},
		}, nil
	}

	diagnostics := srv.Diagnose(context.Background(), "file:///pkg/Package.swift", validManifest)
	require.Len(t, diagnostics, 3)

	assert.Equal(t, protocol.DiagnosticSeverityError, *diagnostics[0].Severity)
	assert.Contains(t, diagnostics[0].Message, `missing dependency "Logging"`)
	assert.Contains(t, diagnostics[0].Message, "Sources/App/main.swift:3")

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diagnostics[1].Severity)
	assert.Contains(t, diagnostics[1].Message, `unused dependency "Unused"`)
	assert.Equal(t, protocol.UInteger(6), diagnostics[1].Range.Start.Line)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diagnostics[2].Severity)
	assert.Contains(t, diagnostics[2].Message, `already provided by product "Kit"`)
}

func TestDiagnose_RealPackage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "Sources", "App"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Package.swift"), []byte(validManifest), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "Sources", "App", "main.swift"),
		[]byte("import Foundation\n"), 0o600))

	srv := newServer(t)

	uri := "file://" + filepath.ToSlash(filepath.Join(root, "Package.swift"))

	diagnostics := srv.Diagnose(context.Background(), uri, validManifest)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diagnostics[0].Severity)
	assert.Contains(t, diagnostics[0].Message, `unused dependency "Unused"`)
}
