package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

func direct(name string) manifest.Dependency {
	return manifest.Dependency{Name: name, Kind: manifest.DependencyTarget}
}

func product(name, pkg string) manifest.Dependency {
	return manifest.Dependency{Name: name, Kind: manifest.DependencyProduct, Package: pkg}
}

func packageWith(targets ...manifest.Target) *manifest.Package {
	return &manifest.Package{Name: "Fixture", Targets: targets}
}

// sourceFiles builds one file importing each module on its own line.
func sourceFiles(modules ...string) []scanner.SourceFile {
	imports := make([]scanner.Import, len(modules))
	for i, module := range modules {
		imports[i] = scanner.Import{Module: module, Line: i + 1}
	}

	return []scanner.SourceFile{{Path: "Sources/App/App.swift", Imports: imports}}
}

func assertDisjoint(t *testing.T, result audit.Result) {
	t.Helper()

	seen := make(map[string]string)

	for _, set := range []struct {
		name  string
		names []string
	}{
		{"missing", result.Missing},
		{"unused", result.Unused},
		{"correct", result.Correct},
	} {
		for _, name := range set.names {
			other, dup := seen[name]
			assert.False(t, dup, "%s appears in both %s and %s", name, other, set.name)
			seen[name] = set.name
		}
	}
}

func TestAnalyze_MissingAndCorrectSplit(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindExecutable,
		Dependencies: []manifest.Dependency{direct("Foundation"), direct("Utils")},
	}
	utils := manifest.Target{Name: "Utils", Kind: manifest.KindLibrary}
	pkg := packageWith(app, utils)

	result := audit.Analyze(&app, pkg, nil, sourceFiles("Foundation", "Utils", "Logging"), nil)

	assert.Equal(t, []string{"Logging"}, result.Missing)
	assert.Equal(t, []string{"Utils"}, result.Correct)
	assert.Empty(t, result.Unused, "a declared standard module is filtered, not unused")
	assert.Empty(t, result.ProductSatisfied)
	assert.Empty(t, result.Redundant)
	assert.True(t, result.HasError)
	assert.False(t, result.HasWarning)
	assertDisjoint(t, result)
}

func TestAnalyze_UnusedDeclaration(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{direct("Unused")},
	}

	result := audit.Analyze(&app, packageWith(app), nil, sourceFiles(), nil)

	assert.Equal(t, []string{"Unused"}, result.Unused)
	assert.Empty(t, result.Missing)
	assert.False(t, result.HasError)
	assert.True(t, result.HasWarning)
}

func TestAnalyze_ProductSatisfiedImport(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{product("Apollo", "apollo-ios")},
	}
	productMap := map[string][]string{"Apollo": {"Apollo"}}

	result := audit.Analyze(&app, packageWith(app), productMap, sourceFiles("Apollo"), nil)

	require.Len(t, result.ProductSatisfied, 1)
	assert.Equal(t, audit.ProductSatisfied{Import: "Apollo", Product: "Apollo", Package: "apollo-ios"}, result.ProductSatisfied[0])
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Unused)
	assert.Empty(t, result.Redundant, "the member sharing the product's name is not a separate declaration")
	assert.Equal(t, []string{"Apollo"}, result.Correct)
	assert.True(t, result.Clean())
}

func TestAnalyze_RedundantDirectDeclaration(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name: "App",
		Kind: manifest.KindLibrary,
		Dependencies: []manifest.Dependency{
			product("Kit", "swift-kit"),
			direct("KitCore"),
		},
	}
	productMap := map[string][]string{"Kit": {"KitCore", "KitExtras"}}

	result := audit.Analyze(&app, packageWith(app), productMap, sourceFiles("KitCore"), nil)

	require.Len(t, result.Redundant, 1)
	assert.Equal(t, audit.Redundant{Target: "KitCore", Product: "Kit", Package: "swift-kit"}, result.Redundant[0])
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Unused, "the product satisfied an import, so it is not unused")
	assert.True(t, result.HasWarning)
	assert.False(t, result.HasError)
}

func TestAnalyze_ProductMemberNameDiffersFromProduct(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{product("LoggingKit", "swift-logging-kit")},
	}
	productMap := map[string][]string{"LoggingKit": {"Logging"}}

	result := audit.Analyze(&app, packageWith(app), productMap, sourceFiles("Logging"), nil)

	require.Len(t, result.ProductSatisfied, 1)
	assert.Equal(t, "Logging", result.ProductSatisfied[0].Import)
	assert.Equal(t, "LoggingKit", result.ProductSatisfied[0].Product)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Unused)
	assert.True(t, result.Clean())
}

func TestAnalyze_DeclaredProductNameMatchesImport(t *testing.T) {
	t.Parallel()

	// No checkout was resolvable, so the product map is empty. The declared
	// product name still covers an import matching it.
	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{product("Apollo", "apollo-ios")},
	}

	result := audit.Analyze(&app, packageWith(app), nil, sourceFiles("Apollo", "Stray"), nil)

	assert.Equal(t, []string{"Stray"}, result.Missing)
	assert.Equal(t, []string{"Apollo"}, result.Correct)
	assert.Empty(t, result.ProductSatisfied)
	assert.Empty(t, result.Unused)
}

func TestAnalyze_InternalModules(t *testing.T) {
	t.Parallel()

	app := manifest.Target{Name: "App", Kind: manifest.KindExecutable}
	core := manifest.Target{Name: "Core", Kind: manifest.KindLibrary}
	tests := manifest.Target{Name: "AppTests", Kind: manifest.KindTest}
	pkg := packageWith(app, core, tests)

	result := audit.Analyze(&app, pkg, nil, sourceFiles("Core", "AppTests"), nil)

	assert.NotContains(t, result.Missing, "Core", "sibling library imports are never missing")
	assert.Contains(t, result.Missing, "AppTests", "test targets provide no importable module")
	assertDisjoint(t, result)
}

func TestAnalyze_AllowList(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{direct("SpecialKit")},
	}
	allow := []string{"SpecialKit", "VendorKit"}

	result := audit.Analyze(&app, packageWith(app), nil, sourceFiles("VendorKit"), allow)

	assert.Empty(t, result.Missing, "allow-listed imports are never missing")
	assert.Empty(t, result.Unused, "allow-listed declarations are never unused")
	assert.True(t, result.Clean())
}

func TestAnalyze_AllowListIsCaseSensitive(t *testing.T) {
	t.Parallel()

	app := manifest.Target{
		Name:         "App",
		Kind:         manifest.KindLibrary,
		Dependencies: []manifest.Dependency{direct("SpecialKit")},
	}

	result := audit.Analyze(&app, packageWith(app), nil, sourceFiles(), []string{"specialkit"})

	assert.Equal(t, []string{"SpecialKit"}, result.Unused)
}

func TestAnalyze_DeclarationOnlyKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []manifest.TargetKind{manifest.KindSystemLibrary, manifest.KindBinary} {
		target := manifest.Target{
			Name:         "CLib",
			Kind:         kind,
			Dependencies: []manifest.Dependency{direct("Anything")},
		}

		result := audit.Analyze(&target, packageWith(target), nil, sourceFiles("Anything"), nil)

		assert.Equal(t, "CLib", result.Target)
		assert.Equal(t, kind, result.Kind)
		assert.Empty(t, result.SourceFiles)
		assert.Empty(t, result.Unused)
		assert.True(t, result.Clean())
	}
}

func TestAnalyze_RepeatImportsReportedOnce(t *testing.T) {
	t.Parallel()

	app := manifest.Target{Name: "App", Kind: manifest.KindLibrary}
	files := []scanner.SourceFile{
		{Path: "Sources/App/A.swift", Imports: []scanner.Import{{Module: "Shared", Line: 1}}},
		{Path: "Sources/App/B.swift", Imports: []scanner.Import{{Module: "Shared", Line: 3}}},
	}

	result := audit.Analyze(&app, packageWith(app), nil, files, nil)

	assert.Equal(t, []string{"Shared"}, result.Missing, "set semantics across files")
	assert.Equal(t, files, result.SourceFiles, "per-line statements stay available for diagnostics")
}

func TestAnalyze_EmptyTargetIsNeutral(t *testing.T) {
	t.Parallel()

	app := manifest.Target{Name: "App", Kind: manifest.KindLibrary}

	result := audit.Analyze(&app, packageWith(app), nil, sourceFiles(), nil)

	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Unused)
	assert.Empty(t, result.Correct)
	assert.False(t, result.HasError)
	assert.False(t, result.HasWarning)
}
