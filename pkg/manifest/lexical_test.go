package manifest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

const simpleManifest = `// swift-tools-version:5.9
import PackageDescription

let package = Package(
    name: "AppKitProject",
    products: [
        .library(name: "Utils", targets: ["Utils"]),
        .executable(name: "app", targets: ["App"])
    ],
    dependencies: [
        .package(url: "https://github.com/apple/swift-log.git", from: "1.5.0"),
        .package(path: "../LocalKit")
    ],
    targets: [
        .target(name: "Utils"),
        .executableTarget(
            name: "App",
            dependencies: [
                "Utils",
                .product(name: "Logging", package: "swift-log")
            ]
        ),
        .testTarget(name: "AppTests", dependencies: ["App"])
    ]
)
`

const nestedConditionManifest = `import PackageDescription

let package = Package(
    name: "Conditional",
    targets: [
        .target(
            name: "Core",
            dependencies: [
                .target(name: "Helpers", condition: .when(platforms: [.iOS, .macOS])),
                "TrailingDep"
            ]
        ),
        .target(name: "Helpers"),
        .target(name: "TrailingDep")
    ]
)
`

const constantsManifest = `import PackageDescription

let projectName = "ConstKit"
let loggingDep: Target.Dependency = .product(name: "Logging", package: "swift-log")
let commonDeps: [Target.Dependency] = [
    "Shared",
    loggingDep
]

let package = Package(
    name: projectName,
    dependencies: [
        .package(url: "https://github.com/apple/swift-log.git", from: "1.5.0")
    ],
    targets: [
        .target(name: "Shared"),
        .target(name: "Core", dependencies: commonDeps),
        .target(name: "Direct", dependencies: [loggingDep])
    ]
)
`

const typedBindingManifest = `import PackageDescription

let targets: [Target] = [
    .target(name: "Alpha"),
    .target(name: "Beta", dependencies: ["Alpha"])
]

let package = Package(
    name: "BindingKit",
    targets: targets
)
`

const kindsManifest = `import PackageDescription

let package = Package(
    name: "Zoo",
    targets: [
        .target(name: "Lib", path: "Custom/Lib"),
        .executableTarget(name: "Tool"),
        .testTarget(name: "LibTests"),
        .macro(name: "Gen"),
        .plugin(name: "Lint", capability: .buildTool()),
        .systemLibrary(name: "CZlib"),
        .binaryTarget(name: "Blob", url: "https://example.com/blob.zip", checksum: "abc")
    ]
)
`

func TestLexicalParser_SimpleManifest(t *testing.T) {
	t.Parallel()

	pkg, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(simpleManifest))
	require.NoError(t, err)

	assert.Equal(t, "AppKitProject", pkg.Name)

	require.Len(t, pkg.Dependencies, 2)
	assert.Equal(t, manifest.ExternalDependency{Name: "swift-log", URL: "https://github.com/apple/swift-log.git"}, pkg.Dependencies[0])
	assert.Equal(t, manifest.ExternalDependency{Name: "LocalKit", Path: "../LocalKit"}, pkg.Dependencies[1])

	require.Len(t, pkg.Products, 2)
	assert.Equal(t, manifest.Product{Name: "Utils", Kind: manifest.ProductLibrary, Targets: []string{"Utils"}, Package: "AppKitProject"}, pkg.Products[0])
	assert.Equal(t, manifest.Product{Name: "app", Kind: manifest.ProductExecutable, Targets: []string{"App"}, Package: "AppKitProject"}, pkg.Products[1])

	require.Len(t, pkg.Targets, 3)

	utils := pkg.Targets[0]
	assert.Equal(t, "Utils", utils.Name)
	assert.Equal(t, manifest.KindLibrary, utils.Kind)
	assert.Empty(t, utils.Dependencies)
	assert.NotNil(t, utils.Dependencies)

	app := pkg.Targets[1]
	assert.Equal(t, "App", app.Name)
	assert.Equal(t, manifest.KindExecutable, app.Kind)
	assert.Equal(t, []manifest.Dependency{
		{Name: "Utils", Kind: manifest.DependencyTarget, Line: 19},
		{Name: "Logging", Kind: manifest.DependencyProduct, Package: "swift-log", Line: 20},
	}, app.Dependencies)

	tests := pkg.Targets[2]
	assert.Equal(t, "AppTests", tests.Name)
	assert.Equal(t, manifest.KindTest, tests.Kind)
	assert.Equal(t, []manifest.Dependency{
		{Name: "App", Kind: manifest.DependencyTarget, Line: 23},
	}, tests.Dependencies)
}

func TestLexicalParser_NestedConditionDoesNotTruncate(t *testing.T) {
	t.Parallel()

	pkg, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(nestedConditionManifest))
	require.NoError(t, err)

	// The platform list nested inside the condition argument must not end
	// the dependencies list or the targets section early.
	require.Len(t, pkg.Targets, 3)

	core := pkg.Targets[0]
	require.Len(t, core.Dependencies, 2)
	assert.Equal(t, manifest.Dependency{Name: "Helpers", Kind: manifest.DependencyTarget, Line: 9}, core.Dependencies[0])
	assert.Equal(t, manifest.Dependency{Name: "TrailingDep", Kind: manifest.DependencyTarget, Line: 10}, core.Dependencies[1])

	assert.Equal(t, "Helpers", pkg.Targets[1].Name)
	assert.Equal(t, "TrailingDep", pkg.Targets[2].Name)
}

func TestLexicalParser_ConstantsResolution(t *testing.T) {
	t.Parallel()

	pkg, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(constantsManifest))
	require.NoError(t, err)

	assert.Equal(t, "ConstKit", pkg.Name)

	core, ok := pkg.Target("Core")
	require.True(t, ok)
	assert.Equal(t, []manifest.Dependency{
		{Name: "Shared", Kind: manifest.DependencyTarget, Line: 6},
		{Name: "Logging", Kind: manifest.DependencyProduct, Package: "swift-log", Line: 7},
	}, core.Dependencies)

	direct, ok := pkg.Target("Direct")
	require.True(t, ok)
	assert.Equal(t, []manifest.Dependency{
		{Name: "Logging", Kind: manifest.DependencyProduct, Package: "swift-log", Line: 18},
	}, direct.Dependencies)
}

func TestLexicalParser_ArrayConstantSection(t *testing.T) {
	t.Parallel()

	pkg, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(typedBindingManifest))
	require.NoError(t, err)

	assert.Equal(t, "BindingKit", pkg.Name)
	require.Len(t, pkg.Targets, 2)
	assert.Equal(t, "Alpha", pkg.Targets[0].Name)
	assert.Equal(t, "Beta", pkg.Targets[1].Name)
	require.Len(t, pkg.Targets[1].Dependencies, 1)
	assert.Equal(t, "Alpha", pkg.Targets[1].Dependencies[0].Name)
}

func TestLexicalParser_TargetKinds(t *testing.T) {
	t.Parallel()

	pkg, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(kindsManifest))
	require.NoError(t, err)

	require.Len(t, pkg.Targets, 7)

	kinds := map[string]manifest.TargetKind{}
	for _, target := range pkg.Targets {
		kinds[target.Name] = target.Kind
	}

	assert.Equal(t, manifest.KindLibrary, kinds["Lib"])
	assert.Equal(t, manifest.KindExecutable, kinds["Tool"])
	assert.Equal(t, manifest.KindTest, kinds["LibTests"])
	assert.Equal(t, manifest.KindMacro, kinds["Gen"])
	assert.Equal(t, manifest.KindPlugin, kinds["Lint"])
	assert.Equal(t, manifest.KindSystemLibrary, kinds["CZlib"])
	assert.Equal(t, manifest.KindBinary, kinds["Blob"])

	lib, ok := pkg.Target("Lib")
	require.True(t, ok)
	assert.Equal(t, "Custom/Lib", lib.Path)
}

func TestLexicalParser_InvalidManifest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
	}{
		{name: "no package declaration", src: "let answer = 42\n"},
		{name: "unresolvable package name", src: "let package = Package(targets: [])\n"},
		{name: "unterminated package call", src: "let package = Package(\n    name: \"Broken\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := manifest.NewLexicalParser().Parse(context.Background(), []byte(tc.src))
			assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
		})
	}
}
