package baseline_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/packfang/internal/baseline"
	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

const manifestV1 = `// swift-tools-version:5.9
import PackageDescription

let package = Package(
    name: "Demo",
    targets: [
        .target(name: "App", dependencies: ["Old", "Utils"]),
        .target(name: "Legacy", dependencies: ["Foo"]),
        .target(name: "Utils"),
    ]
)
`

const manifestV2 = `// swift-tools-version:5.9
import PackageDescription

let package = Package(
    name: "Demo",
    targets: [
        .target(name: "App", dependencies: ["Extra", "Logging", "Utils"]),
        .target(name: "Utils"),
    ]
)
`

type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o600))
}

// commitAll stages everything and commits, returning the commit id.
func (tr *testRepo) commitAll(message string) string {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Audit Bot", Email: "audit@example.com", When: time.Now()}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		parent, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, parent)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return oid.String()
}

func TestManifestAt_ReadsRevision(t *testing.T) {
	repo := newTestRepo(t)
	repo.writeFile("Package.swift", manifestV1)
	first := repo.commitAll("declare Old")
	repo.writeFile("Package.swift", manifestV2)
	repo.commitAll("swap Old for Extra")

	pkg, err := baseline.ManifestAt(context.Background(), repo.path, first, manifest.BackendLexical)
	require.NoError(t, err)

	app, ok := pkg.Target("App")
	require.True(t, ok)

	names := make([]string, 0, len(app.Dependencies))
	for _, dep := range app.Dependencies {
		names = append(names, dep.Name)
	}

	assert.Equal(t, []string{"Old", "Utils"}, names)

	prev, err := baseline.ManifestAt(context.Background(), repo.path, "HEAD~1", manifest.BackendLexical)
	require.NoError(t, err)
	assert.Equal(t, pkg.Name, prev.Name)
}

func TestManifestAt_ManifestMissingAtRev(t *testing.T) {
	repo := newTestRepo(t)
	repo.writeFile("README.md", "no manifest yet")
	repo.commitAll("init")

	_, err := baseline.ManifestAt(context.Background(), repo.path, "HEAD", manifest.BackendLexical)

	require.ErrorIs(t, err, baseline.ErrNoManifestAtRev)
}

func TestManifestAt_UnknownRevision(t *testing.T) {
	repo := newTestRepo(t)
	repo.writeFile("Package.swift", manifestV1)
	repo.commitAll("init")

	_, err := baseline.ManifestAt(context.Background(), repo.path, "no-such-rev", manifest.BackendLexical)

	require.Error(t, err)
}

func TestManifestAt_NestedPackage(t *testing.T) {
	repo := newTestRepo(t)
	repo.writeFile(filepath.Join("pkgs", "demo", "Package.swift"), manifestV1)
	repo.commitAll("init")

	pkg, err := baseline.ManifestAt(
		context.Background(), filepath.Join(repo.path, "pkgs", "demo"), "HEAD", manifest.BackendLexical)
	require.NoError(t, err)

	assert.Equal(t, "Demo", pkg.Name)
}

func TestCompare_DriftClasses(t *testing.T) {
	t.Parallel()

	base := &manifest.Package{
		Name: "Demo",
		Targets: []manifest.Target{
			{Name: "App", Kind: manifest.KindExecutable, Dependencies: []manifest.Dependency{
				{Name: "Old", Kind: manifest.DependencyTarget},
				{Name: "Utils", Kind: manifest.DependencyTarget},
			}},
			{Name: "Legacy", Kind: manifest.KindLibrary, Dependencies: []manifest.Dependency{
				{Name: "Foo", Kind: manifest.DependencyTarget},
			}},
			{Name: "Utils", Kind: manifest.KindLibrary},
		},
	}

	rep := &audit.Report{
		Package: "Demo",
		Results: []audit.Result{
			{
				Target: "App",
				Unused: []string{"Logging"},
				Declarations: []manifest.Dependency{
					{Name: "Extra", Kind: manifest.DependencyTarget},
					{Name: "Logging", Kind: manifest.DependencyTarget},
					{Name: "Utils", Kind: manifest.DependencyTarget},
				},
			},
			{Target: "Utils"},
		},
	}

	drifts := baseline.Compare(base, rep)

	require.Len(t, drifts, 2)

	assert.Equal(t, "App", drifts[0].Target)
	assert.Equal(t, []string{"Extra", "Logging"}, drifts[0].Added)
	assert.Equal(t, []string{"Old"}, drifts[0].Removed)
	assert.Equal(t, []string{"Logging"}, drifts[0].AddedUnused, "added and never imported")

	assert.Equal(t, "Legacy", drifts[1].Target)
	assert.Empty(t, drifts[1].Added)
	assert.Equal(t, []string{"Foo"}, drifts[1].Removed, "deleted target surfaces as removals")
}

func TestCompare_NoDrift(t *testing.T) {
	t.Parallel()

	base := &manifest.Package{
		Name: "Demo",
		Targets: []manifest.Target{
			{Name: "App", Kind: manifest.KindExecutable, Dependencies: []manifest.Dependency{
				{Name: "Utils", Kind: manifest.DependencyTarget},
			}},
		},
	}

	rep := &audit.Report{
		Package: "Demo",
		Results: []audit.Result{
			{Target: "App", Declarations: []manifest.Dependency{
				{Name: "Utils", Kind: manifest.DependencyTarget},
			}},
		},
	}

	assert.Empty(t, baseline.Compare(base, rep))
}

func TestFormatText(t *testing.T) {
	t.Parallel()

	drifts := []baseline.Drift{
		{Target: "App", Added: []string{"Extra", "Logging"}, Removed: []string{"Old"}, AddedUnused: []string{"Logging"}},
		{Target: "Legacy", Removed: []string{"Foo"}},
	}

	var buf bytes.Buffer
	require.NoError(t, baseline.FormatText(&buf, "HEAD~2", drifts))

	expected := "Baseline HEAD~2: declared dependencies drifted in 2 targets\n" +
		" App: +Extra +Logging (unused) -Old\n" +
		" Legacy: -Foo\n"

	assert.Equal(t, expected, buf.String())
}

func TestFormatText_NoDrift(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, baseline.FormatText(&buf, "HEAD", nil))

	assert.Equal(t, "Baseline HEAD: no declared dependency drift\n", buf.String())
}
