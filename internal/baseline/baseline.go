// Package baseline reads the manifest as it stood at a git revision and
// reports how each target's declared dependencies drifted since.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize/english"
	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// Baseline resolution failures.
var (
	ErrNoWorkTree      = errors.New("baseline requires a repository work tree")
	ErrNoManifestAtRev = errors.New("manifest not found at baseline revision")
)

// Drift is the declared dependency delta for one target since the baseline
// revision. Name slices are sorted.
type Drift struct {
	Target  string   `json:"target" yaml:"target"`
	Added   []string `json:"added,omitempty" yaml:"added,omitempty"`
	Removed []string `json:"removed,omitempty" yaml:"removed,omitempty"`

	// AddedUnused are added declarations the audit reported unused, the
	// usual sign of a dependency declared ahead of its first import.
	AddedUnused []string `json:"added_unused,omitempty" yaml:"added_unused,omitempty"`
}

// ManifestAt reads the package manifest from rev in the repository
// containing dir and parses it with backend. rev accepts anything git
// rev-parse does.
func ManifestAt(ctx context.Context, dir, rev string, backend manifest.Backend) (*manifest.Package, error) {
	parser, err := manifest.New(backend)
	if err != nil {
		return nil, err
	}

	repo, err := git2go.OpenRepositoryExtended(dir, 0, "")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	workdir := repo.Workdir()
	if workdir == "" {
		return nil, ErrNoWorkTree
	}

	src, err := manifestBlob(repo, workdir, dir, rev)
	if err != nil {
		return nil, err
	}

	pkg, err := parser.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse manifest at %s: %w", rev, err)
	}

	return pkg, nil
}

// manifestBlob resolves rev to a commit and reads the manifest blob out of
// its tree.
func manifestBlob(repo *git2go.Repository, workdir, dir, rev string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve package dir: %w", err)
	}

	rel, err := filepath.Rel(filepath.Clean(workdir), filepath.Join(absDir, manifest.FileName))
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%w: %s is outside the repository", ErrNoManifestAtRev, dir)
	}

	obj, err := repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("rev-parse %s: %w", rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("peel %s to commit: %w", rev, err)
	}
	defer peeled.Free()

	commit, err := peeled.AsCommit()
	if err != nil {
		return nil, fmt.Errorf("as commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(filepath.ToSlash(rel))
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrNoManifestAtRev, rel, rev)
	}

	if entry.Type != git2go.ObjectBlob {
		return nil, fmt.Errorf("%w: %s at %s is not a file", ErrNoManifestAtRev, rel, rev)
	}

	blob, err := repo.LookupBlob(entry.Id)
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}
	defer blob.Free()

	return blob.Contents(), nil
}

// Compare computes per-target drift between the baseline package and the
// audited report. The report supplies both the current declarations and
// the unused findings for the added-and-unused callout.
func Compare(base *manifest.Package, rep *audit.Report) []Drift {
	baselineDecls := make(map[string]map[string]struct{}, len(base.Targets))
	for _, target := range base.Targets {
		baselineDecls[target.Name] = declarationSet(target.Dependencies)
	}

	var drifts []Drift

	seen := make(map[string]struct{}, len(rep.Results))

	for i := range rep.Results {
		res := &rep.Results[i]
		seen[res.Target] = struct{}{}

		current := declarationSet(res.Declarations)
		before := baselineDecls[res.Target]

		drift := Drift{Target: res.Target}

		for name := range current {
			if _, ok := before[name]; !ok {
				drift.Added = append(drift.Added, name)
			}
		}

		for name := range before {
			if _, ok := current[name]; !ok {
				drift.Removed = append(drift.Removed, name)
			}
		}

		if len(drift.Added) == 0 && len(drift.Removed) == 0 {
			continue
		}

		slices.Sort(drift.Added)
		slices.Sort(drift.Removed)

		for _, name := range drift.Added {
			if slices.Contains(res.Unused, name) {
				drift.AddedUnused = append(drift.AddedUnused, name)
			}
		}

		drifts = append(drifts, drift)
	}

	// Targets deleted since the baseline surface as pure removals.
	for _, target := range base.Targets {
		if _, ok := seen[target.Name]; ok {
			continue
		}

		removed := slices.Sorted(maps.Keys(baselineDecls[target.Name]))
		if len(removed) == 0 {
			continue
		}

		drifts = append(drifts, Drift{Target: target.Name, Removed: removed})
	}

	slices.SortFunc(drifts, func(a, b Drift) int {
		return strings.Compare(a.Target, b.Target)
	})

	return drifts
}

func declarationSet(deps []manifest.Dependency) map[string]struct{} {
	set := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		set[dep.Name] = struct{}{}
	}

	return set
}

// FormatText renders drifts as terminal lines. Added names carry a plus,
// removed a minus, and added-but-unused names a trailing marker.
func FormatText(w io.Writer, rev string, drifts []Drift) error {
	var b strings.Builder

	if len(drifts) == 0 {
		fmt.Fprintf(&b, "Baseline %s: no declared dependency drift\n", rev)
	} else {
		fmt.Fprintf(&b, "Baseline %s: declared dependencies drifted in %s\n",
			rev, english.Plural(len(drifts), "target", ""))

		for _, drift := range drifts {
			fmt.Fprintf(&b, " %s:%s\n", drift.Target, driftMarks(drift))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write drift: %w", err)
	}

	return nil
}

func driftMarks(drift Drift) string {
	var b strings.Builder

	for _, name := range drift.Added {
		if slices.Contains(drift.AddedUnused, name) {
			fmt.Fprintf(&b, " +%s (unused)", name)

			continue
		}

		fmt.Fprintf(&b, " +%s", name)
	}

	for _, name := range drift.Removed {
		fmt.Fprintf(&b, " -%s", name)
	}

	return b.String()
}
