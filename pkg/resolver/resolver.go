// Package resolver locates materialized checkouts of a package's external
// dependencies and exposes the products their manifests declare.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

const (
	// checkoutsDir is where the Swift build system materializes resolved
	// dependencies, relative to a package root.
	checkoutsDir = ".build/checkouts"

	// maxAscent bounds how many parent directories are searched for a
	// checkouts directory.
	maxAscent = 5
)

// ExternalPackage is a resolved checkout of a declared external dependency.
type ExternalPackage struct {
	// Name is the dependency name as declared in the depending manifest.
	Name string `json:"name" yaml:"name"`
	// Path is the checkout directory the name matched.
	Path string `json:"path" yaml:"path"`
	// Products are the products declared by the checkout's own manifest.
	Products []manifest.Product `json:"products" yaml:"products"`
}

// Options configures a Resolver.
type Options struct {
	// Backend selects the manifest backend for checkout manifests.
	Backend manifest.Backend

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver matches declared external dependencies against checkout
// directories and parses each matched manifest at most once per name.
type Resolver struct {
	backend manifest.Backend
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*ExternalPackage // nil entry records a failed resolution
	group singleflight.Group
}

// New returns a Resolver. An unknown backend is rejected up front.
func New(opts Options) (*Resolver, error) {
	if !opts.Backend.Valid() {
		return nil, fmt.Errorf("%w: %q", manifest.ErrUnknownBackend, opts.Backend)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		backend: opts.Backend,
		logger:  logger,
		cache:   make(map[string]*ExternalPackage),
	}, nil
}

// Resolve finds the checkouts directory near pkg and resolves every declared
// external dependency with a matching checkout. A missing checkouts
// directory, an unmatched name, or an unparsable checkout shrinks the result
// instead of failing the call. The only returned error is ctx cancellation.
func (r *Resolver) Resolve(ctx context.Context, pkg *manifest.Package) ([]ExternalPackage, error) {
	dir, ok := findCheckouts(pkg.Path)
	if !ok {
		r.logger.Debug("no checkouts directory", "package", pkg.Name, "path", pkg.Path)

		return nil, nil
	}

	candidates, err := checkoutNames(dir)
	if err != nil {
		r.logger.Debug("checkouts directory unreadable", "path", dir, "error", err)

		return nil, nil
	}

	resolved := make([]ExternalPackage, 0, len(pkg.Dependencies))

	for _, dep := range pkg.Dependencies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ext := r.resolve(ctx, dep.Name, dir, candidates); ext != nil {
			resolved = append(resolved, *ext)
		}
	}

	return resolved, nil
}

// resolve returns the cached resolution for name, filling the cache on first
// use. Concurrent first accesses share a single lookup.
func (r *Resolver) resolve(ctx context.Context, name, dir string, candidates []string) *ExternalPackage {
	r.mu.RLock()
	ext, hit := r.cache[name]
	r.mu.RUnlock()

	if hit {
		return ext
	}

	v, _, _ := r.group.Do(name, func() (any, error) {
		looked := r.lookup(ctx, name, dir, candidates)

		r.mu.Lock()
		r.cache[name] = looked
		r.mu.Unlock()

		return looked, nil
	})

	ext, _ = v.(*ExternalPackage)

	return ext
}

// lookup matches name against the candidate checkout directories and parses
// the winning manifest for its products.
func (r *Resolver) lookup(ctx context.Context, name, dir string, candidates []string) *ExternalPackage {
	match, ok := matchCheckout(name, candidates)
	if !ok {
		r.logger.Debug("dependency has no matching checkout", "dependency", name)

		return nil
	}

	path := filepath.Join(dir, match)

	pkg, err := manifest.ParseDir(ctx, path, r.backend)
	if err != nil {
		r.logger.Debug("checkout manifest not parsable",
			"dependency", name, "path", path, "error", err)

		return nil
	}

	return &ExternalPackage{Name: name, Path: path, Products: pkg.Products}
}

// findCheckouts walks upward from root looking for a materialized checkouts
// directory.
func findCheckouts(root string) (string, bool) {
	dir := root

	for range maxAscent {
		candidate := filepath.Join(dir, checkoutsDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return "", false
}

// checkoutNames lists the subdirectories of the checkouts directory.
func checkoutNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// matchCheckout picks the checkout directory for a declared dependency name.
// Exact matches win over case-insensitive matches, which win over substring
// containment in either direction. Candidates are tried in directory order,
// first hit wins.
func matchCheckout(name string, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if candidate == name {
			return candidate, true
		}
	}

	for _, candidate := range candidates {
		if strings.EqualFold(candidate, name) {
			return candidate, true
		}
	}

	lowered := strings.ToLower(name)

	for _, candidate := range candidates {
		lc := strings.ToLower(candidate)
		if strings.Contains(lc, lowered) || strings.Contains(lowered, lc) {
			return candidate, true
		}
	}

	return "", false
}

// ProductMap flattens the products of the given packages into a product name
// to member-target index. Later packages overwrite earlier ones when two of
// them export the same product name.
func ProductMap(pkgs []ExternalPackage) map[string][]string {
	products := make(map[string][]string, len(pkgs))

	for _, pkg := range pkgs {
		for _, product := range pkg.Products {
			products[product.Name] = product.Targets
		}
	}

	return products
}
