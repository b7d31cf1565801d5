// Package scanner walks a target's Swift sources and extracts import
// statements with their line numbers, applying the built-in module list and
// a caller-supplied allow-list as a case-sensitive filter.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"github.com/src-d/enry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
)

// Sentinel errors for source scanning.
var (
	// ErrSourceDirNotFound reports that neither the custom path nor the
	// Sources/Tests conventions yielded a directory for a target.
	ErrSourceDirNotFound = errors.New("source directory not found")

	// ErrFileRead reports a source file or directory that could not be
	// read; it aborts the scan of the target that triggered it.
	ErrFileRead = errors.New("source read failed")
)

// Import is one import statement observed in a source file.
type Import struct {
	Module   string `json:"module" yaml:"module"`
	Testable bool   `json:"testable,omitempty" yaml:"testable,omitempty"`
	Line     int    `json:"line" yaml:"line"`
}

// SourceFile is one scanned file and the imports it declares. The same
// module may appear on distinct lines more than once; deduplication is the
// analyzer's concern.
type SourceFile struct {
	Path    string   `json:"path" yaml:"path"`
	Imports []Import `json:"imports" yaml:"imports"`
}

// Options configures a Scanner.
type Options struct {
	// Allow suppresses the named modules from scan results, matched
	// case-sensitively, in addition to the built-in module list.
	Allow []string

	// Excludes are path globs relative to the package root; matching
	// files are not scanned.
	Excludes []string

	// FileWorkers bounds concurrent file reads within one target.
	// Defaults to the number of CPUs.
	FileWorkers int

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Scanner extracts imports from a target's source tree.
type Scanner struct {
	allow    map[string]struct{}
	excludes []glob.Glob
	workers  int
	logger   *slog.Logger
}

// New builds a Scanner, compiling the exclude globs.
func New(opts Options) (*Scanner, error) {
	allow := make(map[string]struct{}, len(opts.Allow))
	for _, name := range opts.Allow {
		allow[name] = struct{}{}
	}

	excludes := make([]glob.Glob, 0, len(opts.Excludes))

	for _, pattern := range opts.Excludes {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude %q: %w", pattern, err)
		}

		excludes = append(excludes, compiled)
	}

	workers := opts.FileWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{allow: allow, excludes: excludes, workers: workers, logger: logger}, nil
}

// SourceRoot resolves the directory holding the target's sources: the custom
// path when one is declared, else Sources/<name>, else Tests/<name>.
func SourceRoot(pkgRoot string, target *manifest.Target) (string, error) {
	var candidates []string

	if target.Path != "" {
		candidates = []string{filepath.Join(pkgRoot, target.Path)}
	} else {
		candidates = []string{
			filepath.Join(pkgRoot, "Sources", target.Name),
			filepath.Join(pkgRoot, "Tests", target.Name),
		}
	}

	for _, dir := range candidates {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w: target %s (tried %s)", ErrSourceDirNotFound, target.Name, strings.Join(candidates, ", "))
}

// Scan walks the target's source root and extracts imports from every Swift
// file. File reads run concurrently; the first read failure aborts this
// target's scan and is reported with its path and cause.
func (s *Scanner) Scan(ctx context.Context, pkgRoot string, target *manifest.Target) ([]SourceFile, error) {
	root, err := SourceRoot(pkgRoot, target)
	if err != nil {
		return nil, err
	}

	paths, err := s.collectPaths(pkgRoot, root)
	if err != nil {
		return nil, err
	}

	files := make([]SourceFile, len(paths))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
			}

			if lang := enry.GetLanguage(filepath.Base(path), data); lang != "" && lang != "Swift" {
				s.logger.Debug("skipping non-swift file", "path", path, "language", lang)
				return nil
			}

			files[i] = SourceFile{Path: path, Imports: s.parseImports(data)}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	scanned := make([]SourceFile, 0, len(files))

	for _, file := range files {
		if file.Path != "" {
			scanned = append(scanned, file)
		}
	}

	return scanned, nil
}

// collectPaths walks root and returns the Swift files to scan, skipping
// hidden directories, vendored paths and excluded globs.
func (s *Scanner) collectPaths(pkgRoot, root string) ([]string, error) {
	var paths []string

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		rel, relErr := filepath.Rel(pkgRoot, path)
		if relErr != nil {
			rel = path
		}

		rel = filepath.ToSlash(rel)

		if enry.IsVendor(rel) {
			s.logger.Debug("skipping vendored path", "path", rel)
			return nil
		}

		if s.excluded(rel) {
			s.logger.Debug("skipping excluded path", "path", rel)
			return nil
		}

		if !strings.HasSuffix(entry.Name(), ".swift") {
			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileRead, root, walkErr)
	}

	return paths, nil
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.excludes {
		if pattern.Match(rel) {
			return true
		}
	}

	return false
}

// suppressed reports whether the module matches the built-in module list or
// the caller allow-list. Matching is case-sensitive by design.
func (s *Scanner) suppressed(module string) bool {
	if Builtin(module) {
		return true
	}

	_, ok := s.allow[module]

	return ok
}
