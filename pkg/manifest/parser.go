package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend selects which manifest parser implementation to use.
type Backend string

// Available parser backends.
const (
	// BackendAuto tries the syntax backend and falls back to the lexical
	// one on any parse failure.
	BackendAuto Backend = "auto"
	// BackendSyntax parses the manifest with the tree-sitter Swift grammar.
	BackendSyntax Backend = "syntax"
	// BackendLexical parses the manifest with keyword matching and
	// balanced-bracket section extraction.
	BackendLexical Backend = "lexical"
)

// Valid reports whether the backend names a known implementation. The empty
// string counts as auto.
func (b Backend) Valid() bool {
	switch b {
	case BackendAuto, BackendSyntax, BackendLexical, "":
		return true
	default:
		return false
	}
}

// Parser turns raw manifest text into a Package model.
type Parser interface {
	Parse(ctx context.Context, src []byte) (*Package, error)
}

// New returns the parser for the given backend.
func New(backend Backend) (Parser, error) {
	switch backend {
	case BackendAuto, "":
		return &autoParser{syntax: NewSyntaxParser(), lexical: NewLexicalParser()}, nil
	case BackendSyntax:
		return NewSyntaxParser(), nil
	case BackendLexical:
		return NewLexicalParser(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// autoParser attempts the syntax backend and retries with the lexical
// backend on failure, without surfacing the first error to the caller.
type autoParser struct {
	syntax  Parser
	lexical Parser
}

// Parse implements Parser.
func (parser *autoParser) Parse(ctx context.Context, src []byte) (*Package, error) {
	pkg, err := parser.syntax.Parse(ctx, src)
	if err == nil {
		return pkg, nil
	}

	return parser.lexical.Parse(ctx, src)
}

// Parse parses manifest text with the default auto backend.
func Parse(ctx context.Context, src []byte) (*Package, error) {
	parser, err := New(BackendAuto)
	if err != nil {
		return nil, err
	}

	return parser.Parse(ctx, src)
}

// ParseFile reads and parses the manifest at path with the given backend.
// The returned package's Path is the manifest's directory. A missing file is
// reported as ErrManifestNotFound.
func ParseFile(ctx context.Context, path string, backend Backend) (*Package, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}

		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	parser, err := New(backend)
	if err != nil {
		return nil, err
	}

	pkg, err := parser.Parse(ctx, src)
	if err != nil {
		return nil, err
	}

	pkg.Path = filepath.Dir(path)

	return pkg, nil
}

// ParseDir parses the conventional Package.swift inside dir.
func ParseDir(ctx context.Context, dir string, backend Backend) (*Package, error) {
	return ParseFile(ctx, filepath.Join(dir, FileName), backend)
}
