package manifest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/swift"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

var (
	swiftOnce sync.Once
	swiftLang *sitter.Language
)

func swiftLanguage() *sitter.Language {
	swiftOnce.Do(func() {
		swiftLang = sitter.NewLanguage(swift.GetLanguage())
	})

	return swiftLang
}

// SyntaxParser parses the manifest with the tree-sitter Swift grammar and
// folds the tree's top-level declarations into the package model. Typed
// top-level array bindings ([Target], [Product], [Package.Dependency]) take
// precedence over inline section arguments, and named constants are resolved
// wherever a dependency list references them.
type SyntaxParser struct {
	pool sync.Pool
}

// NewSyntaxParser returns the tree-sitter backend.
func NewSyntaxParser() *SyntaxParser {
	parser := &SyntaxParser{}
	parser.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(swiftLanguage())

			return tsParser
		},
	}

	return parser
}

// Parse implements Parser. A manifest whose tree contains parse errors is
// rejected so the auto façade can fall back to the lexical backend.
func (parser *SyntaxParser) Parse(ctx context.Context, src []byte) (*Package, error) {
	tsParser, ok := parser.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errParserPool
	}

	defer parser.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax backend: %w", err)
	}

	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("%w: empty syntax tree", ErrInvalidManifest)
	}

	if hasErrorNode(root) {
		return nil, fmt.Errorf("%w: manifest does not parse as Swift", ErrInvalidManifest)
	}

	text := string(src)

	return assemble(text, foldDeclarations(root, text), true)
}

// foldDeclarations threads the constants builder through the tree's
// top-level declarations, returning the updated builder after each step.
func foldDeclarations(root sitter.Node, src string) constants {
	consts := newConstants()

	count := root.NamedChildCount()
	for i := range count {
		consts = foldDeclaration(consts, root.NamedChild(i), src)
	}

	return consts
}

// foldDeclaration merges one top-level declaration into the builder. A
// declaration is either a let/var binding, recorded by kind of value, or a
// bare Package(...) expression statement.
func foldDeclaration(consts constants, node sitter.Node, src string) constants {
	if strings.Contains(node.Type(), "comment") {
		return consts
	}

	start := int(node.StartByte())
	end := int(node.EndByte())

	if start >= end || end > len(src) {
		return consts
	}

	span := src[start:end]

	letIdx := bindingKeywordIndex(span)
	callIdx := strings.IndexAny(span, "({")

	if letIdx >= 0 && (callIdx < 0 || letIdx < callIdx) {
		parseBindingAt(src, start+letIdx, &consts)
		return consts
	}

	if consts.pkg == nil && isPackageCall(strings.TrimSpace(span)) {
		pkgIdx := indexIdent(span, "Package")
		if pkgIdx >= 0 {
			expr, _ := readExpression(src, start+pkgIdx)
			consts.pkg = &binding{value: expr, off: start + pkgIdx}
		}
	}

	return consts
}

// bindingKeywordIndex finds the let or var keyword that opens a binding
// declaration, or -1.
func bindingKeywordIndex(span string) int {
	letIdx := indexIdent(span, "let")
	varIdx := indexIdent(span, "var")

	switch {
	case letIdx < 0:
		return varIdx
	case varIdx < 0:
		return letIdx
	case varIdx < letIdx:
		return varIdx
	default:
		return letIdx
	}
}

// hasErrorNode walks the whole tree looking for ERROR nodes left by
// tree-sitter's recovery.
func hasErrorNode(node sitter.Node) bool {
	if node.Type() == "ERROR" {
		return true
	}

	count := node.ChildCount()
	for i := range count {
		if hasErrorNode(node.Child(i)) {
			return true
		}
	}

	return false
}
