package manifest

import "context"

// LexicalParser extracts the package model by keyword matching plus
// balanced-bracket section extraction. Section payloads are cut by counting
// depth across every bracket kind, so a nested conditional sub-expression
// such as .when(platforms: [.iOS]) never truncates the declarations that
// follow it.
type LexicalParser struct{}

// NewLexicalParser returns the lexical backend.
func NewLexicalParser() *LexicalParser {
	return &LexicalParser{}
}

// Parse implements Parser.
func (parser *LexicalParser) Parse(_ context.Context, src []byte) (*Package, error) {
	text := string(src)

	return assemble(text, collectConstants(text), false)
}
