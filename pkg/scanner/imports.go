package scanner

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// importPattern matches one import statement: zero or more attribute tokens,
// an optional access-level keyword, the import keyword, an optional import
// kind, then a dotted module path of which only the first segment names the
// module.
var importPattern = regexp.MustCompile(
	`^(?:@[A-Za-z_][A-Za-z0-9_]*(?:\([^)]*\))?\s+)*` +
		`(?:(?:public|package|internal|fileprivate|private|open)\s+)?` +
		`import\s+` +
		`(?:(?:typealias|struct|class|enum|protocol|let|var|func)\s+)?` +
		`([A-Za-z_][A-Za-z0-9_]*)`,
)

const testableMarker = "@testable"

// Reader buffer sizing for source files with very long lines.
const (
	scanBufRegular = 256 * 1024
	scanBufMax     = 1024 * 1024
)

// parseImports extracts the import statements from one file's contents,
// skipping blank lines and comment lines and suppressing allowed modules.
func (s *Scanner) parseImports(data []byte) []Import {
	var imports []Import

	reader := bufio.NewScanner(bytes.NewReader(data))
	reader.Buffer(make([]byte, 0, scanBufRegular), scanBufMax)

	lineNo := 0

	for reader.Scan() {
		lineNo++
		line := reader.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed) {
			continue
		}

		module, ok := matchImport(trimmed)
		if !ok || s.suppressed(module) {
			continue
		}

		imports = append(imports, Import{
			Module:   module,
			Testable: strings.Contains(line, testableMarker),
			Line:     lineNo,
		})
	}

	return imports
}

// isCommentLine reports whether the trimmed line opens or continues a
// comment. Continuation lines of block comments conventionally begin with an
// asterisk.
func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*")
}

// matchImport returns the module named by an import line: the first segment
// of the dotted path.
func matchImport(trimmed string) (string, bool) {
	match := importPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return "", false
	}

	return match[1], true
}
