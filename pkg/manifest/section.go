package manifest

import "strings"

// Low-level manifest text scanning shared by both parser backends. Every
// scanner here skips string literals and comments, so bracket depth is only
// ever counted on actual code.

// skipWhitespace returns the index of the first non-whitespace byte at or
// after i.
func skipWhitespace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}

	return len(s)
}

// skipNonCode consumes the string literal or comment starting at i, if any.
// It returns the index just past the construct and true, or i and false when
// s[i] starts neither.
func skipNonCode(s string, i int) (int, bool) {
	switch {
	case s[i] == '"':
		return skipString(s, i), true
	case strings.HasPrefix(s[i:], "//"):
		for i < len(s) && s[i] != '\n' {
			i++
		}

		return i, true
	case strings.HasPrefix(s[i:], "/*"):
		depth := 1
		i += 2

		for i < len(s) && depth > 0 {
			switch {
			case strings.HasPrefix(s[i:], "/*"):
				depth++
				i += 2
			case strings.HasPrefix(s[i:], "*/"):
				depth--
				i += 2
			default:
				i++
			}
		}

		return i, true
	}

	return i, false
}

// skipString consumes the string literal starting at the quote s[i] and
// returns the index just past its closing quote. Both single-line and
// triple-quoted literals are handled; escapes are honored.
func skipString(s string, i int) int {
	if strings.HasPrefix(s[i:], `"""`) {
		end := strings.Index(s[i+3:], `"""`)
		if end < 0 {
			return len(s)
		}

		return i + 3 + end + 3
	}

	i++

	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		case '\n':
			// Unterminated single-line literal, bail at the line end.
			return i
		default:
			i++
		}
	}

	return len(s)
}

// unquoteSwift strips the surrounding quotes from a literal and resolves the
// escapes manifests realistically contain.
func unquoteSwift(raw string) string {
	raw = strings.TrimPrefix(raw, `"`)
	raw = strings.TrimSuffix(raw, `"`)

	if !strings.Contains(raw, `\`) {
		return raw
	}

	var b strings.Builder

	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
		}

		b.WriteByte(raw[i])
	}

	return b.String()
}

// extractBalanced returns the text enclosed by the bracket at s[open] and
// the index just past its matching close. Depth is counted across every
// bracket kind, so a nested sub-expression such as a platform list inside a
// condition argument cannot end the section early.
func extractBalanced(s string, open int) (inner string, end int, ok bool) {
	if open < 0 || open >= len(s) || (s[open] != '[' && s[open] != '(') {
		return "", open, false
	}

	depth := 0
	i := open

	for i < len(s) {
		if next, skipped := skipNonCode(s, i); skipped {
			i = next
			continue
		}

		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}

		i++
	}

	return "", len(s), false
}

// callArg is one comma-separated element of a call argument list or array
// literal. Label is empty for positional elements. Off is the value's byte
// offset in the full manifest source.
type callArg struct {
	label string
	value string
	off   int
}

// splitArgs splits a call-argument or array payload into its top-level
// elements. base is the payload's offset in the full source, carried through
// so every element keeps an absolute position.
func splitArgs(payload string, base int) []callArg {
	var args []callArg

	start := 0
	depth := 0
	i := 0

	for i < len(payload) {
		if next, skipped := skipNonCode(payload, i); skipped {
			i = next
			continue
		}

		switch payload[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				args = appendArg(args, payload, start, i, base)
				start = i + 1
			}
		}

		i++
	}

	return appendArg(args, payload, start, len(payload), base)
}

func appendArg(args []callArg, payload string, start, end, base int) []callArg {
	raw := payload[start:end]

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return args
	}

	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	label, value, valueOff := splitLabel(trimmed, base+start+lead)

	return append(args, callArg{label: label, value: value, off: valueOff})
}

// splitLabel separates a leading `label:` from an argument, returning the
// value and its absolute offset. Positional arguments come back with an
// empty label.
func splitLabel(s string, off int) (label, value string, valueOff int) {
	n := 0
	for n < len(s) && isIdentChar(s[n]) {
		n++
	}

	if n == 0 {
		return "", s, off
	}

	rest := n
	for rest < len(s) && (s[rest] == ' ' || s[rest] == '\t') {
		rest++
	}

	if rest >= len(s) || s[rest] != ':' {
		return "", s, off
	}

	valStart := skipWhitespace(s, rest+1)

	return s[:n], strings.TrimRight(s[valStart:], " \t\r\n"), off + valStart
}

// argByLabel returns the first argument carrying the given label.
func argByLabel(args []callArg, label string) (callArg, bool) {
	for _, arg := range args {
		if arg.label == label {
			return arg, true
		}
	}

	return callArg{}, false
}

// stringLiteral extracts the first quoted literal in s, returning its value
// and the offset of the opening quote relative to s.
func stringLiteral(s string) (val string, off int, ok bool) {
	i := 0

	for i < len(s) {
		if strings.HasPrefix(s[i:], "//") || strings.HasPrefix(s[i:], "/*") {
			next, _ := skipNonCode(s, i)
			i = next

			continue
		}

		if s[i] == '"' {
			end := skipString(s, i)

			return unquoteSwift(s[i:end]), i, true
		}

		i++
	}

	return "", 0, false
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// identToken returns the identifier at the start of s, or "" when s does not
// begin with one.
func identToken(s string) string {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}

	if i == 0 || (s[0] >= '0' && s[0] <= '9') {
		return ""
	}

	return s[:i]
}

// isWordAt reports whether the identifier word starts exactly at s[i].
func isWordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}

	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}

	after := i + len(word)

	return after >= len(s) || !isIdentChar(s[after])
}

// indexIdent finds the first occurrence of name in s with identifier
// boundaries on both sides, or -1.
func indexIdent(s, name string) int {
	if name == "" {
		return -1
	}

	for start := 0; ; {
		idx := strings.Index(s[start:], name)
		if idx < 0 {
			return -1
		}

		abs := start + idx
		after := abs + len(name)

		if (abs == 0 || !isIdentChar(s[abs-1])) && (after >= len(s) || !isIdentChar(s[after])) {
			return abs
		}

		start = abs + 1
	}
}

// lineAt returns the 1-based line number of byte offset off in src.
func lineAt(src string, off int) int {
	if off < 0 {
		return 0
	}

	if off > len(src) {
		off = len(src)
	}

	return 1 + strings.Count(src[:off], "\n")
}
