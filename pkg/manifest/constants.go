package manifest

import "strings"

// binding is one top-level let/var declaration of a manifest.
type binding struct {
	name  string
	typ   string // type annotation, "" when absent
	value string // string payload, bracket payload, or expression text
	off   int    // byte offset of value in the manifest source
}

// constants holds every top-level binding discovered in a manifest, keyed by
// how each one can be referenced later: plain string constants, array
// constants (targets, products or reusable dependency lists), single-value
// expression constants, and the Package(...) declaration itself.
type constants struct {
	strings    map[string]string
	arrays     map[string]binding
	arrayOrder []string
	exprs      map[string]binding
	pkg        *binding
}

func newConstants() constants {
	return constants{
		strings: map[string]string{},
		arrays:  map[string]binding{},
		exprs:   map[string]binding{},
	}
}

func (c *constants) setArray(name string, b binding) {
	if _, exists := c.arrays[name]; !exists {
		c.arrayOrder = append(c.arrayOrder, name)
	}

	c.arrays[name] = b
}

// collectConstants scans the manifest for top-level declarations. Depth is
// tracked across brackets and braces so bindings inside nested expressions
// are never mistaken for top-level ones. This is the lexical backend's
// declaration pass; the syntax backend reaches the same bindings through the
// parse tree.
func collectConstants(src string) constants {
	consts := newConstants()

	depth := 0
	i := 0

	for i < len(src) {
		if next, skipped := skipNonCode(src, i); skipped {
			i = next
			continue
		}

		switch src[i] {
		case '[', '(', '{':
			depth++
			i++

			continue
		case ']', ')', '}':
			depth--
			i++

			continue
		}

		if depth == 0 && (isWordAt(src, i, "let") || isWordAt(src, i, "var")) {
			i = parseBindingAt(src, i, &consts)
			continue
		}

		if depth == 0 && consts.pkg == nil && isWordAt(src, i, "Package") && isPackageCall(src[i:]) {
			expr, end := readExpression(src, i)
			consts.pkg = &binding{value: expr, off: i}
			i = end

			continue
		}

		i++
	}

	return consts
}

// parseBindingAt parses one top-level let or var binding starting at the
// keyword and records it. It returns the index just past the binding's
// value.
func parseBindingAt(src string, i int, consts *constants) int {
	const keywordLen = len("let")

	i = skipWhitespace(src, i+keywordLen)

	name := identToken(src[i:])
	if name == "" {
		return i
	}

	i = skipWhitespace(src, i+len(name))

	typ := ""

	if i < len(src) && src[i] == ':' {
		typeStart := i + 1
		i = scanTypeAnnotation(src, typeStart)
		typ = strings.TrimSpace(src[typeStart:i])
	}

	if i >= len(src) || src[i] != '=' {
		return i
	}

	i = skipWhitespace(src, i+1)
	if i >= len(src) {
		return i
	}

	switch src[i] {
	case '"':
		end := skipString(src, i)
		consts.strings[name] = unquoteSwift(src[i:end])

		return end
	case '[':
		payload, end, ok := extractBalanced(src, i)
		if !ok {
			return len(src)
		}

		consts.setArray(name, binding{name: name, typ: typ, value: payload, off: i + 1})

		return end
	default:
		expr, end := readExpression(src, i)

		if isPackageCall(expr) {
			if consts.pkg == nil {
				consts.pkg = &binding{name: name, typ: typ, value: expr, off: i}
			}

			return end
		}

		consts.exprs[name] = binding{name: name, typ: typ, value: expr, off: i}

		return end
	}
}

// scanTypeAnnotation advances from the byte after the colon to the `=` that
// terminates the annotation, counting brackets so array types do not end the
// scan early.
func scanTypeAnnotation(src string, i int) int {
	depth := 0

	for i < len(src) {
		if next, skipped := skipNonCode(src, i); skipped {
			i = next
			continue
		}

		switch src[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case '=':
			if depth == 0 {
				return i
			}
		case '\n':
			if depth == 0 {
				return i
			}
		}

		i++
	}

	return i
}

// readExpression consumes one expression starting at src[i]: everything up
// to the first newline or stray closing bracket at depth zero. Multi-line
// calls stay within the expression because their brackets hold the depth
// above zero.
func readExpression(src string, i int) (string, int) {
	start := i
	depth := 0

	for i < len(src) {
		if next, skipped := skipNonCode(src, i); skipped {
			i = next
			continue
		}

		c := src[i]

		if c == '\n' && depth == 0 {
			break
		}

		if (c == ']' || c == ')' || c == '}') && depth == 0 {
			break
		}

		switch c {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		}

		i++
	}

	return strings.TrimSpace(src[start:i]), i
}

// isPackageCall reports whether the expression is a Package(...) invocation.
func isPackageCall(expr string) bool {
	if identToken(expr) != "Package" {
		return false
	}

	rest := skipWhitespace(expr, len("Package"))

	return rest < len(expr) && expr[rest] == '('
}
