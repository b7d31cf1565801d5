package manifest

import (
	"fmt"
	"path"
	"strings"
)

// maxConstDepth bounds constant-reference resolution so a reference cycle
// cannot recurse forever.
const maxConstDepth = 4

// sectionKind names the three top-level manifest sections a typed array
// binding can feed.
type sectionKind int

const (
	sectionTargets sectionKind = iota
	sectionProducts
	sectionDependencies
)

// sectionSource is one resolved section payload: either the inline bracket
// contents of a Package argument or the payload of a top-level array
// binding.
type sectionSource struct {
	payload string
	off     int
	ok      bool
}

func (s sectionSource) args() []callArg {
	if !s.ok {
		return nil
	}

	return splitArgs(s.payload, s.off)
}

// assemble builds the package model from the collected constants and the
// inline Package arguments. preferBindings gives typed top-level array
// bindings precedence over inline section arguments, which is how the syntax
// backend resolves declarations; the lexical backend reads inline sections
// first and follows identifier references on demand.
func assemble(src string, consts constants, preferBindings bool) (*Package, error) {
	if consts.pkg == nil {
		return nil, fmt.Errorf("%w: no Package declaration", ErrInvalidManifest)
	}

	call := consts.pkg.value

	open := strings.Index(call, "(")
	if open < 0 {
		return nil, fmt.Errorf("%w: malformed Package declaration", ErrInvalidManifest)
	}

	payload, _, ok := extractBalanced(call, open)
	if !ok {
		return nil, fmt.Errorf("%w: unterminated Package declaration", ErrInvalidManifest)
	}

	args := splitArgs(payload, consts.pkg.off+open+1)

	name := resolveString(args, "name", consts)
	if name == "" {
		return nil, fmt.Errorf("%w: package name cannot be resolved", ErrInvalidManifest)
	}

	pkg := &Package{
		Name:         name,
		Dependencies: parseExternalDeps(resolveSection(args, "dependencies", sectionDependencies, consts, preferBindings), consts),
		Products:     parseProducts(resolveSection(args, "products", sectionProducts, consts, preferBindings), consts, name),
		Targets:      parseTargets(src, resolveSection(args, "targets", sectionTargets, consts, preferBindings), consts),
	}

	return pkg, nil
}

// bindingSection classifies a top-level array binding by its type
// annotation: [Target] feeds the targets section, [Product] the products
// section and [Package.Dependency] the package-level dependency list.
// [Target.Dependency] arrays are reusable dependency lists referenced by
// identifier and never bind a section.
func bindingSection(typ string) (sectionKind, bool) {
	t := strings.ReplaceAll(typ, " ", "")
	t = strings.TrimPrefix(t, "[")
	t = strings.TrimSuffix(t, "]")

	switch {
	case t == "Target" || strings.HasSuffix(t, ".Target"):
		return sectionTargets, true
	case t == "Product" || strings.HasSuffix(t, ".Product"):
		return sectionProducts, true
	case t == "Package.Dependency" || strings.HasSuffix(t, ".Package.Dependency"):
		return sectionDependencies, true
	}

	return 0, false
}

// resolveSection picks the payload for one top-level section. With
// preferBindings set, a typed top-level array binding wins over the inline
// argument; otherwise the inline argument is used, resolving an identifier
// value through the array constants.
func resolveSection(args []callArg, label string, kind sectionKind, consts constants, preferBindings bool) sectionSource {
	if preferBindings {
		for _, name := range consts.arrayOrder {
			bound := consts.arrays[name]
			if k, ok := bindingSection(bound.typ); ok && k == kind {
				return sectionSource{payload: bound.value, off: bound.off, ok: true}
			}
		}
	}

	arg, ok := argByLabel(args, label)
	if !ok {
		return sectionSource{}
	}

	if strings.HasPrefix(arg.value, "[") {
		payload, _, balanced := extractBalanced(arg.value, 0)
		if !balanced {
			return sectionSource{}
		}

		return sectionSource{payload: payload, off: arg.off + 1, ok: true}
	}

	if id := identToken(arg.value); id != "" {
		if bound, exists := consts.arrays[id]; exists {
			return sectionSource{payload: bound.value, off: bound.off, ok: true}
		}
	}

	return sectionSource{}
}

// resolveString resolves a labeled call argument to a string value: either a
// literal or an identifier referencing a top-level string constant.
func resolveString(args []callArg, label string, consts constants) string {
	arg, ok := argByLabel(args, label)
	if !ok {
		return ""
	}

	if strings.HasPrefix(arg.value, `"`) {
		val, _, found := stringLiteral(arg.value)
		if !found {
			return ""
		}

		return val
	}

	if id := identToken(arg.value); id != "" {
		return consts.strings[id]
	}

	return ""
}

// splitCall splits a .selector(...) expression into its selector name and
// argument payload. off is the expression's absolute offset, used to keep
// the payload position absolute as well.
func splitCall(value string, off int) (selector, payload string, payloadOff int, ok bool) {
	if !strings.HasPrefix(value, ".") {
		return "", "", 0, false
	}

	selector = identToken(value[1:])
	if selector == "" {
		return "", "", 0, false
	}

	open := strings.Index(value, "(")
	if open < 0 {
		return "", "", 0, false
	}

	payload, _, ok = extractBalanced(value, open)
	if !ok {
		return "", "", 0, false
	}

	return selector, payload, off + open + 1, true
}

func targetKind(selector string) (TargetKind, bool) {
	switch selector {
	case "target":
		return KindLibrary, true
	case "executableTarget":
		return KindExecutable, true
	case "testTarget":
		return KindTest, true
	case "macro":
		return KindMacro, true
	case "plugin":
		return KindPlugin, true
	case "systemLibrary":
		return KindSystemLibrary, true
	case "binaryTarget":
		return KindBinary, true
	}

	return "", false
}

// parseTargets parses the targets section. Entries that do not look like a
// target declaration are skipped rather than failing the parse.
func parseTargets(src string, sec sectionSource, consts constants) []Target {
	entries := sec.args()
	targets := make([]Target, 0, len(entries))

	for _, entry := range entries {
		if target, ok := parseTargetEntry(src, entry, consts, 0); ok {
			targets = append(targets, target)
		}
	}

	return targets
}

func parseTargetEntry(src string, entry callArg, consts constants, depth int) (Target, bool) {
	if depth > maxConstDepth {
		return Target{}, false
	}

	if id := identToken(entry.value); id != "" {
		bound, ok := consts.exprs[id]
		if !ok {
			return Target{}, false
		}

		return parseTargetEntry(src, callArg{value: bound.value, off: bound.off}, consts, depth+1)
	}

	selector, payload, payloadOff, ok := splitCall(entry.value, entry.off)
	if !ok {
		return Target{}, false
	}

	kind, ok := targetKind(selector)
	if !ok {
		return Target{}, false
	}

	args := splitArgs(payload, payloadOff)

	name := resolveString(args, "name", consts)
	if name == "" {
		return Target{}, false
	}

	return Target{
		Name:         name,
		Kind:         kind,
		Path:         resolveString(args, "path", consts),
		Dependencies: parseTargetDependencies(src, args, entry, consts),
	}, true
}

// parseTargetDependencies extracts a target's dependency list. The list may
// be inline or reference a top-level array constant; a target with no
// dependencies key gets an empty list, never a missing one. Recorded lines
// point at the first line of the declaring span on which the dependency's
// name token appears.
func parseTargetDependencies(src string, args []callArg, entry callArg, consts constants) []Dependency {
	arg, ok := argByLabel(args, "dependencies")
	if !ok {
		return []Dependency{}
	}

	payload, payloadOff := "", 0
	spanText, spanOff := entry.value, entry.off

	switch {
	case strings.HasPrefix(arg.value, "["):
		inner, _, balanced := extractBalanced(arg.value, 0)
		if !balanced {
			return []Dependency{}
		}

		payload, payloadOff = inner, arg.off+1
	default:
		id := identToken(arg.value)

		bound, exists := consts.arrays[id]
		if id == "" || !exists {
			return []Dependency{}
		}

		payload, payloadOff = bound.value, bound.off
		spanText, spanOff = bound.value, bound.off
	}

	entries := splitArgs(payload, payloadOff)
	deps := make([]Dependency, 0, len(entries))

	for _, e := range entries {
		dep, parsed := parseDependencyEntry(e, consts, 0)
		if !parsed {
			continue
		}

		dep.Line = dependencyLine(src, spanText, spanOff, dep.Name, e.off)
		deps = append(deps, dep)
	}

	return deps
}

// dependencyLine locates the first line of the declaring span on which the
// dependency name appears, preferring the quoted form over a bare
// identifier. When the name only exists behind a constant reference, the
// entry's own line is used.
func dependencyLine(src, span string, spanOff int, name string, entryOff int) int {
	if idx := strings.Index(span, `"`+name+`"`); idx >= 0 {
		return lineAt(src, spanOff+idx)
	}

	if idx := indexIdent(span, name); idx >= 0 {
		return lineAt(src, spanOff+idx)
	}

	if entryOff > 0 {
		return lineAt(src, entryOff)
	}

	return 0
}

// parseDependencyEntry classifies one dependency list entry. Bare strings,
// .target(name:) and .byName(name:) are direct target references;
// .product(name:package:) is a product reference; a plain identifier is
// resolved through the top-level constants.
func parseDependencyEntry(entry callArg, consts constants, depth int) (Dependency, bool) {
	if depth > maxConstDepth {
		return Dependency{}, false
	}

	value := entry.value

	if strings.HasPrefix(value, `"`) {
		name, _, ok := stringLiteral(value)
		if !ok || name == "" {
			return Dependency{}, false
		}

		return Dependency{Name: name, Kind: DependencyTarget}, true
	}

	if strings.HasPrefix(value, ".") {
		selector, payload, payloadOff, ok := splitCall(value, entry.off)
		if !ok {
			return Dependency{}, false
		}

		args := splitArgs(payload, payloadOff)

		switch selector {
		case "product":
			name := resolveString(args, "name", consts)
			if name == "" {
				return Dependency{}, false
			}

			return Dependency{Name: name, Kind: DependencyProduct, Package: resolveString(args, "package", consts)}, true
		case "target", "byName":
			name := resolveString(args, "name", consts)
			if name == "" {
				return Dependency{}, false
			}

			return Dependency{Name: name, Kind: DependencyTarget}, true
		}

		return Dependency{}, false
	}

	id := identToken(value)
	if id == "" {
		return Dependency{}, false
	}

	if bound, ok := consts.exprs[id]; ok {
		return parseDependencyEntry(callArg{value: bound.value, off: bound.off}, consts, depth+1)
	}

	if name, ok := consts.strings[id]; ok {
		return Dependency{Name: name, Kind: DependencyTarget}, true
	}

	return Dependency{}, false
}

func productKind(selector string) (ProductKind, bool) {
	switch selector {
	case "library":
		return ProductLibrary, true
	case "executable":
		return ProductExecutable, true
	case "plugin":
		return ProductPlugin, true
	}

	return "", false
}

// parseProducts parses the products section. owner is the parsed package's
// own name and is recorded on every product.
func parseProducts(sec sectionSource, consts constants, owner string) []Product {
	entries := sec.args()
	products := make([]Product, 0, len(entries))

	for _, entry := range entries {
		selector, payload, payloadOff, ok := splitCall(entry.value, entry.off)
		if !ok {
			continue
		}

		kind, ok := productKind(selector)
		if !ok {
			continue
		}

		args := splitArgs(payload, payloadOff)

		name := resolveString(args, "name", consts)
		if name == "" {
			continue
		}

		products = append(products, Product{
			Name:    name,
			Kind:    kind,
			Targets: memberTargets(args, consts),
			Package: owner,
		})
	}

	return products
}

// memberTargets reads a product's targets array, a list of plain strings or
// string constants.
func memberTargets(args []callArg, consts constants) []string {
	arg, ok := argByLabel(args, "targets")
	if !ok {
		return nil
	}

	payload, payloadOff := "", 0

	switch {
	case strings.HasPrefix(arg.value, "["):
		inner, _, balanced := extractBalanced(arg.value, 0)
		if !balanced {
			return nil
		}

		payload, payloadOff = inner, arg.off+1
	default:
		id := identToken(arg.value)

		bound, exists := consts.arrays[id]
		if id == "" || !exists {
			return nil
		}

		payload, payloadOff = bound.value, bound.off
	}

	var members []string

	for _, e := range splitArgs(payload, payloadOff) {
		if strings.HasPrefix(e.value, `"`) {
			if name, _, found := stringLiteral(e.value); found && name != "" {
				members = append(members, name)
			}

			continue
		}

		if id := identToken(e.value); id != "" {
			if name, found := consts.strings[id]; found {
				members = append(members, name)
			}
		}
	}

	return members
}

// parseExternalDeps parses the package-level dependencies section into
// external references. The declared name is the explicit name: argument when
// present, otherwise the last path component of the origin with any .git
// suffix stripped.
func parseExternalDeps(sec sectionSource, consts constants) []ExternalDependency {
	entries := sec.args()
	deps := make([]ExternalDependency, 0, len(entries))

	for _, entry := range entries {
		if dep, ok := parseExternalEntry(entry, consts, 0); ok {
			deps = append(deps, dep)
		}
	}

	return deps
}

func parseExternalEntry(entry callArg, consts constants, depth int) (ExternalDependency, bool) {
	if depth > maxConstDepth {
		return ExternalDependency{}, false
	}

	if id := identToken(entry.value); id != "" {
		bound, ok := consts.exprs[id]
		if !ok {
			return ExternalDependency{}, false
		}

		return parseExternalEntry(callArg{value: bound.value, off: bound.off}, consts, depth+1)
	}

	selector, payload, payloadOff, ok := splitCall(entry.value, entry.off)
	if !ok || selector != "package" {
		return ExternalDependency{}, false
	}

	args := splitArgs(payload, payloadOff)

	dep := ExternalDependency{
		URL:  resolveString(args, "url", consts),
		Path: resolveString(args, "path", consts),
	}

	switch name := resolveString(args, "name", consts); {
	case name != "":
		dep.Name = name
	case dep.URL != "":
		dep.Name = originBase(dep.URL)
	case dep.Path != "":
		dep.Name = originBase(dep.Path)
	default:
		return ExternalDependency{}, false
	}

	if dep.Name == "" {
		return ExternalDependency{}, false
	}

	return dep, true
}

// originBase is the last path component of a package origin, without any
// .git suffix. It covers https URLs, scp-style remotes and local paths.
func originBase(origin string) string {
	trimmed := strings.TrimSuffix(origin, "/")

	base := path.Base(trimmed)
	if i := strings.LastIndex(base, ":"); i >= 0 {
		base = base[i+1:]
	}

	base = strings.TrimSuffix(base, ".git")
	if base == "." || base == "/" {
		return ""
	}

	return base
}
