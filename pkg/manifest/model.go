// Package manifest parses Swift package manifests into a structured model.
//
// Two interchangeable backends produce the model: a lexical backend built on
// balanced-bracket section extraction, and a tree-sitter backend that folds
// the manifest's top-level declarations out of a full syntax tree. The
// default façade tries the syntax backend first and falls back to the
// lexical one on any parse failure.
package manifest

// FileName is the conventional file name of a Swift package manifest.
const FileName = "Package.swift"

// TargetKind identifies the declared kind of a target.
type TargetKind string

// Target kinds as declared in a manifest.
const (
	KindLibrary       TargetKind = "library"
	KindExecutable    TargetKind = "executable"
	KindTest          TargetKind = "test"
	KindMacro         TargetKind = "macro"
	KindPlugin        TargetKind = "plugin"
	KindSystemLibrary TargetKind = "system-library"
	KindBinary        TargetKind = "binary"
)

// OwnsSources reports whether targets of this kind have a source directory.
// System library and binary targets are declaration-only.
func (k TargetKind) OwnsSources() bool {
	return k != KindSystemLibrary && k != KindBinary
}

// DependencyKind distinguishes direct target references from product
// references that carry an owning package.
type DependencyKind string

// Dependency declaration kinds.
const (
	// DependencyTarget is a direct reference to a target by name.
	DependencyTarget DependencyKind = "target"
	// DependencyProduct references a product of an external package.
	DependencyProduct DependencyKind = "product"
)

// Dependency is one entry of a target's dependency list. Package is the
// owning package for product references and empty otherwise; Line is the
// 1-based manifest line, 0 when unknown.
type Dependency struct {
	Name    string         `json:"name" yaml:"name"`
	Kind    DependencyKind `json:"kind" yaml:"kind"`
	Package string         `json:"package,omitempty" yaml:"package,omitempty"`
	Line    int            `json:"line,omitempty" yaml:"line,omitempty"`
}

// Target is one compilable unit declared by the package.
type Target struct {
	Name         string
	Kind         TargetKind
	Dependencies []Dependency
	Path         string // custom source path, "" for the conventional layout
}

// ProductKind identifies the declared kind of a product.
type ProductKind string

// Product kinds as declared in a manifest.
const (
	ProductLibrary    ProductKind = "library"
	ProductExecutable ProductKind = "executable"
	ProductPlugin     ProductKind = "plugin"
)

// Product is a named grouping of targets the package exposes to dependents.
type Product struct {
	Name    string
	Kind    ProductKind
	Targets []string // member target names
	Package string   // owning package name
}

// ExternalDependency is a package-level reference to another package.
type ExternalDependency struct {
	Name string
	URL  string // remote origin, "" for local references
	Path string // local origin, "" for remote references
}

// Package is the parsed manifest model. It is immutable after parsing.
type Package struct {
	Name         string
	Path         string // directory containing the manifest, "" when parsed from memory
	Targets      []Target
	Products     []Product
	Dependencies []ExternalDependency
}

// Target returns the named target, or false when the package does not
// declare it.
func (p *Package) Target(name string) (*Target, bool) {
	for i := range p.Targets {
		if p.Targets[i].Name == name {
			return &p.Targets[i], true
		}
	}

	return nil, false
}

// InternalModules returns the sibling target names that source in the named
// target can import without declaring a dependency. Test, system-library and
// binary targets never provide importable modules, and the target itself is
// excluded.
func (p *Package) InternalModules(target string) map[string]struct{} {
	internal := make(map[string]struct{}, len(p.Targets))

	for _, t := range p.Targets {
		if t.Name == target {
			continue
		}

		if t.Kind == KindTest || t.Kind == KindSystemLibrary || t.Kind == KindBinary {
			continue
		}

		internal[t.Name] = struct{}{}
	}

	return internal
}
