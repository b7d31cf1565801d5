// Package audit reconciles a package's declared target dependencies with the
// imports its sources actually use. Every relevant name ends up in exactly
// one classification: missing, unused, correct, product-satisfied or
// redundant.
package audit

import (
	"slices"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

// ProductSatisfied is an import that no direct declaration covers but that a
// declared product reaches through one of its member targets.
type ProductSatisfied struct {
	Import  string `json:"import" yaml:"import"`
	Product string `json:"product" yaml:"product"`
	Package string `json:"package" yaml:"package"`
}

// Redundant is a direct target dependency that a declared product already
// provides through its member targets.
type Redundant struct {
	Target  string `json:"target" yaml:"target"`
	Product string `json:"product" yaml:"product"`
	Package string `json:"package" yaml:"package"`
}

// Result classifies one target's declared dependencies against its observed
// imports. Missing, Unused and Correct are sorted and pairwise disjoint;
// findings keep manifest declaration order. A Result is not mutated after
// construction.
type Result struct {
	Target           string               `json:"target" yaml:"target"`
	Kind             manifest.TargetKind  `json:"kind" yaml:"kind"`
	Missing          []string             `json:"missing,omitempty" yaml:"missing,omitempty"`
	Unused           []string             `json:"unused,omitempty" yaml:"unused,omitempty"`
	Correct          []string             `json:"correct,omitempty" yaml:"correct,omitempty"`
	ProductSatisfied []ProductSatisfied   `json:"product_satisfied,omitempty" yaml:"product_satisfied,omitempty"`
	Redundant        []Redundant          `json:"redundant,omitempty" yaml:"redundant,omitempty"`
	SourceFiles      []scanner.SourceFile `json:"source_files,omitempty" yaml:"source_files,omitempty"`

	// Declarations echoes the target's manifest dependency entries so that
	// renderers can point at declaration lines without reparsing.
	Declarations []manifest.Dependency `json:"declarations,omitempty" yaml:"declarations,omitempty"`

	// HasError is set when any import is missing a declaration. HasWarning
	// is set on unused or redundant declarations. Renderers map the former
	// to error severity and the latter to warning severity.
	HasError   bool `json:"has_error" yaml:"has_error"`
	HasWarning bool `json:"has_warning" yaml:"has_warning"`
}

// Clean reports whether the result carries no findings of any severity.
func (r *Result) Clean() bool {
	return !r.HasError && !r.HasWarning
}

// Report is the audit of a whole package: one Result per analyzed target.
type Report struct {
	Package string   `json:"package" yaml:"package"`
	Path    string   `json:"path" yaml:"path"`
	Results []Result `json:"results" yaml:"results"`
}

// HasError reports whether any target has a missing dependency.
func (r *Report) HasError() bool {
	for i := range r.Results {
		if r.Results[i].HasError {
			return true
		}
	}

	return false
}

// HasWarning reports whether any target has an unused or redundant
// declaration.
func (r *Report) HasWarning() bool {
	for i := range r.Results {
		if r.Results[i].HasWarning {
			return true
		}
	}

	return false
}

// Sort orders results by target name. Concurrent analysis leaves them
// unordered; renderers call this for deterministic output.
func (r *Report) Sort() {
	slices.SortFunc(r.Results, func(a, b Result) int {
		switch {
		case a.Target < b.Target:
			return -1
		case a.Target > b.Target:
			return 1
		default:
			return 0
		}
	})
}
