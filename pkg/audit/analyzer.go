package audit

import (
	"slices"

	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/scanner"
)

// Analyze classifies target's declared dependencies against the imports
// observed in files. productMap maps resolved external product names to
// their member targets; allow names are exempt from missing and unused
// reporting, matched case-sensitively.
//
// Imports of sibling targets are never missing, but a declared sibling that
// is imported still counts as correct. Declared names matching the built-in
// module list or the allow-list are filtered before comparison, so a
// declared standard module is never reported unused.
func Analyze(target *manifest.Target, pkg *manifest.Package, productMap map[string][]string, files []scanner.SourceFile, allow []string) Result {
	result := Result{Target: target.Name, Kind: target.Kind, Declarations: target.Dependencies}

	// Declaration-only kinds own no sources.
	if !target.Kind.OwnsSources() {
		return result
	}

	result.SourceFiles = files

	allowed := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		allowed[name] = struct{}{}
	}

	suppressed := func(module string) bool {
		if scanner.Builtin(module) {
			return true
		}

		_, ok := allowed[module]

		return ok
	}

	internal := pkg.InternalModules(target.Name)

	var (
		targetDeps   = make(map[string]struct{})
		targetOrder  []string
		productDeps  []manifest.Dependency
		productNames = make(map[string]struct{})
	)

	for _, dep := range target.Dependencies {
		if suppressed(dep.Name) {
			continue
		}

		if dep.Kind == manifest.DependencyProduct {
			if _, ok := productNames[dep.Name]; !ok {
				productNames[dep.Name] = struct{}{}
				productDeps = append(productDeps, dep)
			}

			continue
		}

		if _, ok := targetDeps[dep.Name]; !ok {
			targetDeps[dep.Name] = struct{}{}
			targetOrder = append(targetOrder, dep.Name)
		}
	}

	observed := observedModules(files, suppressed)

	// Product satisfaction: the first declared product whose member list
	// contains the import wins. Products that satisfy an import under a
	// different member name are remembered so they are not reported unused.
	satisfied := make(map[string]struct{})
	usedProducts := make(map[string]struct{})

	for _, module := range observed.sorted {
		if _, ok := internal[module]; ok {
			continue
		}

		for _, dep := range productDeps {
			if !slices.Contains(productMap[dep.Name], module) {
				continue
			}

			result.ProductSatisfied = append(result.ProductSatisfied, ProductSatisfied{
				Import:  module,
				Product: dep.Name,
				Package: dep.Package,
			})
			satisfied[module] = struct{}{}
			usedProducts[dep.Name] = struct{}{}

			break
		}
	}

	// Redundancy: targetDeps holds only direct declarations, so a member
	// hit here is a genuinely separate declaration beyond the product
	// reference itself.
	redundant := make(map[string]struct{})

	for _, dep := range productDeps {
		for _, member := range productMap[dep.Name] {
			if _, ok := targetDeps[member]; !ok {
				continue
			}

			if _, ok := redundant[member]; ok {
				continue
			}

			redundant[member] = struct{}{}
			result.Redundant = append(result.Redundant, Redundant{
				Target:  member,
				Product: dep.Name,
				Package: dep.Package,
			})
		}
	}

	var missing []string

	for _, module := range observed.sorted {
		if _, ok := internal[module]; ok {
			continue
		}

		if _, ok := satisfied[module]; ok {
			continue
		}

		if _, ok := targetDeps[module]; ok {
			continue
		}

		if _, ok := productNames[module]; ok {
			continue
		}

		missing = append(missing, module)
	}

	result.Missing = missing

	var unused []string

	for _, name := range targetOrder {
		if _, ok := redundant[name]; ok {
			continue
		}

		if !observed.has(name) {
			unused = append(unused, name)
		}
	}

	for _, dep := range productDeps {
		if observed.has(dep.Name) {
			continue
		}

		if _, ok := usedProducts[dep.Name]; ok {
			continue
		}

		unused = append(unused, dep.Name)
	}

	slices.Sort(unused)
	result.Unused = slices.Compact(unused)

	var correct []string

	for _, name := range targetOrder {
		if _, ok := redundant[name]; ok {
			continue
		}

		if observed.has(name) {
			correct = append(correct, name)
		}
	}

	for _, dep := range productDeps {
		if observed.has(dep.Name) {
			correct = append(correct, dep.Name)
		}
	}

	slices.Sort(correct)
	result.Correct = slices.Compact(correct)

	result.HasError = len(result.Missing) > 0
	result.HasWarning = len(result.Unused) > 0 || len(result.Redundant) > 0

	return result
}

// observedSet is the deduplicated union of import names across a target's
// files, with suppressed modules already removed.
type observedSet struct {
	set    map[string]struct{}
	sorted []string
}

func (o observedSet) has(name string) bool {
	_, ok := o.set[name]

	return ok
}

func observedModules(files []scanner.SourceFile, suppressed func(string) bool) observedSet {
	set := make(map[string]struct{})

	for _, file := range files {
		for _, imp := range file.Imports {
			if suppressed(imp.Module) {
				continue
			}

			set[imp.Module] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(set))
	for name := range set {
		sorted = append(sorted, name)
	}

	slices.Sort(sorted)

	return observedSet{set: set, sorted: sorted}
}
