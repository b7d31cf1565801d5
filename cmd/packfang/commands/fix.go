package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/packfang/pkg/audit"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

// FixCommand holds configuration and dependencies for the fix command.
type FixCommand struct {
	root *rootFlags

	backend string
	write   bool

	exec auditExecutor
}

// NewFixCommand creates the fix command.
func NewFixCommand(root *rootFlags) *cobra.Command {
	return newFixCommandWithDeps(root, runAudit)
}

func newFixCommandWithDeps(root *rootFlags, exec auditExecutor) *cobra.Command {
	fc := &FixCommand{root: root, exec: exec}

	cmd := &cobra.Command{
		Use:   "fix [dir]",
		Short: "Remove unused direct dependency declarations",
		Long: `Audit the package at dir and print a diff that removes unused direct
target declarations from the manifest. Nothing is modified unless --write
is given. Unused product declarations are reported but left for manual
removal, since dropping one changes the package's external dependency set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: fc.run,
	}

	cmd.Flags().StringVar(&fc.backend, "backend", "", "manifest parser backend: auto, syntax, lexical")
	cmd.Flags().BoolVar(&fc.write, "write", false, "apply the changes to the manifest")

	return cmd
}

func (fc *FixCommand) run(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := fc.root.loadConfig()
	if err != nil {
		return err
	}

	backend := manifest.Backend(cfg.Audit.Backend)
	if cmd.Flags().Changed("backend") {
		backend = manifest.Backend(fc.backend)
	}

	providers, err := initObservability(cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	rep, err := fc.exec(cmd.Context(), dir, "", audit.Options{
		Backend: backend,
		Allow:   cfg.Audit.Allow,
		Logger:  providers.Logger,
	})
	if rep == nil {
		return err
	}

	manifestPath := filepath.Join(dir, manifest.FileName)

	src, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	edited, removed, skipped := removeUnusedDeclarations(string(src), rep)

	out := cmd.OutOrStdout()

	for _, name := range skipped {
		fmt.Fprintf(out, "note: %s needs manual removal\n", name)
	}

	if len(removed) == 0 {
		fmt.Fprintln(out, "nothing to fix")

		return nil
	}

	if fc.write {
		info, statErr := os.Stat(manifestPath)
		if statErr != nil {
			return fmt.Errorf("stat manifest: %w", statErr)
		}

		writeErr := os.WriteFile(manifestPath, []byte(edited), info.Mode().Perm())
		if writeErr != nil {
			return fmt.Errorf("write manifest: %w", writeErr)
		}

		fmt.Fprintf(out, "removed %d unused declaration(s) from %s\n", len(removed), manifestPath)

		return nil
	}

	printDiff(cmd, manifestPath, string(src), edited)

	return nil
}

// declarationPatterns build the regexes that can match one dependency entry
// on its declaration line, most specific first.
func declarationPatterns(name string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(name)

	return []*regexp.Regexp{
		regexp.MustCompile(`\.target\(\s*name:\s*"` + quoted + `"\s*\)\s*,?`),
		regexp.MustCompile(`\.byName\(\s*name:\s*"` + quoted + `"\s*\)\s*,?`),
		regexp.MustCompile(`"` + quoted + `"\s*,?`),
	}
}

// removeUnusedDeclarations deletes unused direct target declarations from
// the manifest text. Declarations without a recorded line, and unused
// product declarations, are returned in skipped.
func removeUnusedDeclarations(src string, rep *audit.Report) (string, []string, []string) {
	type removal struct {
		line int
		name string
	}

	var (
		removals []removal
		skipped  []string
	)

	for i := range rep.Results {
		result := &rep.Results[i]

		for _, name := range result.Unused {
			decl := findDeclaration(result, name)

			switch {
			case decl == nil || decl.Kind != manifest.DependencyTarget:
				skipped = append(skipped, fmt.Sprintf("product dependency %q of target %s", name, result.Target))
			case decl.Line <= 0:
				skipped = append(skipped, fmt.Sprintf("dependency %q of target %s (declaration line unknown)", name, result.Target))
			default:
				removals = append(removals, removal{line: decl.Line, name: name})
			}
		}
	}

	if len(removals) == 0 {
		return src, nil, skipped
	}

	lines := strings.Split(src, "\n")
	dropped := make(map[int]bool, len(removals))
	removed := make([]string, 0, len(removals))

	for _, rem := range removals {
		idx := rem.line - 1
		if idx < 0 || idx >= len(lines) {
			skipped = append(skipped, fmt.Sprintf("dependency %q (line %d out of range)", rem.name, rem.line))

			continue
		}

		edited, ok := stripDeclaration(lines[idx], rem.name)
		if !ok {
			skipped = append(skipped, fmt.Sprintf("dependency %q (no declaration on line %d)", rem.name, rem.line))

			continue
		}

		removed = append(removed, rem.name)

		if strings.TrimSpace(edited) == "" {
			dropped[idx] = true
		} else {
			lines[idx] = edited
		}
	}

	kept := make([]string, 0, len(lines))

	for i, line := range lines {
		if !dropped[i] {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n"), removed, skipped
}

// stripDeclaration removes one dependency entry from a line.
func stripDeclaration(line, name string) (string, bool) {
	for _, pattern := range declarationPatterns(name) {
		if loc := pattern.FindStringIndex(line); loc != nil {
			return line[:loc[0]] + line[loc[1]:], true
		}
	}

	return line, false
}

// printDiff renders a colored line diff between the manifest as it is and
// as it would be after the fix.
func printDiff(cmd *cobra.Command, path, before, after string) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "--- %s\n+++ %s (fixed)\n", path, path)

	dmp := diffmatchpatch.New()

	beforeChars, afterChars, lineIndex := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lineIndex)

	for _, diff := range diffs {
		for line := range strings.SplitSeq(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			switch diff.Type {
			case diffmatchpatch.DiffDelete:
				fmt.Fprintln(out, color.RedString("-%s", line))
			case diffmatchpatch.DiffInsert:
				fmt.Fprintln(out, color.GreenString("+%s", line))
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(out, " %s\n", line)
			}
		}
	}
}

// findDeclaration returns the declaration entry for a name, nil when the
// target never declared it directly.
func findDeclaration(result *audit.Result, name string) *manifest.Dependency {
	for i := range result.Declarations {
		if result.Declarations[i].Name == name {
			return &result.Declarations[i]
		}
	}

	return nil
}
