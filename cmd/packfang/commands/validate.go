package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/packfang/internal/report"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <report.json|->",
		Short: "Validate a report JSON file against the report schema",
		Long: `Validate a JSON audit report against the embedded report schema.

Examples:
  packfang validate report.json
  packfang audit -f json . | packfang validate -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			return runValidate(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, inputPath string) error {
	data, label, err := readInput(cmd, inputPath)
	if err != nil {
		return err
	}

	failures, err := report.ValidateJSON(data)
	if err != nil {
		return fmt.Errorf("validate %s: %w", label, err)
	}

	out := cmd.OutOrStdout()

	if len(failures) == 0 {
		fmt.Fprintf(out, "%s %s conforms to the report schema\n", color.GreenString("OK:"), label)

		return nil
	}

	fmt.Fprintf(out, "%s %s has %d schema violation(s):\n", color.RedString("FAIL:"), label, len(failures))

	for _, failure := range failures {
		fmt.Fprintf(out, "  - %s: %s\n", failure.Field(), failure.Description())
	}

	return &ExitError{Code: ExitFindings}
}

// readInput loads the report bytes from a file or, for "-", from stdin.
func readInput(cmd *cobra.Command, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}

		return data, "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read report: %w", err)
	}

	return data, path, nil
}
