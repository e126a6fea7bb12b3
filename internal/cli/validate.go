package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/verity/internal/suite"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Suite       string `json:"suite,omitempty"`
	Checks      int    `json:"checks"`
	Constraints int    `json:"constraints"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite-file>",
		Short: "Validate a suite without touching any data",
		Long: `Validate a YAML or CUE suite without touching any data.

Checks syntax, unknown fields, constraint types, required fields and
assert expressions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	s, err := suite.Load(path)
	if err != nil {
		code := suite.CodeOf(err)
		// unreadable input is a command error, an invalid suite a validation failure
		exit := ExitFailure
		if code == suite.ErrCodeNotFound || code == suite.ErrCodeFormat {
			exit = ExitCommandError
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(exit, code, err)
	}

	result := &ValidationResult{Valid: true, Suite: s.Name, Checks: len(s.Checks)}
	for _, c := range s.Checks {
		result.Constraints += len(c.Constraints)
	}
	formatter.VerboseLog("Validated %s", path)
	return formatter.Success(result)
}

func (r *ValidationResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "✓ Suite valid: %d check(s), %d constraint(s)\n", r.Checks, r.Constraints)
	return err
}
