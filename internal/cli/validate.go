package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/backend"
)

// ValidationResult holds the outcome of validating a single statement.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <sql>",
		Short: "Validate a SQL statement without executing it",
		Long: `Validate a SQL statement against the read-only policy without
touching any backend.

Useful for development feedback: the same checks run before every
query execution.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, sql string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	policy := backend.NewReadOnlyPolicy(true, true, backend.DefaultDenylist)
	ok, message := policy.Validate(sql)

	if formatter.Format == "json" {
		if ok {
			return formatter.Success(ValidationResult{Valid: true})
		}
		_ = formatter.Error(string(backend.CodeValidation), message, nil)
		return NewExitError(ExitFailure, message)
	}

	if ok {
		fmt.Fprintln(formatter.Writer, "✓ statement is valid")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✗ %s\n", message)
	return NewExitError(ExitFailure, message)
}
