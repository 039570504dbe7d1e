package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/gateway"
)

// QueryOptions holds flags specific to the query command.
type QueryOptions struct {
	DataProductID string
	PrincipalID   string
	Timeout       int
	MaxWidth      int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a read-only SQL query",
		Long: `Execute a read-only SQL query against the configured backend.

The statement is validated before execution; anything other than a
SELECT (or WITH, where the backend allows it) is rejected without
reaching the engine. Results are returned in the standard envelope.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DataProductID, "product", "", "data product id to attribute the query to")
	cmd.Flags().StringVar(&opts.PrincipalID, "principal", "", "principal id issuing the query")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 0, "per-query timeout in seconds (0 uses the configured default)")
	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", 40, "maximum column width for text output")

	return cmd
}

func runQuery(rootOpts *RootOptions, opts *QueryOptions, sql string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	gw, err := openGateway(cmd, rootOpts)
	if err != nil {
		_ = formatter.Error("CONNECTION_ERROR", err.Error(), nil)
		return err
	}
	defer gw.Close()

	req := gateway.Request{
		SQL:            sql,
		DataProductID:  opts.DataProductID,
		PrincipalID:    opts.PrincipalID,
		TimeoutSeconds: opts.Timeout,
	}

	var env gateway.Envelope
	if opts.DataProductID != "" {
		env = gw.GetDataProduct(cmd.Context(), req)
	} else {
		env = gw.Execute(cmd.Context(), req)
	}

	if env.Status != gateway.StatusSuccess {
		_ = formatter.Error(env.ErrorCode, env.ErrorMessage, env.HumanActionContext)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", env.ErrorCode, env.ErrorMessage))
	}

	return outputEnvelope(formatter, env, opts.MaxWidth)
}

// outputEnvelope renders a successful envelope in JSON or as a text table.
func outputEnvelope(formatter *OutputFormatter, env gateway.Envelope, maxWidth int) error {
	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(env)
	}

	if len(env.Columns) == 0 {
		fmt.Fprintf(formatter.Writer, "%d row(s) in %dms\n", env.RowCount, env.QueryTimeMs)
		return nil
	}

	widths := make([]int, len(env.Columns))
	for i, c := range env.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(env.Rows))
	for r, row := range env.Rows {
		cells[r] = make([]string, len(env.Columns))
		for i := range env.Columns {
			var s string
			if i < len(row) {
				s = fmt.Sprintf("%v", row[i])
			}
			if maxWidth > 3 && len(s) > maxWidth {
				s = s[:maxWidth-3] + "..."
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	writeRow := func(vals []string) {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(parts, "  "))
	}

	writeRow(env.Columns)
	seps := make([]string, len(env.Columns))
	for i := range seps {
		seps[i] = strings.Repeat("-", widths[i])
	}
	writeRow(seps)
	for _, row := range cells {
		writeRow(row)
	}

	fmt.Fprintf(formatter.Writer, "\n%d row(s) in %dms", env.RowCount, env.QueryTimeMs)
	if env.Truncated {
		fmt.Fprint(formatter.Writer, " (truncated)")
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}
