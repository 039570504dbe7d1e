package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ViewsResult is the JSON shape for the views command.
type ViewsResult struct {
	Views  []string       `json:"views"`
	Source string         `json:"source"`
	Status map[string]any `json:"status"`
}

// NewViewsCommand creates the views command.
func NewViewsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "List views on the active backend",
		Long: `List the views currently present on the configured backend.

This reflects what the engine actually holds after bootstrap, including
any fallback views synthesized for missing analytical views.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(rootOpts, cmd)
		},
	}

	return cmd
}

func runViews(rootOpts *RootOptions, cmd *cobra.Command) error {
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

	views, err := gw.Views(cmd.Context())
	if err != nil {
		_ = formatter.Error("CONNECTION_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "list views", err)
	}
	source := gw.Definitions().Source()
	status := gw.Status()

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: ViewsResult{Views: views, Source: source, Status: status}})
	}

	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "no views present")
		return nil
	}
	for _, v := range views {
		fmt.Fprintln(formatter.Writer, v)
	}
	fmt.Fprintf(formatter.Writer, "\n%d view(s) on %v backend (%v)\n", len(views), status["backend_type"], status["state"])
	return nil
}
