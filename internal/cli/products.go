package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ProductSummary is the JSON shape for a single data product listing.
type ProductSummary struct {
	ID              string `json:"id"`
	PrimaryTable    string `json:"primary_table"`
	Description     string `json:"description,omitempty"`
	GovernanceLevel string `json:"governance_level,omitempty"`
	KPIDefinition   string `json:"kpi_definition,omitempty"`
}

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List registered data products",
		Long: `List the data products known to the gateway.

Definitions are resolved from the data contract, a registry file, or
built-in defaults, in that order of precedence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(rootOpts, cmd)
		},
	}

	return cmd
}

func runProducts(rootOpts *RootOptions, cmd *cobra.Command) error {
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

	defs := gw.Definitions()
	formatter.VerboseLog("definitions resolved from %s", defs.Source())

	summaries := make([]ProductSummary, 0, len(defs.Products()))
	for _, p := range defs.Products() {
		summaries = append(summaries, ProductSummary{
			ID:              p.ID,
			PrimaryTable:    p.PrimaryTable,
			Description:     p.Description,
			GovernanceLevel: p.GovernanceLevel,
			KPIDefinition:   p.KPIDefinition,
		})
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: summaries})
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "no data products registered")
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "%s\n", s.ID)
		fmt.Fprintf(formatter.Writer, "  table: %s\n", s.PrimaryTable)
		if s.GovernanceLevel != "" {
			fmt.Fprintf(formatter.Writer, "  governance: %s\n", s.GovernanceLevel)
		}
		if s.Description != "" {
			fmt.Fprintf(formatter.Writer, "  %s\n", s.Description)
		}
	}
	fmt.Fprintf(formatter.Writer, "\n%d product(s) from %s\n", len(summaries), defs.Source())
	return nil
}
