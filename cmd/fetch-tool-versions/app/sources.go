package app

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/sources"
)

func newSourcesCmd(opts *fetchOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured tools and whether they can be fetched",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return printSources(cmd.OutOrStdout(), cfg.Tools(), sources.NewDefaultRegistry(nil))
		},
	}
}

func printSources(w io.Writer, tools []config.ToolSource, registry sources.AdapterRegistry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Tool", "Type", "Locator", "Supported")

	for _, tool := range tools {
		supported := "yes"
		adapter, err := registry.Lookup(tool.Type)
		switch {
		case err != nil:
			supported = "no"
		case adapter.Validate(tool.Locator) != nil:
			supported = "invalid locator"
		}
		if err := table.Append(tool.ID, string(tool.Type), tool.Locator, supported); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", tool.ID, err)
		}
	}

	return table.Render()
}
