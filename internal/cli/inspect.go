package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// inspectCommand creates the inspect command for printing the split of a graph.
func (c *CLI) inspectCommand() *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the graph definition and state partitions of a graph",
		Long: `Load a graph manifest, split it and print the graph definition followed by
the state partitions.

Each --filter adds a partition, in order; leaves matched by no filter end up in
a trailing "rest" partition. A filter is a comma-separated list of variable
types, "variables" for any variable, "path:KEY" for leaves under KEY, or "..."
for everything.`,
		Example: `  graphstate inspect model.toml
  graphstate inspect model.toml --filter param --filter batch_stat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := loadGraph(ctx, args[0])
			if err != nil {
				return err
			}

			dc, backend, err := c.newDefCache(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			fs := parseFilters(filters)
			hits := c.hooks.hits.Load()
			def, parts, err := dc.Split(ctx, g.Root, fs...)
			if err != nil {
				return err
			}

			statusOK.print("Split %s", styleType.Render(def.RootType()))
			printStats(def, c.hooks.hits.Load() > hits)
			printNewline()
			for _, line := range strings.Split(strings.TrimRight(def.String(), "\n"), "\n") {
				printDetail("%s", line)
			}

			for i, part := range parts {
				printNewline()
				printField(partitionLabel(fs, i), styleCount.Render(pluralLeaves(part.Len())))
				for _, e := range part.Flat() {
					printLeaf(e.Path, e.Value)
				}
			}

			printNewline()
			printNextStep("Render it", "graphstate dot "+args[0]+" -o graph.svg")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "state filter, repeatable")

	return cmd
}

func pluralLeaves(n int) string {
	if n == 1 {
		return "1 leaf"
	}
	return fmt.Sprintf("%d leaves", n)
}
