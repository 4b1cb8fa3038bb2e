package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphstate/pkg/render/nodelink"
)

// dotCommand creates the dot command for rendering a graph definition.
func (c *CLI) dotCommand() *cobra.Command {
	var (
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "dot [file]",
		Short: "Render the graph definition of a graph with Graphviz",
		Long: `Flatten a graph manifest and render its graph definition as a node-link
diagram. Without --output the DOT source is printed. An output path ending in
.svg is rendered with Graphviz; any other path receives the DOT source.`,
		Example: `  graphstate dot model.toml
  graphstate dot model.toml --detailed -o model.svg`,
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

			def, _, err := dc.Flatten(ctx, g.Root)
			if err != nil {
				return err
			}
			dot := nodelink.ToDOT(def, nodelink.Options{Detailed: detailed})

			if output == "" {
				fmt.Fprint(stdout, dot)
				return nil
			}

			data := []byte(dot)
			if strings.EqualFold(filepath.Ext(output), ".svg") {
				spinner := newSpinnerWithContext(ctx, "Rendering SVG...")
				spinner.Start()
				data, err = nodelink.RenderSVG(ctx, dot)
				if err != nil {
					spinner.StopWithError("Rendering failed")
					return fmt.Errorf("render %s: %w", output, err)
				}
				spinner.Stop()
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			statusOK.print("Rendered %s", styleType.Render(def.RootType()))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.svg or .dot)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include static attributes and metadata in labels")

	return cmd
}
