package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/state"
)

// encodeCommand creates the encode command.
func (c *CLI) encodeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Report the encoded size of a graph",
		Long: `Flatten a graph manifest and encode its graph definition and state with
msgpack. The sizes of both encodings are printed; with --output the encoded
graph definition is also written to a file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			def, flat, err := graph.Flatten(g.Root)
			if err != nil {
				return err
			}
			defBytes, err := graph.Marshal(def)
			if err != nil {
				return err
			}
			stateBytes, err := state.EncodeFlat(flat)
			if err != nil {
				return err
			}

			printField("graphdef", styleCount.Render(fmt.Sprintf("%d bytes", len(defBytes))))
			printField("state", styleCount.Render(fmt.Sprintf("%d bytes", len(stateBytes))))
			printField("nodes", fmt.Sprintf("%d", len(def.Nodes)))
			printField("leaves", fmt.Sprintf("%d", def.Leaves))
			printField("hash", fmt.Sprintf("%016x", def.Hash()))

			if output != "" {
				if err := graph.WriteFile(def, output); err != nil {
					return err
				}
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the encoded graph definition to a file")

	return cmd
}
