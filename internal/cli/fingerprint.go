package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/graph"
)

// fingerprintCommand creates the fingerprint command.
func (c *CLI) fingerprintCommand() *cobra.Command {
	var check string

	cmd := &cobra.Command{
		Use:   "fingerprint [file]",
		Short: "Print or check the structural fingerprint of a graph",
		Long: `Print the structural fingerprint of a graph manifest.

Two graphs share a fingerprint when they flatten to the same graph definition,
regardless of their leaf values. With --check, the command fails unless the
graph matches the given fingerprint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if check == "" {
				fp, err := graph.ComputeFingerprint(g.Root)
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, fp)
				return nil
			}

			want, err := graph.ParseFingerprint(check)
			if err != nil {
				return err
			}
			if !graph.CheckFingerprint(g.Root, want) {
				return errors.New(errors.ErrCodeStructureMismatch, "%s does not match fingerprint %s", args[0], want)
			}
			statusOK.print("Fingerprint matches %s", styleCount.Render(want.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&check, "check", "", "fail unless the graph has this fingerprint")

	return cmd
}
