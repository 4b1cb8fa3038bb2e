package cli

import (
	"context"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

// roundtripCommand creates the roundtrip command.
func (c *CLI) roundtripCommand() *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "roundtrip [file]",
		Short: "Split and merge a graph and verify the copy",
		Long: `Split a graph manifest, merge the parts into a new graph and verify that the
copy has the same structure, aliasing, cycles and leaf values as the original.
The check is repeated after encoding the graph definition and the state with
msgpack and decoding them again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := loadGraph(ctx, args[0])
			if err != nil {
				return err
			}
			fs := parseFilters(filters)

			prog := newProgress(loggerFromContext(ctx))
			def, parts, err := graph.Split(g.Root, fs...)
			if err != nil {
				return err
			}
			flat, err := state.MergeFlat(flatteners(parts)...)
			if err != nil {
				return err
			}
			for i, part := range parts {
				printDetail("%s: %s", partitionLabel(fs, i), pluralLeaves(part.Len()))
			}

			merged, err := graph.Merge(def, flatteners(parts)...)
			if err != nil {
				return err
			}
			if err := verifyCopy(def, flat, merged); err != nil {
				return err
			}
			statusOK.print("Merged copy matches %s", styleType.Render(def.RootType()))

			decoded, err := wireRoundTrip(ctx, def, flat)
			if err != nil {
				return err
			}
			if err := verifyCopy(def, flat, decoded); err != nil {
				return errors.Wrap(errors.GetCode(err), err, "after encoding")
			}
			statusOK.print("Decoded copy matches %s", styleType.Render(def.RootType()))

			prog.done("Round trip verified")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "state filter, repeatable")

	return cmd
}

func flatteners(parts []*state.State) []state.Flattener {
	out := make([]state.Flattener, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// wireRoundTrip encodes def and flat, decodes them and merges the result.
func wireRoundTrip(ctx context.Context, def *graph.GraphDef, flat state.FlatState) (any, error) {
	logger := loggerFromContext(ctx)

	defBytes, err := graph.Marshal(def)
	if err != nil {
		return nil, err
	}
	stateBytes, err := state.EncodeFlat(flat)
	if err != nil {
		return nil, err
	}
	logger.Debug("encoded", "graphdef", len(defBytes), "state", len(stateBytes))

	def2, err := graph.UnmarshalGraphDef(defBytes)
	if err != nil {
		return nil, err
	}
	if !def2.Equal(def) {
		return nil, errors.New(errors.ErrCodeStructureMismatch, "decoded graph definition differs")
	}
	flat2, err := state.DecodeFlat(stateBytes)
	if err != nil {
		return nil, err
	}
	return graph.Merge(def2, flat2)
}

// verifyCopy flattens cp and compares it with the original definition and
// leaves. Equal definitions mean equal aliasing and cycles, since shared
// nodes are encoded as back references.
func verifyCopy(def *graph.GraphDef, flat state.FlatState, cp any) error {
	def2, flat2, err := graph.Flatten(cp)
	if err != nil {
		return err
	}
	if !def.Equal(def2) {
		return errors.New(errors.ErrCodeStructureMismatch, "copy has a different structure:\n%s", def2)
	}
	if len(flat) != len(flat2) {
		return errors.New(errors.ErrCodeStructureMismatch, "copy has %d leaves, want %d", len(flat2), len(flat))
	}
	for i, e := range flat {
		got := flat2[i]
		if !e.Path.Equal(got.Path) {
			return errors.New(errors.ErrCodeStructureMismatch, "leaf %d is at %s, want %s", i, got.Path, e.Path)
		}
		if !sameLeaf(e.Value, got.Value) {
			return errors.New(errors.ErrCodeStructureMismatch, "leaf %s is %s, want %s", e.Path, formatLeaf(got.Value), formatLeaf(e.Value))
		}
	}
	return nil
}

func sameLeaf(a, b any) bool {
	va, aok := a.(node.Variable)
	vb, bok := b.(node.Variable)
	if aok != bok {
		return false
	}
	if !aok {
		return reflect.DeepEqual(a, b)
	}
	if va.Type() != vb.Type() || !reflect.DeepEqual(va.Value(), vb.Value()) {
		return false
	}
	if len(va.Metadata()) == 0 && len(vb.Metadata()) == 0 {
		return true
	}
	return reflect.DeepEqual(va.Metadata(), vb.Metadata())
}
