package graph_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

func ExampleSplit() {
	model := node.NewObject().
		Set("kernel", node.NewParam([]float64{1, 2})).
		Set("count", node.NewBatchStat(0))

	def, parts, err := graph.Split(model, state.OfType(node.TagParam))
	if err != nil {
		panic(err)
	}
	fmt.Println(def.RootType(), parts[0].Len(), parts[1].Len())

	clone, err := graph.MergeAs[*node.Object](def, parts[0], parts[1])
	if err != nil {
		panic(err)
	}
	fmt.Println(clone.Keys(), clone != model)
	// Output:
	// object 1 1
	// [kernel count] true
}

func ExampleUpdate() {
	w := node.NewParam(1.0)
	model := node.NewObject().Set("w", w)

	st, err := state.FromPure(map[string]any{"w": 2.5})
	if err != nil {
		panic(err)
	}
	if err := graph.Update(model, st); err != nil {
		panic(err)
	}
	fmt.Println(w.Value())
	// Output: 2.5
}

func ExampleWithUpdateContext() {
	w := node.NewParam(1)
	model := node.NewObject().Set("w", w)

	ctx, uc := graph.WithUpdateContext(context.Background(), graph.NewTag())
	defer uc.Close()

	// Outer side: split the caller's model.
	sc, _ := graph.NewSplitContext(ctx, uc.Tag())
	def, parts, _ := sc.Split(model)
	sc.Close()

	// Inner side: work on a copy, then split it again.
	mc, _ := graph.NewMergeContext(ctx, uc.Tag(), true)
	inner, _ := mc.Merge(def, parts[0])
	mc.Close()
	inner.(*node.Object).Get("w").(node.Variable).SetValue(42)

	sc, _ = graph.NewSplitContext(ctx, uc.Tag())
	def, parts, _ = sc.Split(inner)
	sc.Close()

	// Outer side again: the changes land on the caller's objects.
	mc, _ = graph.NewMergeContext(ctx, uc.Tag(), false)
	out, _ := mc.Merge(def, parts[0])
	mc.Close()

	fmt.Println(out == any(model), w.Value())
	// Output: true 42
}
