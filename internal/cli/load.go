package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/matzehuels/graphstate/pkg/manifest"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

// loadGraph builds the object graph described by the manifest at path.
func loadGraph(ctx context.Context, path string) (*manifest.Graph, error) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	g, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("manifest", "file", path, "named", len(g.Named))
	prog.done("Loaded %s", filepath.Base(path))
	return g, nil
}

// parseFilters turns --filter expressions into state filters. The result
// is empty when no expression was given.
func parseFilters(exprs []string) []state.Filter {
	filters := make([]state.Filter, len(exprs))
	for i, e := range exprs {
		filters[i] = state.ParseFilter(e)
	}
	return filters
}

// partitionLabel names the i-th partition returned by a split with filters.
func partitionLabel(filters []state.Filter, i int) string {
	if i < len(filters) {
		return state.FilterString(filters[i])
	}
	return "rest"
}

// formatLeaf renders a state leaf for display.
func formatLeaf(v any) string {
	if vr, ok := v.(node.Variable); ok {
		return fmt.Sprintf("%s(%v)", vr.Type(), vr.Value())
	}
	return fmt.Sprintf("%v", v)
}
