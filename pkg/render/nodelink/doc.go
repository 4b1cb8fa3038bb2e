// Package nodelink renders graph definitions as node-link diagrams.
//
// # Overview
//
// This package produces directed graph visualizations of a [graph.GraphDef]
// using Graphviz. Every node definition becomes a diagram node, attributes
// become labelled edges, and back references (shared nodes and cycles) are
// drawn as dashed edges to the first definition.
//
// # Usage
//
// Convert a definition to DOT format, then render to SVG:
//
//	def, _, err := graph.Flatten(model)
//	dot := nodelink.ToDOT(def, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Options
//
// The [Options] struct controls diagram generation:
//
//   - Detailed: When true, labels include static attributes, variable
//     metadata and outer indices.
//
// # DOT Format
//
// The [ToDOT] function produces Graphviz DOT source that can be:
//
//   - Rendered directly via [RenderSVG]
//   - Saved and processed with external Graphviz tools
//   - Customized before rendering
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
