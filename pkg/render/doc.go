// Package render provides visualization of graph definitions.
//
// # Node-Link Diagrams
//
// The [nodelink] subpackage renders a GraphDef as a traditional directed
// graph diagram using Graphviz. Composites appear as boxes, variables as
// ellipses and back references as dashed arrows.
//
//	dot := nodelink.ToDOT(def, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [nodelink]: github.com/matzehuels/graphstate/pkg/render/nodelink
package render
