// Package manifest builds live object graphs from TOML descriptions.
//
// A manifest names every composite node and variable once and wires them
// together with "@name" references, so shared nodes and cycles can be
// written down directly:
//
//	root = "model"
//
//	[nodes.model]
//	type = "object"
//	[nodes.model.attrs]
//	name    = "mlp"
//	encoder = "@enc"
//	decoder = "@enc"     # shared
//	self    = "@model"   # cycle
//
//	[nodes.enc]
//	type = "object"
//	attrs = { kernel = "@w", bias = [0.0, 0.0] }
//
//	[nodes.layers]
//	type  = "list"
//	items = ["@enc", 3]
//
//	[vars.w]
//	type  = "param"
//	value = [1.0, 2.0]
//	meta  = { axis = 0 }
//
// Node types are graph type tags from package node ("object", "list",
// "dict" or any registered struct). Attributes keep their document order.
//
// # Values
//
// Scalars and strings are kept as static values. Arrays of integers become
// []int leaves, arrays of numbers []float64 leaves and arrays of booleans
// []bool leaves; other arrays and inline tables become plain []any and
// map[string]any values converted element by element. A string starting
// with "@@" is the literal string without its first "@".
//
// Variable values are converted the same way but may not reference nodes.
package manifest
