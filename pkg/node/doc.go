// Package node classifies the values that make up an object graph and exposes
// the capabilities the graph engine needs to take them apart and rebuild them.
//
// # Overview
//
// The engine in [github.com/matzehuels/graphstate/pkg/graph] never inspects
// concrete types directly. Every value it meets is resolved once, through
// [Classify], into one of five kinds:
//
//   - [KindGraph]: a composite container tracked by identity (for example
//     [*Object], [*List], [*Dict], or any pointer-to-struct registered with
//     [RegisterStruct]). Graph nodes can be shared and can form cycles.
//   - [KindVariable]: a mutable single-value cell implementing [Variable].
//     Variables are tracked by identity and each one becomes exactly one
//     state leaf.
//   - [KindPytree]: an opaque structured value that can be decomposed into
//     (key, child) pairs plus auxiliary data and recomposed later. Pytrees
//     are not tracked by identity; plain []any and map[string]any are
//     pytrees, as is any value struct registered with [RegisterStructPytree].
//   - [KindLeaf]: an array-like value (see [Array]) that travels as a state
//     leaf without a container.
//   - [KindStatic]: everything else. Static values are stored verbatim in
//     the graph definition.
//
// # Registration
//
// Classification is driven by a registration table keyed by reflect.Type
// rather than by interfaces on the values themselves, so types from other
// packages can participate without modification:
//
//	type Encoder struct {
//	    Kernel *node.Var
//	    Bias   *node.Var
//	    Name   string
//	}
//
//	node.MustRegisterStruct[Encoder]("model.Encoder")
//
// Registered struct fields are visited in declaration order. A `graph:"-"`
// tag hides a field from the engine; on pytree structs a `graph:"static"` tag
// keeps the field in the auxiliary data instead of the state.
//
// # Identity
//
// [Identity] returns a comparable handle for graph nodes and variables. It is
// derived from the value's type and address, never from its contents, so two
// equal-valued variables stay distinct.
//
// # Concurrency
//
// The registry is guarded by a sync.RWMutex; registration and lookups are
// safe from any goroutine. The built-in node types ([Object], [List], [Dict],
// [Var]) are not safe for concurrent mutation.
package node
