package graph

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
)

// Fingerprint summarizes the structure of a graph and the identity of its
// variables. Two graphs have equal fingerprints when they arrange the same
// variable instances in the same shape, whatever the identity of their
// composite nodes. Leaf values do not contribute: equal fingerprints say
// nothing about equal contents.
type Fingerprint struct {
	Sum    uint64
	Nodes  int
	Leaves int
}

// String renders the fingerprint as "sum-nodes-leaves".
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x-%d-%d", f.Sum, f.Nodes, f.Leaves)
}

// ParseFingerprint parses the output of [Fingerprint.String].
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	n, err := fmt.Sscanf(s, "%16x-%d-%d", &f.Sum, &f.Nodes, &f.Leaves)
	if err != nil || n != 3 {
		return Fingerprint{}, errors.New(errors.ErrCodeInvalidInput, "invalid fingerprint %q", s)
	}
	return f, nil
}

// ComputeFingerprint returns the fingerprint of the graph reachable from root.
func ComputeFingerprint(root any) (Fingerprint, error) {
	f := &flattener{refIndex: NewRefMap(), def: &GraphDef{}}
	if err := f.root(root); err != nil {
		return Fingerprint{}, err
	}
	f.def.Leaves = len(f.flat)

	d := xxhash.New()
	f.def.canonical(d)
	t := tokenWriter{w: d}
	for _, e := range f.flat {
		if vr, ok := e.Value.(node.Variable); ok {
			t.str("v")
			t.uint(vr.ID())
			continue
		}
		t.str("a")
		t.str(reflect.TypeOf(e.Value).String())
	}
	return Fingerprint{Sum: d.Sum64(), Nodes: len(f.def.Nodes), Leaves: len(f.flat)}, nil
}

// CheckFingerprint reports whether root still has fingerprint fp.
func CheckFingerprint(root any, fp Fingerprint) bool {
	got, err := ComputeFingerprint(root)
	return err == nil && got == fp
}
