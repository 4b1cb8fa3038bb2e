package graph

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/observability"
	"github.com/matzehuels/graphstate/pkg/state"
)

// =============================================================================
// Update Context
// =============================================================================

// Stage is the position of an [UpdateContext] within one round trip.
type Stage int

const (
	// StageIdle: no round in progress.
	StageIdle Stage = iota
	// StageOuterSplit: the outer split context has closed.
	StageOuterSplit
	// StageInnerMerge: the inner merge context has closed.
	StageInnerMerge
	// StageInnerSplit: the inner split context has closed.
	StageInnerSplit
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageOuterSplit:
		return "outer-split"
	case StageInnerMerge:
		return "inner-merge"
	case StageInnerSplit:
		return "inner-split"
	default:
		return "unknown"
	}
}

// UpdateContext correlates the split and merge contexts opened under the
// same tag on both sides of a boundary. One round is:
//
//	outer split → inner merge → inner split → outer merge
//
// The outer split's identities let the outer merge reuse the caller's live
// objects, so changes made to a copy inside the boundary land on the
// originals. A context may run any number of rounds before it is closed.
type UpdateContext struct {
	tag string

	mu     sync.Mutex
	stage  Stage
	busy   bool // a split or merge context for this tag is open
	closed bool

	// outerRefIndex is the identity map of the outer split.
	outerRefIndex *RefMap
	// innerIndexRef is the index map of the inner merge.
	innerIndexRef *IndexMap
}

type updateKey struct{ tag string }

// NewTag returns a fresh tag for an update context.
func NewTag() string {
	return uuid.NewString()
}

// WithUpdateContext opens an update context for tag and returns a child
// context carrying it. Split and merge contexts opened from the child with
// the same tag take part in its rounds. Opening a second update context for
// the same tag on the child shadows the first until the child is dropped.
func WithUpdateContext(ctx context.Context, tag string) (context.Context, *UpdateContext) {
	uc := &UpdateContext{tag: tag}
	observability.Graph().OnContextEnter(ctx, "update", tag, uc.stage.String())
	return context.WithValue(ctx, updateKey{tag}, uc), uc
}

// UpdateContextFrom returns the update context for tag carried by ctx.
func UpdateContextFrom(ctx context.Context, tag string) (*UpdateContext, bool) {
	uc, ok := ctx.Value(updateKey{tag}).(*UpdateContext)
	return uc, ok
}

// Tag returns the context's tag.
func (u *UpdateContext) Tag() string { return u.tag }

// Stage returns the current stage.
func (u *UpdateContext) Stage() Stage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stage
}

// Close ends the update context. It fails if a round is incomplete or a
// split or merge context is still open. State is released either way.
func (u *UpdateContext) Close() error {
	u.mu.Lock()
	var err error
	switch {
	case u.closed:
		err = protocol("update context %q closed twice", u.tag)
	case u.busy:
		err = protocol("update context %q closed while a split or merge context is open", u.tag)
	case u.stage != StageIdle:
		err = protocol("update context %q closed at stage %s", u.tag, u.stage)
	}
	stage := u.stage
	u.closed = true
	u.busy = false
	u.stage = StageIdle
	u.outerRefIndex = nil
	u.innerIndexRef = nil
	u.mu.Unlock()

	observability.Graph().OnContextExit(context.Background(), "update", u.tag, stage.String(), err)
	return err
}

// enter marks a split or merge context as open and checks that it may run
// at the current stage.
func (u *UpdateContext) enter(kind string, allowed ...Stage) (Stage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return u.stage, protocol("%s context for closed update context %q", kind, u.tag)
	}
	if u.busy {
		return u.stage, protocol("%s context for %q opened while another is open", kind, u.tag)
	}
	for _, s := range allowed {
		if u.stage == s {
			u.busy = true
			return u.stage, nil
		}
	}
	return u.stage, protocol("%s context for %q not allowed at stage %s", kind, u.tag, u.stage)
}

// lookupUpdate resolves tag against ctx. An empty tag means no correlation.
func lookupUpdate(ctx context.Context, tag string) (*UpdateContext, error) {
	if tag == "" {
		return nil, nil
	}
	if err := errors.ValidateContextTag(tag); err != nil {
		return nil, errors.Wrap(errors.ErrCodeContextProtocol, err, "update context tag")
	}
	uc, ok := UpdateContextFrom(ctx, tag)
	if !ok {
		return nil, protocol("no update context for tag %q", tag)
	}
	return uc, nil
}

// =============================================================================
// Split Context
// =============================================================================

// SplitContext shares one identity map across several split calls, so an
// object reached from two roots is defined once and referenced afterwards.
// The map is dropped on Close.
type SplitContext struct {
	ctx    context.Context
	tag    string
	update *UpdateContext
	stage  Stage

	mu       sync.Mutex
	refIndex *RefMap
	outer    *RefMap
	closed   bool
}

// NewSplitContext opens a split context. With a non-empty tag it joins the
// update context for tag carried by ctx, acting as the outer split of a
// round when the update context is idle and as the inner split after the
// inner merge.
func NewSplitContext(ctx context.Context, tag string) (*SplitContext, error) {
	uc, err := lookupUpdate(ctx, tag)
	if err != nil {
		return nil, err
	}
	sc := &SplitContext{ctx: ctx, tag: tag, update: uc, refIndex: NewRefMap()}
	if uc != nil {
		sc.stage, err = uc.enter("split", StageIdle, StageInnerMerge)
		if err != nil {
			return nil, err
		}
		if sc.stage == StageInnerMerge {
			uc.mu.Lock()
			sc.outer = RefMapFromIndexMap(uc.innerIndexRef)
			uc.mu.Unlock()
		}
	}
	observability.Graph().OnContextEnter(ctx, "split", tag, sc.stage.String())
	return sc, nil
}

// Flatten flattens root with the context's shared identity map.
func (c *SplitContext) Flatten(root any) (*GraphDef, state.FlatState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, protocol("split context used after close")
	}
	return flatten(c.ctx, root, WithRefIndex(c.refIndex), WithRefOuterIndex(c.outer))
}

// Split is [Split] with the context's shared identity map.
func (c *SplitContext) Split(root any, filters ...state.Filter) (*GraphDef, []*state.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, protocol("split context used after close")
	}
	return split(c.ctx, root, []FlattenOption{WithRefIndex(c.refIndex), WithRefOuterIndex(c.outer)}, filters...)
}

// Close releases the identity map and advances the update context, if any.
func (c *SplitContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol("split context closed twice")
	}
	c.closed = true
	if uc := c.update; uc != nil {
		uc.mu.Lock()
		if c.stage == StageIdle {
			uc.outerRefIndex = c.refIndex
			uc.stage = StageOuterSplit
		} else {
			uc.innerIndexRef = nil
			uc.stage = StageInnerSplit
		}
		uc.busy = false
		uc.mu.Unlock()
	}
	c.refIndex = nil
	c.outer = nil
	observability.Graph().OnContextExit(c.ctx, "split", c.tag, c.stage.String(), nil)
	return nil
}

// WithSplitContext runs fn with a fresh split context and closes it on
// every exit path.
func WithSplitContext(ctx context.Context, tag string, fn func(*SplitContext) error) error {
	sc, err := NewSplitContext(ctx, tag)
	if err != nil {
		return err
	}
	err = fn(sc)
	return stderrors.Join(err, sc.Close())
}

// =============================================================================
// Merge Context
// =============================================================================

// MergeContext shares one index map across several merge calls, so a
// reference emitted by one split of a shared split context resolves to the
// object rebuilt by an earlier merge.
type MergeContext struct {
	ctx    context.Context
	tag    string
	inner  bool
	update *UpdateContext
	stage  Stage

	mu       sync.Mutex
	indexRef *IndexMap
	outer    *IndexMap
	closed   bool
}

// NewMergeContext opens a merge context. With a non-empty tag it joins the
// update context for tag carried by ctx: inner merges follow the outer
// split, outer merges follow the inner split and reuse the objects the outer
// split saw.
func NewMergeContext(ctx context.Context, tag string, inner bool) (*MergeContext, error) {
	uc, err := lookupUpdate(ctx, tag)
	if err != nil {
		return nil, err
	}
	mc := &MergeContext{ctx: ctx, tag: tag, inner: inner, update: uc, indexRef: NewIndexMap()}
	if uc != nil {
		want := StageInnerSplit
		if inner {
			want = StageOuterSplit
		}
		mc.stage, err = uc.enter(mc.kind(), want)
		if err != nil {
			return nil, err
		}
		if !inner {
			uc.mu.Lock()
			mc.outer = IndexMapFromRefMap(uc.outerRefIndex)
			uc.mu.Unlock()
		}
	}
	observability.Graph().OnContextEnter(ctx, mc.kind(), tag, mc.stage.String())
	return mc, nil
}

func (c *MergeContext) kind() string {
	if c.inner {
		return "inner merge"
	}
	return "merge"
}

// Unflatten rebuilds a graph with the context's shared index map.
func (c *MergeContext) Unflatten(def *GraphDef, flat state.Flattener) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, protocol("merge context used after close")
	}
	return unflatten(c.ctx, def, flat, WithIndexRef(c.indexRef), WithOuterIndexRef(c.outer))
}

// Merge is [Merge] with the context's shared index map.
func (c *MergeContext) Merge(def *GraphDef, parts ...state.Flattener) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, protocol("merge context used after close")
	}
	return merge(c.ctx, def, []UnflattenOption{WithIndexRef(c.indexRef), WithOuterIndexRef(c.outer)}, parts...)
}

// Close releases the index map and advances the update context, if any.
func (c *MergeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return protocol("merge context closed twice")
	}
	c.closed = true
	if uc := c.update; uc != nil {
		uc.mu.Lock()
		if c.inner {
			uc.innerIndexRef = c.indexRef
			uc.stage = StageInnerMerge
		} else {
			uc.outerRefIndex = nil
			uc.stage = StageIdle
		}
		uc.busy = false
		uc.mu.Unlock()
	}
	c.indexRef = nil
	c.outer = nil
	observability.Graph().OnContextExit(c.ctx, c.kind(), c.tag, c.stage.String(), nil)
	return nil
}

// WithMergeContext runs fn with a fresh merge context and closes it on
// every exit path.
func WithMergeContext(ctx context.Context, tag string, inner bool, fn func(*MergeContext) error) error {
	mc, err := NewMergeContext(ctx, tag, inner)
	if err != nil {
		return err
	}
	err = fn(mc)
	return stderrors.Join(err, mc.Close())
}
