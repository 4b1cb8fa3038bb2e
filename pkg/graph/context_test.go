package graph

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

func TestSplitMergeContext(t *testing.T) {
	ctx := context.Background()
	m := &foo{A: param(1)}

	sc, err := NewSplitContext(ctx, "")
	require.NoError(t, err)
	def1, p1, err := sc.Split(m)
	require.NoError(t, err)
	def2, p2, err := sc.Split(m)
	require.NoError(t, err)
	require.NoError(t, sc.Close())

	assert.IsType(t, &CompositeDef{}, def1.Root())
	assert.IsType(t, &NodeRef{}, def2.Root(), "second split of the same root")
	assert.Equal(t, 0, p2[0].Len())

	mc, err := NewMergeContext(ctx, "", false)
	require.NoError(t, err)
	m1, err := mc.Merge(def1, p1[0])
	require.NoError(t, err)
	m2, err := mc.Merge(def2, p2[0])
	require.NoError(t, err)
	require.NoError(t, mc.Close())

	assert.Same(t, m1, m2)
	assert.NotSame(t, m, m1)
}

func TestSplitContextSharedAcrossRoots(t *testing.T) {
	ctx := context.Background()
	shared := param(1)
	m1 := &foo{A: shared}
	m2 := &foo{A: shared, Ref: m1}

	var defs []*GraphDef
	var states []*state.State
	err := WithSplitContext(ctx, "", func(sc *SplitContext) error {
		for _, m := range []*foo{m1, m2} {
			def, parts, err := sc.Split(m)
			if err != nil {
				return err
			}
			defs = append(defs, def)
			states = append(states, parts[0])
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, states[1].Len(), "m2 only references known objects")

	var out []*foo
	err = WithMergeContext(ctx, "", false, func(mc *MergeContext) error {
		for i, def := range defs {
			v, err := mc.Merge(def, states[i])
			if err != nil {
				return err
			}
			out = append(out, v.(*foo))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, out[0].A, out[1].A)
	assert.Same(t, out[0], out[1].Ref)
}

func TestContextUseAfterClose(t *testing.T) {
	ctx := context.Background()
	sc, err := NewSplitContext(ctx, "")
	require.NoError(t, err)
	require.NoError(t, sc.Close())

	_, _, err = sc.Split(&foo{})
	assert.ErrorIs(t, err, ErrContextProtocol)
	_, _, err = sc.Flatten(&foo{})
	assert.ErrorIs(t, err, ErrContextProtocol)
	assert.ErrorIs(t, sc.Close(), ErrContextProtocol)

	mc, err := NewMergeContext(ctx, "", true)
	require.NoError(t, err)
	require.NoError(t, mc.Close())
	_, err = mc.Merge(&GraphDef{})
	assert.ErrorIs(t, err, ErrContextProtocol)
	assert.ErrorIs(t, mc.Close(), ErrContextProtocol)
}

func TestWithSplitContextReturnsCallbackError(t *testing.T) {
	boom := stderrors.New("boom")
	err := WithSplitContext(context.Background(), "", func(*SplitContext) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// roundTrip runs outer split, inner merge, fn on the copy, inner split and
// outer merge for root under tag.
func roundTrip(t *testing.T, ctx context.Context, tag string, root any, fn func(inner any)) any {
	t.Helper()

	var def *GraphDef
	var parts []*state.State
	require.NoError(t, WithSplitContext(ctx, tag, func(sc *SplitContext) error {
		var err error
		def, parts, err = sc.Split(root)
		return err
	}))

	var inner any
	require.NoError(t, WithMergeContext(ctx, tag, true, func(mc *MergeContext) error {
		var err error
		inner, err = mc.Merge(def, parts[0])
		return err
	}))
	fn(inner)

	require.NoError(t, WithSplitContext(ctx, tag, func(sc *SplitContext) error {
		var err error
		def, parts, err = sc.Split(inner)
		return err
	}))

	var out any
	require.NoError(t, WithMergeContext(ctx, tag, false, func(mc *MergeContext) error {
		var err error
		out, err = mc.Merge(def, parts[0])
		return err
	}))
	return out
}

func TestUpdateContextRoundTrip(t *testing.T) {
	a, b := param(1), param(2)
	m := &foo{A: a, B: b}

	ctx, uc := WithUpdateContext(context.Background(), "update")
	assert.Equal(t, "update", uc.Tag())

	out := roundTrip(t, ctx, "update", m, func(inner any) {
		c := inner.(*foo)
		assert.NotSame(t, m, c)
		c.A, c.B = c.B, c.A
		c.B.(node.Variable).SetValue(100)
		c.Ref = &foo{A: param(7)}
	})

	assert.Same(t, m, out, "outer merge reuses the caller's root")
	assert.Same(t, b, m.A)
	assert.Same(t, a, m.B)
	assert.Equal(t, 2, b.Value())
	assert.Equal(t, 100, a.Value())
	require.NotNil(t, m.Ref)
	assert.Equal(t, 7, valueOf(t, m.Ref.A))

	assert.Equal(t, StageIdle, uc.Stage())
	require.NoError(t, uc.Close())
}

func TestUpdateContextMultipleRounds(t *testing.T) {
	v := param(0)
	m := &foo{A: v}
	ctx, uc := WithUpdateContext(context.Background(), NewTag())

	for i := 1; i <= 3; i++ {
		out := roundTrip(t, ctx, uc.Tag(), m, func(inner any) {
			inner.(*foo).A.(node.Variable).SetValue(i)
		})
		assert.Same(t, m, out)
		assert.Same(t, v, m.A)
		assert.Equal(t, i, v.Value())
	}
	require.NoError(t, uc.Close())
}

func TestUpdateContextStages(t *testing.T) {
	ctx, uc := WithUpdateContext(context.Background(), "t")
	m := &foo{A: param(1)}

	sc, err := NewSplitContext(ctx, "t")
	require.NoError(t, err)
	def, parts, err := sc.Split(m)
	require.NoError(t, err)
	assert.Equal(t, StageIdle, uc.Stage(), "stage advances on close")
	require.NoError(t, sc.Close())
	assert.Equal(t, StageOuterSplit, uc.Stage())

	mc, err := NewMergeContext(ctx, "t", true)
	require.NoError(t, err)
	inner, err := mc.Merge(def, parts[0])
	require.NoError(t, err)
	require.NoError(t, mc.Close())
	assert.Equal(t, StageInnerMerge, uc.Stage())

	sc, err = NewSplitContext(ctx, "t")
	require.NoError(t, err)
	def, parts, err = sc.Split(inner)
	require.NoError(t, err)
	assert.Equal(t, 0, def.Root().(*CompositeDef).OuterIndex)
	require.NoError(t, sc.Close())
	assert.Equal(t, StageInnerSplit, uc.Stage())

	mc, err = NewMergeContext(ctx, "t", false)
	require.NoError(t, err)
	_, err = mc.Merge(def, parts[0])
	require.NoError(t, err)
	require.NoError(t, mc.Close())
	assert.Equal(t, StageIdle, uc.Stage())
	require.NoError(t, uc.Close())
}

func TestUpdateContextProtocolViolations(t *testing.T) {
	bg := context.Background()

	t.Run("unknown tag", func(t *testing.T) {
		_, err := NewSplitContext(bg, "missing")
		assert.ErrorIs(t, err, ErrContextProtocol)
		_, err = NewMergeContext(bg, "missing", true)
		assert.ErrorIs(t, err, ErrContextProtocol)
	})

	t.Run("invalid tag", func(t *testing.T) {
		ctx, uc := WithUpdateContext(bg, "bad\ttag")
		_, err := NewSplitContext(ctx, "bad\ttag")
		assert.ErrorIs(t, err, ErrContextProtocol)
		assert.NoError(t, uc.Close())
	})

	t.Run("merge before split", func(t *testing.T) {
		ctx, uc := WithUpdateContext(bg, "t")
		_, err := NewMergeContext(ctx, "t", false)
		assert.ErrorIs(t, err, ErrContextProtocol)
		_, err = NewMergeContext(ctx, "t", true)
		assert.ErrorIs(t, err, ErrContextProtocol)
		assert.NoError(t, uc.Close())
	})

	t.Run("reentrant split", func(t *testing.T) {
		ctx, uc := WithUpdateContext(bg, "t")
		sc, err := NewSplitContext(ctx, "t")
		require.NoError(t, err)
		_, err = NewSplitContext(ctx, "t")
		assert.ErrorIs(t, err, ErrContextProtocol)
		assert.ErrorIs(t, uc.Close(), ErrContextProtocol, "closed while a split is open")
		_, err = NewSplitContext(ctx, "t")
		assert.ErrorIs(t, err, ErrContextProtocol, "closed update context")
		require.NoError(t, sc.Close())
	})

	t.Run("close mid round", func(t *testing.T) {
		ctx, uc := WithUpdateContext(bg, "t")
		require.NoError(t, WithSplitContext(ctx, "t", func(sc *SplitContext) error {
			_, _, err := sc.Split(&foo{})
			return err
		}))
		assert.ErrorIs(t, uc.Close(), ErrContextProtocol)
		assert.Equal(t, StageIdle, uc.Stage(), "state is released anyway")
		assert.ErrorIs(t, uc.Close(), ErrContextProtocol, "closed twice")
	})

	t.Run("outer split twice", func(t *testing.T) {
		ctx, uc := WithUpdateContext(bg, "t")
		require.NoError(t, WithSplitContext(ctx, "t", func(*SplitContext) error { return nil }))
		_, err := NewSplitContext(ctx, "t")
		assert.ErrorIs(t, err, ErrContextProtocol)
		_ = uc.Close()
	})
}

func TestUpdateContextIsolation(t *testing.T) {
	bg := context.Background()
	ctx1, uc1 := WithUpdateContext(bg, "a")
	ctx2, uc2 := WithUpdateContext(bg, "a")

	require.NoError(t, WithSplitContext(ctx1, "a", func(*SplitContext) error { return nil }))
	assert.Equal(t, StageOuterSplit, uc1.Stage())
	assert.Equal(t, StageIdle, uc2.Stage(), "same tag on a different chain")

	_, ok := UpdateContextFrom(ctx2, "b")
	assert.False(t, ok)

	nested, inner := WithUpdateContext(ctx1, "a")
	got, ok := UpdateContextFrom(nested, "a")
	require.True(t, ok)
	assert.Same(t, inner, got, "nested context shadows the outer one")

	_ = uc1.Close()
	assert.NoError(t, uc2.Close())
	assert.NoError(t, inner.Close())
}
