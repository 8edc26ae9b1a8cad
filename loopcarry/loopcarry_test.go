package loopcarry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

func intVar(name string) *ir.Variable {
	return &ir.Variable{Name: name, Typ: ir.Int32}
}

func imm(v int64) *ir.IntImm {
	return &ir.IntImm{Value: v, Typ: ir.Int32}
}

func add(a, b ir.Expr) ir.Expr {
	return &ir.Add{A: a, B: b}
}

func paramLoad(buf string, idx ir.Expr) *ir.Load {
	return &ir.Load{Buffer: buf, Index: idx, Class: ir.BufferParam, ElemType: ir.Int32}
}

// stencil3 is the canonical 3-tap input:
//
//	for i in [0, N): out[i] = in[i] + in[i+1] + in[i+2]
func stencil3(forType ir.ForType, class ir.BufferClass) *ir.For {
	i := intVar("i")
	mk := func(off int64) *ir.Load {
		idx := ir.Expr(i)
		if off != 0 {
			idx = add(i, imm(off))
		}
		return &ir.Load{Buffer: "in", Index: idx, Class: class, ElemType: ir.Int32}
	}
	body := &ir.Store{
		Buffer: "out",
		Index:  i,
		Value:  add(add(mk(0), mk(1)), mk(2)),
	}
	return &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: forType, Body: body}
}

func countAllocates(s ir.Stmt) []*ir.Allocate {
	var out []*ir.Allocate
	var walk func(ir.Stmt)
	walk = func(s ir.Stmt) {
		switch x := s.(type) {
		case *ir.Allocate:
			out = append(out, x)
			walk(x.Body)
		case *ir.Block:
			for _, st := range x.Stmts {
				walk(st)
			}
		case *ir.For:
			walk(x.Body)
		case *ir.IfThenElse:
			walk(x.Then)
			if x.Else != nil {
				walk(x.Else)
			}
		case *ir.LetStmt:
			walk(x.Body)
		case *ir.ProducerConsumer:
			walk(x.Body)
		}
	}
	walk(s)
	return out
}

func TestStencilCarriesThreeTaps(t *testing.T) {
	loop := stencil3(ir.Serial, ir.BufferParam)
	out := LoopCarry(loop, DefaultConfig())

	guard, ok := out.(*ir.IfThenElse)
	require.True(t, ok, "expected the transformed loop to be wrapped in an emptiness guard, got %T", out)
	gt, ok := guard.Cond.(*ir.Gt)
	require.True(t, ok)
	require.True(t, symbolic.GraphEqual(gt.A, intVar("N")))
	require.Nil(t, guard.Else)

	alloc, ok := guard.Then.(*ir.Allocate)
	require.True(t, ok, "expected a scratch allocation under the guard, got %T", guard.Then)
	require.Equal(t, ir.Stack, alloc.Class)
	require.Len(t, alloc.Extents, 1)
	require.True(t, symbolic.GraphEqual(alloc.Extents[0], imm(3)), "3-tap stencil needs 3 scratch slots")

	body, ok := alloc.Body.(*ir.Block)
	require.True(t, ok)
	require.Len(t, body.Stmts, 2)

	// The prologue populates slots 0 and 1 from the input, at the loop min.
	prologue, ok := body.Stmts[0].(*ir.Block)
	require.True(t, ok, "expected a prologue block, got %T", body.Stmts[0])
	require.Len(t, prologue.Stmts, 2)
	for _, st := range prologue.Stmts {
		store, ok := st.(*ir.Store)
		require.True(t, ok)
		require.Equal(t, alloc.Name, store.Buffer)
		load, ok := store.Value.(*ir.Load)
		require.True(t, ok, "prologue should store raw input loads, got %T", store.Value)
		require.Equal(t, "in", load.Buffer)
		require.False(t, symbolic.StmtUsesVar(st, "i"), "prologue must not reference the loop variable")
	}

	loopOut, ok := body.Stmts[1].(*ir.For)
	require.True(t, ok)
	require.Equal(t, ir.Serial, loopOut.ForType)

	newBody, ok := loopOut.Body.(*ir.Block)
	require.True(t, ok)
	require.Len(t, newBody.Stmts, 4, "leading edge + core + two shuffles")

	// Leading edge: the only live load left, in[i+2], lands in the last slot.
	lead, ok := newBody.Stmts[0].(*ir.Store)
	require.True(t, ok)
	require.Equal(t, alloc.Name, lead.Buffer)
	leadLoad, ok := lead.Value.(*ir.Load)
	require.True(t, ok)
	require.Equal(t, "in", leadLoad.Buffer)
	require.True(t, symbolic.GraphEqual(leadLoad.Index, add(intVar("i"), imm(2))))

	// Core: the original store with every tap redirected to scratch.
	core, ok := newBody.Stmts[1].(*ir.Store)
	require.True(t, ok)
	require.Equal(t, "out", core.Buffer)
	require.False(t, usesBuffer(core.Value, "in"), "core must not reload the input")
	require.True(t, usesBuffer(core.Value, alloc.Name))

	// Shuffles slide slots 1 and 2 down to 0 and 1 for the next iteration.
	for k, st := range newBody.Stmts[2:] {
		sh, ok := st.(*ir.Store)
		require.True(t, ok)
		require.Equal(t, alloc.Name, sh.Buffer)
		require.True(t, symbolic.GraphEqual(sh.Index, imm(int64(k))))
		from, ok := sh.Value.(*ir.Load)
		require.True(t, ok)
		require.Equal(t, alloc.Name, from.Buffer)
		require.True(t, symbolic.GraphEqual(from.Index, imm(int64(k+1))))
	}
}

func usesBuffer(e ir.Expr, name string) bool {
	found := false
	seen := map[*ir.Load]bool{}
	var out []*ir.Load
	walkForLoads(e, seen, &out)
	for _, l := range out {
		if l.Buffer == name {
			found = true
		}
	}
	return found
}

func TestParallelLoopUntouched(t *testing.T) {
	loop := stencil3(ir.Parallel, ir.BufferParam)
	out := LoopCarry(loop, DefaultConfig())
	require.Same(t, ir.Stmt(loop), out, "a non-serial loop must pass through by identity")
}

func TestNonLinearIndexUntouched(t *testing.T) {
	i := intVar("i")
	body := &ir.Store{
		Buffer: "out",
		Index:  i,
		Value:  paramLoad("in", &ir.Mul{A: i, B: i}),
	}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, DefaultConfig())
	require.True(t, symbolic.GraphEqual(loop, out))
	require.Empty(t, countAllocates(out))
}

func TestUnitExtentLoopUntouched(t *testing.T) {
	loop := stencil3(ir.Serial, ir.BufferParam)
	loop.Extent = imm(1)
	out := LoopCarry(loop, DefaultConfig())
	require.True(t, symbolic.GraphEqual(loop, out))
}

func TestIntermediateBufferNeedsConsume(t *testing.T) {
	// Outside any consume region the producer may still be writing, so
	// nothing may be lifted.
	loop := stencil3(ir.Serial, ir.BufferIntermediate)
	out := LoopCarry(loop, DefaultConfig())
	require.True(t, symbolic.GraphEqual(loop, out))

	// Inside the consume region of "in", the same loop carries.
	wrapped := &ir.ProducerConsumer{Name: "in", IsProducer: false, Body: stencil3(ir.Serial, ir.BufferIntermediate)}
	out = LoopCarry(wrapped, DefaultConfig())
	pc, ok := out.(*ir.ProducerConsumer)
	require.True(t, ok)
	require.Len(t, countAllocates(pc.Body), 1)
}

func TestPredicateMismatchBlocksCarry(t *testing.T) {
	i := intVar("i")
	p := &ir.Variable{Name: "p", Typ: ir.Bool}
	q := &ir.Variable{Name: "q", Typ: ir.Bool}
	l0 := &ir.Load{Buffer: "in", Index: i, Predicate: p, Class: ir.BufferParam, ElemType: ir.Int32}
	l1 := &ir.Load{Buffer: "in", Index: add(i, imm(1)), Predicate: q, Class: ir.BufferParam, ElemType: ir.Int32}
	body := &ir.Store{Buffer: "out", Index: i, Value: add(l0, l1)}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, DefaultConfig())
	require.True(t, symbolic.GraphEqual(loop, out), "differing predicates must not form a carry edge")
}

func TestMatchingPredicatesCarry(t *testing.T) {
	i := intVar("i")
	p := &ir.Variable{Name: "p", Typ: ir.Bool}
	l0 := &ir.Load{Buffer: "in", Index: i, Predicate: p, Class: ir.BufferParam, ElemType: ir.Int32}
	l1 := &ir.Load{Buffer: "in", Index: add(i, imm(1)), Predicate: p, Class: ir.BufferParam, ElemType: ir.Int32}
	body := &ir.Store{Buffer: "out", Index: i, Value: add(l0, l1)}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, DefaultConfig())
	require.Len(t, countAllocates(out), 1)
}

// wideStencil builds out[i] = sum of in[i..i+taps-1].
func wideStencil(buf, outBuf string, taps int) *ir.Store {
	i := intVar("i")
	mk := func(off int64) *ir.Load {
		idx := ir.Expr(i)
		if off != 0 {
			idx = add(i, imm(off))
		}
		return &ir.Load{Buffer: buf, Index: idx, Class: ir.BufferParam, ElemType: ir.Int32}
	}
	val := ir.Expr(mk(0))
	for k := 1; k < taps; k++ {
		val = add(val, mk(int64(k)))
	}
	return &ir.Store{Buffer: outBuf, Index: i, Value: val}
}

func TestBudgetTruncatesSecondChain(t *testing.T) {
	body := &ir.Block{Stmts: []ir.Stmt{
		wideStencil("a", "out", 6),
		wideStencil("b", "out2", 5),
	}}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, Config{MaxCarriedValues: 8})

	allocs := countAllocates(out)
	require.Len(t, allocs, 2)
	var sizes []int64
	total := int64(0)
	for _, a := range allocs {
		sz := a.Extents[0].(*ir.IntImm).Value
		sizes = append(sizes, sz)
		total += sz
	}
	require.ElementsMatch(t, []int64{6, 2}, sizes, "the longer chain is admitted whole, the second truncated to the remaining slots")
	require.LessOrEqual(t, total, int64(8))
}

func TestBudgetMonotonic(t *testing.T) {
	prev := -1
	for _, k := range []int32{0, 1, 2, 3, 8} {
		out := LoopCarry(stencil3(ir.Serial, ir.BufferParam), Config{MaxCarriedValues: k})
		n := len(countAllocates(out))
		require.GreaterOrEqual(t, n, prev, "allocation count must not decrease as the budget grows (k=%d)", k)
		prev = n
	}
}

func TestLetBoundLinearIndexCarries(t *testing.T) {
	i := intVar("i")
	j := intVar("j")
	body := &ir.LetStmt{
		Name:  "j",
		Value: &ir.Mul{A: i, B: imm(2)},
		Body: &ir.Store{
			Buffer: "out",
			Index:  i,
			Value:  add(paramLoad("in", j), paramLoad("in", add(j, imm(2)))),
		},
	}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, DefaultConfig())

	allocs := countAllocates(out)
	require.Len(t, allocs, 1, "j = 2*i steps by 2, so in[j] and in[j+2] form a chain")
	require.Equal(t, int64(2), allocs[0].Extents[0].(*ir.IntImm).Value)

	// The prologue references j, so it must be rewrapped in the let.
	body2 := allocs[0].Body.(*ir.Block)
	let, ok := body2.Stmts[0].(*ir.LetStmt)
	require.True(t, ok, "prologue must be rewrapped in the let it references, got %T", body2.Stmts[0])
	require.Equal(t, "j", let.Name)
	require.False(t, symbolic.StmtUsesVar(let, "i"), "the loop variable must be pinned to the loop min in the prologue")
}

func TestInnerLoopTransformedBottomUp(t *testing.T) {
	inner := stencil3(ir.Serial, ir.BufferParam)
	outer := &ir.For{Name: "y", Min: imm(0), Extent: intVar("M"), ForType: ir.Serial, Body: inner}
	out := LoopCarry(outer, DefaultConfig())

	outerFor, ok := out.(*ir.For)
	require.True(t, ok, "the outer loop itself has no carries and must stay a plain loop")
	require.Len(t, countAllocates(outerFor.Body), 1, "the inner loop must still be transformed")
}

func TestVectorLoadsCarry(t *testing.T) {
	i := intVar("i")
	vecLoad := func(base ir.Expr) *ir.Load {
		return &ir.Load{
			Buffer:   "in",
			Index:    &ir.Ramp{Base: base, Stride: imm(1), Lanes: 4},
			Class:    ir.BufferParam,
			ElemType: ir.Int32.WithLanes(4),
		}
	}
	body := &ir.Store{
		Buffer:    "out",
		Index:     &ir.Ramp{Base: i, Stride: imm(1), Lanes: 4},
		Value:     add(vecLoad(i), vecLoad(add(i, imm(1)))),
		Predicate: nil,
	}
	loop := &ir.For{Name: "i", Min: imm(0), Extent: intVar("N"), ForType: ir.Serial, Body: body}
	out := LoopCarry(loop, DefaultConfig())

	allocs := countAllocates(out)
	require.Len(t, allocs, 1)
	require.Equal(t, int64(8), allocs[0].Extents[0].(*ir.IntImm).Value, "2 slots of 4 lanes each")
	require.True(t, ir.IsInt32Scalar(allocs[0].ElemType), "the allocation is in scalar elements")
}

func TestRepeatedRunsAreDeterministic(t *testing.T) {
	mk := func() ir.Stmt {
		return LoopCarry(stencil3(ir.Serial, ir.BufferParam), DefaultConfig())
	}
	a, b := mk(), mk()
	// Fresh scratch names differ between runs; everything else must not.
	require.Equal(t, renameScratch(a), renameScratch(b))
}

func renameScratch(s ir.Stmt) string {
	alloc := countAllocates(s)[0]
	return strings.ReplaceAll(s.String(), alloc.Name, "scratch")
}
