package loopcarry

import (
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// Scratch is a stack-class buffer backing one admitted chain: it holds
// the chain's last n values across the iteration boundary.
type Scratch struct {
	Name     string
	ElemType ir.Type // scalar element type
	Size     int32   // element count: chain length times lanes
	// Prologue populates slots [0, n-1) and must run once, before the
	// first iteration, with the loop variable at its min.
	Prologue ir.Stmt
}

// slotIndex returns the scratch index expression for slot i: the bare
// element index for scalars, the ramp covering the slot's lanes for
// vectors.
func slotIndex(i int, lanes int32) ir.Expr {
	base := &ir.IntImm{Value: int64(i) * int64(lanes), Typ: ir.Int32}
	if lanes <= 1 {
		return base
	}
	return &ir.Ramp{Base: base, Stride: &ir.IntImm{Value: 1, Typ: ir.Int32}, Lanes: lanes}
}

// scratchLoad builds a Load from scratch slot i with a trivially true
// predicate. Alignment stays default: the load is at a constant address.
func scratchLoad(name string, t ir.Type, i int) *ir.Load {
	return &ir.Load{
		Buffer:    name,
		Index:     slotIndex(i, t.Lanes()),
		Predicate: ir.ConstTrue(),
		Class:     ir.BufferIntermediate,
		ElemType:  t,
	}
}

func scratchStore(name string, t ir.Type, i int, value ir.Expr) *ir.Store {
	return &ir.Store{
		Buffer:    name,
		Index:     slotIndex(i, t.Lanes()),
		Value:     value,
		Predicate: ir.ConstTrue(),
	}
}

func blockOf(stmts []ir.Stmt) ir.Stmt {
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &ir.Block{Stmts: stmts}
}

// synthesizeRun rewrites one run of stores given its admitted chains.
// The emitted layout is: the leading-edge store for every chain (the
// live per-iteration load landing in the newest slot), then the core
// with every carried load redirected to scratch, then the shuffles that
// slide each chain's values down one slot for the next iteration. One
// Scratch (with its prologue) is appended to r.scratches per chain.
func (r *loopRewriter) synthesizeRun(core ir.Stmt, admitted []AdmittedChain, groups []*LoadGroup) ir.Stmt {
	replacements := map[ir.Expr]ir.Expr{}
	var leadingEdges []ir.Stmt
	var shuffles []ir.Stmt

	for _, chain := range admitted {
		c := chain.Groups
		n := len(c)
		first := groups[c[0]].Canonical()
		t := first.Type()
		name := symbolic.UniqueName("carry")

		var initVals []ir.Expr
		for i := 0; i < n; i++ {
			origLoad := groups[c[i]].Canonical()
			fromScratch := scratchLoad(name, t, i)
			for _, member := range groups[c[i]].Members {
				replacements[member] = fromScratch
			}
			if i == n-1 {
				leadingEdges = append(leadingEdges, scratchStore(name, t, i, origLoad))
			} else {
				initVals = append(initVals, origLoad)
			}
			if i > 0 {
				shuffles = append(shuffles, scratchStore(name, t, i-1, fromScratch))
			}
		}

		r.scratches = append(r.scratches, &Scratch{
			Name:     name,
			ElemType: t.WithLanes(1),
			Size:     int32(n) * t.Lanes(),
			Prologue: r.buildPrologue(name, t, initVals),
		})
	}

	rewrittenCore := symbolic.GraphSubstituteAll(replacements, core).(ir.Stmt)

	var parts []ir.Stmt
	parts = append(parts, leadingEdges...)
	parts = append(parts, rewrittenCore)
	parts = append(parts, shuffles...)
	// Coalesce the scratch index computations the synthesis just
	// duplicated across the leading edges, core and shuffles.
	return symbolic.CSE(blockOf(parts)).(ir.Stmt)
}

// buildPrologue turns one chain's initial-iteration values into the
// stores that populate slots [0, n-1) before the first iteration. The
// values are CSE'd jointly rather than one by one: they originate from
// the same index expression and share most of their subterms, so they
// are bundled into a synthetic pure-intrinsic call, simplified and
// CSE'd as a single expression, then split back apart.
func (r *loopRewriter) buildPrologue(name string, t ir.Type, initVals []ir.Expr) ir.Stmt {
	bundle := ir.Expr(&ir.Call{Name: symbolic.UniqueName("bundle"), Args: initVals, Typ: ir.Int32})
	bundle = symbolic.Simplify(bundle)
	processed := symbolic.CSE(bundle)

	var lets []*ir.Let
	for {
		l, ok := processed.(*ir.Let)
		if !ok {
			break
		}
		lets = append(lets, l)
		processed = l.Body
	}
	call, ok := processed.(*ir.Call)
	if !ok {
		panic("loopcarry: joint-CSE bundle did not peel back to a call node")
	}

	var stores []ir.Stmt
	for i, v := range call.Args {
		stores = append(stores, scratchStore(name, t, i, v))
	}
	prologue := blockOf(stores)
	for i := len(lets) - 1; i >= 0; i-- {
		prologue = &ir.LetStmt{Name: lets[i].Name, Value: lets[i].Value, Body: prologue}
	}
	// The initial stores may have been lifted out of let stmts, so
	// rewrap them in the ones they still reference, recomputing the
	// free-variable usage rather than rewrapping blindly.
	return wrapPrologueInLets(prologue, r.letStack)
}

// letFrame is one entry of the lexical let-stack the rewriter threads
// while walking a loop body.
type letFrame struct {
	Name  string
	Value ir.Expr
}

// wrapPrologueInLets rewraps stmt in every frame of letStack whose name
// it actually references, innermost first.
func wrapPrologueInLets(stmt ir.Stmt, letStack []letFrame) ir.Stmt {
	out := stmt
	for i := len(letStack) - 1; i >= 0; i-- {
		f := letStack[i]
		if symbolic.StmtUsesVar(out, f.Name) {
			out = &ir.LetStmt{Name: f.Name, Value: f.Value, Body: out}
		}
	}
	return out
}
