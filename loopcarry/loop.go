package loopcarry

import (
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// loopRewriter carries loads over a single serial loop's body. It walks
// the body grouping consecutive stores into maximal runs, lifts carried
// values out of each run, and accumulates the scratch allocations the
// driver must hoist outside the loop.
type loopRewriter struct {
	// scope tracks vars that step linearly with loop iterations; the
	// outermost binding is the loop variable itself with step 1.
	scope     *LinearScope
	letStack  []letFrame
	inConsume *InConsumeSet
	// remaining is the loop's unspent scratch-slot budget; each lifted
	// run draws it down.
	remaining int32
	scratches []*Scratch
}

func newLoopRewriter(loopVar string, inConsume *InConsumeSet, maxCarriedValues int32) *loopRewriter {
	return &loopRewriter{
		scope:     NewLinearScope(loopVar),
		inConsume: inConsume,
		remaining: maxCarriedValues,
	}
}

func (r *loopRewriter) mutate(s ir.Stmt) ir.Stmt {
	switch x := s.(type) {
	case *ir.LetStmt:
		// Track containing lets and their linearity w.r.t. the loop
		// variable. A value that is not linear still shadows its name.
		step, linear := IsLinear(x.Value, r.scope)
		r.scope.Push()
		if linear {
			r.scope.Bind(x.Name, step)
		} else {
			r.scope.Bind(x.Name, nil)
		}
		r.letStack = append(r.letStack, letFrame{Name: x.Name, Value: x.Value})
		body := r.mutate(x.Body)
		r.letStack = r.letStack[:len(r.letStack)-1]
		r.scope.Pop()
		if body == x.Body {
			return x
		}
		return &ir.LetStmt{Name: x.Name, Value: x.Value, Body: body}
	case *ir.Block:
		return r.mutateBlock(x)
	case *ir.Store:
		if lifted := r.liftRun(x); lifted != nil {
			return lifted
		}
		return x
	case *ir.ProducerConsumer:
		body := r.mutate(x.Body)
		if body == x.Body {
			return x
		}
		return &ir.ProducerConsumer{Name: x.Name, IsProducer: x.IsProducer, Body: body}
	case *ir.Allocate:
		body := r.mutate(x.Body)
		if body == x.Body {
			return x
		}
		return &ir.Allocate{Name: x.Name, ElemType: x.ElemType, Class: x.Class, Extents: x.Extents, Condition: x.Condition, Body: body}
	default:
		// For and IfThenElse: don't lift loads out of code that might
		// not run. Stashing values in registers across an inner loop
		// isn't a good use of registers anyway.
		return s
	}
}

// mutateBlock groups the block's consecutive Store children into maximal
// runs and lifts carries out of each run as a unit; anything else
// interrupts the run and is recursed into on its own. Treating a whole
// run at once enlarges the set of loads jointly visible to edge
// detection, which lengthens chains.
func (r *loopRewriter) mutateBlock(b *ir.Block) ir.Stmt {
	var result []ir.Stmt
	var run []ir.Stmt
	same := true
	flush := func() {
		if len(run) == 0 {
			return
		}
		if lifted := r.liftRun(run...); lifted != nil {
			result = append(result, lifted)
			same = false
		} else {
			result = append(result, run...)
		}
		run = nil
	}
	for _, st := range b.Stmts {
		if _, isStore := st.(*ir.Store); isStore {
			run = append(run, st)
			continue
		}
		flush()
		mutated := r.mutate(st)
		same = same && mutated == st
		result = append(result, mutated)
	}
	flush()
	if same {
		return b
	}
	return &ir.Block{Stmts: result}
}

// liftRun is the heart of the pass: given a maximal run of stores, find
// loads whose next-iteration address matches another load's current
// address, chain them up, and rewrite the run so each chain's values are
// carried through a scratch buffer instead of reloaded. Any failure
// along the way (nothing linear, nothing provable, nothing safe, no
// budget) returns nil, meaning the run stands untouched.
func (r *loopRewriter) liftRun(run ...ir.Stmt) ir.Stmt {
	// Work on the run as a pure graph, lets substituted in. Only
	// graph-aware methods may touch it from here on.
	graphStmt := symbolic.SubstituteInAllLets(blockOf(run)).(ir.Stmt)

	loads := DiscoverLoads(graphStmt)
	groups := GroupLoads(loads, r.inConsume)
	if len(groups) < 2 {
		return nil
	}

	edges := DetectEdges(groups, r.scope)
	if len(edges) == 0 {
		return nil
	}

	chains := AgglomerateChains(edges)
	admitted := Budget(chains, r.remaining)
	if len(admitted) == 0 {
		return nil
	}
	r.remaining -= slotCount(admitted)

	return r.synthesizeRun(graphStmt, admitted, groups)
}
