package loopcarry

import (
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// DiscoverLoads walks a run of store statements (already reduced to a
// pure DAG, with lets substituted in) and returns every distinct
// top-level Load, in deterministic discovery order. It does not recurse
// into a load's own index or predicate expression: a Load nested inside
// another Load's address is not itself a carry candidate.
func DiscoverLoads(s ir.Stmt) []*ir.Load {
	seen := map[*ir.Load]bool{}
	var out []*ir.Load
	discoverInStmt(s, seen, &out)
	return out
}

func discoverInStmt(s ir.Stmt, seen map[*ir.Load]bool, out *[]*ir.Load) {
	switch x := s.(type) {
	case *ir.Block:
		for _, st := range x.Stmts {
			discoverInStmt(st, seen, out)
		}
	case *ir.Store:
		walkForLoads(x.Value, seen, out)
		walkForLoads(x.Index, seen, out)
		walkForLoads(x.Predicate, seen, out)
	}
}

func walkForLoads(e ir.Expr, seen map[*ir.Load]bool, out *[]*ir.Load) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ir.Load:
		if !seen[x] {
			seen[x] = true
			*out = append(*out, x)
		}
	case *ir.Add:
		walkForLoads(x.A, seen, out)
		walkForLoads(x.B, seen, out)
	case *ir.Sub:
		walkForLoads(x.A, seen, out)
		walkForLoads(x.B, seen, out)
	case *ir.Mul:
		walkForLoads(x.A, seen, out)
		walkForLoads(x.B, seen, out)
	case *ir.Eq:
		walkForLoads(x.A, seen, out)
		walkForLoads(x.B, seen, out)
	case *ir.Gt:
		walkForLoads(x.A, seen, out)
		walkForLoads(x.B, seen, out)
	case *ir.Ramp:
		walkForLoads(x.Base, seen, out)
		walkForLoads(x.Stride, seen, out)
	case *ir.Broadcast:
		walkForLoads(x.Value, seen, out)
	case *ir.Let:
		walkForLoads(x.Value, seen, out)
		walkForLoads(x.Body, seen, out)
	case *ir.Call:
		for _, a := range x.Args {
			walkForLoads(a, seen, out)
		}
	}
}

// LoadGroup is a set of loads the rewriter treats as identical: all
// members are rewritten to the same scratch slot.
type LoadGroup struct {
	Members []*ir.Load
}

// Canonical is the representative member every chain operation reasons
// about.
func (g *LoadGroup) Canonical() *ir.Load { return g.Members[0] }

// isSafeBuffer reports whether a load may legally be carried across an
// iteration boundary: its backing storage must be immutable for the
// duration of the loop. That means a bound image, an input parameter, or
// a production we are inside the consume region of.
func isSafeBuffer(l *ir.Load, inConsume *InConsumeSet) bool {
	switch l.Class {
	case ir.BufferImage, ir.BufferParam:
		return true
	case ir.BufferIntermediate:
		return inConsume.Contains(l.Buffer)
	default:
		return false
	}
}

// GroupLoads discards loads from unsafe buffers and groups the remainder
// by DAG equality of the whole Load expression, preserving discovery
// order both across and within groups.
func GroupLoads(loads []*ir.Load, inConsume *InConsumeSet) []*LoadGroup {
	var groups []*LoadGroup
	for _, l := range loads {
		if !isSafeBuffer(l, inConsume) {
			continue
		}
		placed := false
		for _, g := range groups {
			if symbolic.GraphEqual(g.Canonical(), l) {
				g.Members = append(g.Members, l)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &LoadGroup{Members: []*ir.Load{l}})
		}
	}
	return groups
}
