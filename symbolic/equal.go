package symbolic

import "github.com/thiremani/loopcarry/ir"

type eqPair struct {
	a, b ir.Node
}

// GraphEqual reports whether a and b are structurally identical,
// respecting DAG sharing: identical subgraphs (by pointer identity) are
// recognized in O(1) rather than walked again, via a memo of pairs
// already proven equal, keeping the walk sub-exponential over a shared
// DAG.
func GraphEqual(a, b ir.Node) bool {
	memo := make(map[eqPair]bool)
	return graphEqual(a, b, memo)
}

func graphEqual(a, b ir.Node, memo map[eqPair]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	key := eqPair{a, b}
	if v, ok := memo[key]; ok {
		return v
	}
	// Assume equal while recursing to short-circuit structural cycles
	// that would otherwise be impossible in a DAG but cost nothing to
	// guard against.
	memo[key] = true
	eq := structEqual(a, b, memo)
	memo[key] = eq
	return eq
}

func exprEqual(a, b ir.Expr, memo map[eqPair]bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return graphEqual(a, b, memo)
}

func structEqual(a, b ir.Node, memo map[eqPair]bool) bool {
	switch x := a.(type) {
	case *ir.Variable:
		y, ok := b.(*ir.Variable)
		return ok && x.Name == y.Name && typeEqual(x.Typ, y.Typ)
	case *ir.IntImm:
		y, ok := b.(*ir.IntImm)
		return ok && x.Value == y.Value && typeEqual(x.Typ, y.Typ)
	case *ir.Add:
		y, ok := b.(*ir.Add)
		return ok && exprEqual(x.A, y.A, memo) && exprEqual(x.B, y.B, memo)
	case *ir.Sub:
		y, ok := b.(*ir.Sub)
		return ok && exprEqual(x.A, y.A, memo) && exprEqual(x.B, y.B, memo)
	case *ir.Mul:
		y, ok := b.(*ir.Mul)
		return ok && exprEqual(x.A, y.A, memo) && exprEqual(x.B, y.B, memo)
	case *ir.Eq:
		y, ok := b.(*ir.Eq)
		return ok && exprEqual(x.A, y.A, memo) && exprEqual(x.B, y.B, memo)
	case *ir.Gt:
		y, ok := b.(*ir.Gt)
		return ok && exprEqual(x.A, y.A, memo) && exprEqual(x.B, y.B, memo)
	case *ir.Ramp:
		y, ok := b.(*ir.Ramp)
		return ok && x.Lanes == y.Lanes && exprEqual(x.Base, y.Base, memo) && exprEqual(x.Stride, y.Stride, memo)
	case *ir.Broadcast:
		y, ok := b.(*ir.Broadcast)
		return ok && x.Lanes == y.Lanes && exprEqual(x.Value, y.Value, memo)
	case *ir.Load:
		y, ok := b.(*ir.Load)
		return ok && x.Buffer == y.Buffer && x.Class == y.Class &&
			typeEqual(x.ElemType, y.ElemType) &&
			exprEqual(x.Index, y.Index, memo) && exprEqual(x.Predicate, y.Predicate, memo)
	case *ir.Let:
		y, ok := b.(*ir.Let)
		return ok && x.Name == y.Name && exprEqual(x.Value, y.Value, memo) && exprEqual(x.Body, y.Body, memo)
	case *ir.Call:
		y, ok := b.(*ir.Call)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !exprEqual(x.Args[i], y.Args[i], memo) {
				return false
			}
		}
		return true
	case *ir.Store:
		y, ok := b.(*ir.Store)
		return ok && x.Buffer == y.Buffer && exprEqual(x.Index, y.Index, memo) &&
			exprEqual(x.Value, y.Value, memo) && exprEqual(x.Predicate, y.Predicate, memo)
	case *ir.Block:
		y, ok := b.(*ir.Block)
		if !ok || len(x.Stmts) != len(y.Stmts) {
			return false
		}
		for i := range x.Stmts {
			if !graphEqual(x.Stmts[i], y.Stmts[i], memo) {
				return false
			}
		}
		return true
	case *ir.LetStmt:
		y, ok := b.(*ir.LetStmt)
		return ok && x.Name == y.Name && exprEqual(x.Value, y.Value, memo) && graphEqual(x.Body, y.Body, memo)
	case *ir.For:
		y, ok := b.(*ir.For)
		return ok && x.Name == y.Name && x.ForType == y.ForType &&
			exprEqual(x.Min, y.Min, memo) && exprEqual(x.Extent, y.Extent, memo) && graphEqual(x.Body, y.Body, memo)
	case *ir.IfThenElse:
		y, ok := b.(*ir.IfThenElse)
		if !ok || !exprEqual(x.Cond, y.Cond, memo) || !graphEqual(x.Then, y.Then, memo) {
			return false
		}
		if (x.Else == nil) != (y.Else == nil) {
			return false
		}
		if x.Else == nil {
			return true
		}
		return graphEqual(x.Else, y.Else, memo)
	case *ir.ProducerConsumer:
		y, ok := b.(*ir.ProducerConsumer)
		return ok && x.Name == y.Name && x.IsProducer == y.IsProducer && graphEqual(x.Body, y.Body, memo)
	case *ir.Allocate:
		y, ok := b.(*ir.Allocate)
		if !ok || x.Name != y.Name || x.Class != y.Class || !typeEqual(x.ElemType, y.ElemType) || len(x.Extents) != len(y.Extents) {
			return false
		}
		for i := range x.Extents {
			if !exprEqual(x.Extents[i], y.Extents[i], memo) {
				return false
			}
		}
		if (x.Condition == nil) != (y.Condition == nil) {
			return false
		}
		if x.Condition != nil && !exprEqual(x.Condition, y.Condition, memo) {
			return false
		}
		return graphEqual(x.Body, y.Body, memo)
	default:
		return false
	}
}

func typeEqual(a, b ir.Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Lanes() == b.Lanes() && a.String() == b.String()
}
