package symbolic

import "github.com/thiremani/loopcarry/ir"

// rewriteFunc is consulted on every node before its children are visited.
// Returning (replacement, true) stops the recursion at that node and uses
// replacement verbatim; returning (nil, false) recurses into children and
// rebuilds the node from the (possibly rewritten) children.
type rewriteFunc func(ir.Node) (ir.Node, bool)

// mutateDAG is the memoizing DAG mutator the substitution family boils
// down to: every node is visited once per distinct identity, so shared
// subgraphs (from Let bindings) are rebuilt once and the sharing is
// preserved in the output. A node whose children all come back untouched
// is returned as-is, so untouched regions keep their identity.
func mutateDAG(n ir.Node, fn rewriteFunc, memo map[ir.Node]ir.Node) ir.Node {
	if n == nil {
		return nil
	}
	if cached, ok := memo[n]; ok {
		return cached
	}
	if repl, stop := fn(n); stop {
		memo[n] = repl
		return repl
	}

	var out ir.Node
	switch x := n.(type) {
	case *ir.Variable, *ir.IntImm:
		out = n
	case *ir.Add:
		a, b := mexpr(x.A, fn, memo), mexpr(x.B, fn, memo)
		if a == x.A && b == x.B {
			out = n
		} else {
			out = &ir.Add{A: a, B: b}
		}
	case *ir.Sub:
		a, b := mexpr(x.A, fn, memo), mexpr(x.B, fn, memo)
		if a == x.A && b == x.B {
			out = n
		} else {
			out = &ir.Sub{A: a, B: b}
		}
	case *ir.Mul:
		a, b := mexpr(x.A, fn, memo), mexpr(x.B, fn, memo)
		if a == x.A && b == x.B {
			out = n
		} else {
			out = &ir.Mul{A: a, B: b}
		}
	case *ir.Eq:
		a, b := mexpr(x.A, fn, memo), mexpr(x.B, fn, memo)
		if a == x.A && b == x.B {
			out = n
		} else {
			out = &ir.Eq{A: a, B: b}
		}
	case *ir.Gt:
		a, b := mexpr(x.A, fn, memo), mexpr(x.B, fn, memo)
		if a == x.A && b == x.B {
			out = n
		} else {
			out = &ir.Gt{A: a, B: b}
		}
	case *ir.Ramp:
		base, stride := mexpr(x.Base, fn, memo), mexpr(x.Stride, fn, memo)
		if base == x.Base && stride == x.Stride {
			out = n
		} else {
			out = &ir.Ramp{Base: base, Stride: stride, Lanes: x.Lanes}
		}
	case *ir.Broadcast:
		v := mexpr(x.Value, fn, memo)
		if v == x.Value {
			out = n
		} else {
			out = &ir.Broadcast{Value: v, Lanes: x.Lanes}
		}
	case *ir.Load:
		idx, pred := mexpr(x.Index, fn, memo), mexpr(x.Predicate, fn, memo)
		if idx == x.Index && pred == x.Predicate {
			out = n
		} else {
			out = &ir.Load{
				Buffer: x.Buffer, Class: x.Class, ElemType: x.ElemType, Alignment: x.Alignment,
				Index:     idx,
				Predicate: pred,
			}
		}
	case *ir.Let:
		val, body := mexpr(x.Value, fn, memo), mexpr(x.Body, fn, memo)
		if val == x.Value && body == x.Body {
			out = n
		} else {
			out = &ir.Let{Name: x.Name, Value: val, Body: body}
		}
	case *ir.Call:
		args := make([]ir.Expr, len(x.Args))
		same := true
		for i, a := range x.Args {
			args[i] = mexpr(a, fn, memo)
			same = same && args[i] == a
		}
		if same {
			out = n
		} else {
			out = &ir.Call{Name: x.Name, Args: args, Typ: x.Typ}
		}
	case *ir.LetStmt:
		val, body := mexpr(x.Value, fn, memo), mstmt(x.Body, fn, memo)
		if val == x.Value && body == x.Body {
			out = n
		} else {
			out = &ir.LetStmt{Name: x.Name, Value: val, Body: body}
		}
	case *ir.Store:
		idx := mexpr(x.Index, fn, memo)
		val := mexpr(x.Value, fn, memo)
		pred := mexpr(x.Predicate, fn, memo)
		if idx == x.Index && val == x.Value && pred == x.Predicate {
			out = n
		} else {
			out = &ir.Store{Buffer: x.Buffer, Index: idx, Value: val, Predicate: pred}
		}
	case *ir.Block:
		stmts := make([]ir.Stmt, len(x.Stmts))
		same := true
		for i, s := range x.Stmts {
			stmts[i] = mstmt(s, fn, memo)
			same = same && stmts[i] == s
		}
		if same {
			out = n
		} else {
			out = &ir.Block{Stmts: stmts}
		}
	case *ir.For:
		min := mexpr(x.Min, fn, memo)
		extent := mexpr(x.Extent, fn, memo)
		body := mstmt(x.Body, fn, memo)
		if min == x.Min && extent == x.Extent && body == x.Body {
			out = n
		} else {
			out = &ir.For{Name: x.Name, ForType: x.ForType, Min: min, Extent: extent, Body: body}
		}
	case *ir.IfThenElse:
		cond := mexpr(x.Cond, fn, memo)
		then := mstmt(x.Then, fn, memo)
		var elseOut ir.Stmt
		if x.Else != nil {
			elseOut = mstmt(x.Else, fn, memo)
		}
		if cond == x.Cond && then == x.Then && elseOut == x.Else {
			out = n
		} else {
			out = &ir.IfThenElse{Cond: cond, Then: then, Else: elseOut}
		}
	case *ir.ProducerConsumer:
		body := mstmt(x.Body, fn, memo)
		if body == x.Body {
			out = n
		} else {
			out = &ir.ProducerConsumer{Name: x.Name, IsProducer: x.IsProducer, Body: body}
		}
	case *ir.Allocate:
		extents := make([]ir.Expr, len(x.Extents))
		same := true
		for i, e := range x.Extents {
			extents[i] = mexpr(e, fn, memo)
			same = same && extents[i] == e
		}
		var cond ir.Expr
		if x.Condition != nil {
			cond = mexpr(x.Condition, fn, memo)
		}
		body := mstmt(x.Body, fn, memo)
		if same && cond == x.Condition && body == x.Body {
			out = n
		} else {
			out = &ir.Allocate{Name: x.Name, ElemType: x.ElemType, Class: x.Class, Extents: extents, Condition: cond, Body: body}
		}
	default:
		out = n
	}
	memo[n] = out
	return out
}

func mexpr(e ir.Expr, fn rewriteFunc, memo map[ir.Node]ir.Node) ir.Expr {
	if e == nil {
		return nil
	}
	out := mutateDAG(e, fn, memo)
	if out == nil {
		return nil
	}
	return out.(ir.Expr)
}

func mstmt(s ir.Stmt, fn rewriteFunc, memo map[ir.Node]ir.Node) ir.Stmt {
	if s == nil {
		return nil
	}
	return mutateDAG(s, fn, memo).(ir.Stmt)
}
