package symbolic

import "github.com/thiremani/loopcarry/ir"

type letBinding struct {
	name string
	val  ir.Expr
}

// CSE introduces Let/LetStmt bindings for subexpressions that occur more
// than once (by structural shape) anywhere within n, so the duplicated
// work is computed once. Only load-free subexpressions are ever bound:
// everything else in the grammar is pure and invariant across the
// statements of a block, so hoisting it to an enclosing binding cannot
// change what any statement observes, while a Load hoisted past a Store
// to the same buffer could.
func CSE(n ir.Node) ir.Node {
	occ := map[string][]ir.Expr{}
	order := []string{}
	seen := map[ir.Node]bool{}
	hasLoad := map[ir.Node]bool{}
	markLoads(n, hasLoad)
	collect(n, seen, func(e ir.Expr) {
		switch e.(type) {
		case *ir.Variable, *ir.IntImm:
			return
		}
		if hasLoad[e] {
			return
		}
		key := e.String()
		if _, ok := occ[key]; !ok {
			order = append(order, key)
		}
		occ[key] = append(occ[key], e)
	})

	cumulative := map[ir.Expr]ir.Expr{}
	var lets []letBinding
	for _, key := range order {
		group := occ[key]
		if len(group) < 2 {
			continue
		}
		val0 := group[0]
		canon := GraphSubstituteAll(cumulative, val0).(ir.Expr)
		fresh := &ir.Variable{Name: UniqueName("cse"), Typ: val0.Type()}
		for _, p := range group {
			cumulative[p] = fresh
		}
		lets = append(lets, letBinding{name: fresh.Name, val: canon})
	}

	if len(lets) == 0 {
		return n
	}

	rewritten := GraphSubstituteAll(cumulative, n)

	switch rewritten.(type) {
	case ir.Stmt:
		result := rewritten.(ir.Stmt)
		for i := len(lets) - 1; i >= 0; i-- {
			result = &ir.LetStmt{Name: lets[i].name, Value: lets[i].val, Body: result}
		}
		return result
	default:
		result := rewritten.(ir.Expr)
		for i := len(lets) - 1; i >= 0; i-- {
			result = &ir.Let{Name: lets[i].name, Value: lets[i].val, Body: result}
		}
		return result
	}
}

// markLoads records, for every node reachable from n, whether its subtree
// contains a Load.
func markLoads(n ir.Node, memo map[ir.Node]bool) bool {
	if n == nil {
		return false
	}
	if v, ok := memo[n]; ok {
		return v
	}
	// Pre-mark to terminate on shared revisits before the answer is known.
	memo[n] = false
	found := false
	if _, isLoad := n.(*ir.Load); isLoad {
		found = true
	}
	children(n, func(c ir.Node) {
		if markLoads(c, memo) {
			found = true
		}
	})
	memo[n] = found
	return found
}

// collect walks n, invoking visit on every distinct Expr node identity
// exactly once, in deterministic discovery (pre-order) sequence.
func collect(n ir.Node, seen map[ir.Node]bool, visit func(ir.Expr)) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	if e, ok := n.(ir.Expr); ok {
		visit(e)
	}
	children(n, func(c ir.Node) { collect(c, seen, visit) })
}

// children invokes fn on each direct child of n, in field order.
func children(n ir.Node, fn func(ir.Node)) {
	ve := func(e ir.Expr) {
		if e != nil {
			fn(e)
		}
	}
	vs := func(s ir.Stmt) {
		if s != nil {
			fn(s)
		}
	}
	switch x := n.(type) {
	case *ir.Variable, *ir.IntImm:
	case *ir.Add:
		ve(x.A)
		ve(x.B)
	case *ir.Sub:
		ve(x.A)
		ve(x.B)
	case *ir.Mul:
		ve(x.A)
		ve(x.B)
	case *ir.Eq:
		ve(x.A)
		ve(x.B)
	case *ir.Gt:
		ve(x.A)
		ve(x.B)
	case *ir.Ramp:
		ve(x.Base)
		ve(x.Stride)
	case *ir.Broadcast:
		ve(x.Value)
	case *ir.Load:
		ve(x.Index)
		ve(x.Predicate)
	case *ir.Let:
		ve(x.Value)
		ve(x.Body)
	case *ir.Call:
		for _, a := range x.Args {
			ve(a)
		}
	case *ir.LetStmt:
		ve(x.Value)
		vs(x.Body)
	case *ir.Store:
		ve(x.Index)
		ve(x.Value)
		ve(x.Predicate)
	case *ir.Block:
		for _, s := range x.Stmts {
			vs(s)
		}
	case *ir.For:
		ve(x.Min)
		ve(x.Extent)
		vs(x.Body)
	case *ir.IfThenElse:
		ve(x.Cond)
		vs(x.Then)
		vs(x.Else)
	case *ir.ProducerConsumer:
		vs(x.Body)
	case *ir.Allocate:
		for _, e := range x.Extents {
			ve(e)
		}
		ve(x.Condition)
		vs(x.Body)
	}
}
