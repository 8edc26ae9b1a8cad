package symbolic

import "github.com/thiremani/loopcarry/ir"

// Substitute replaces every free Variable named name with replacement,
// anywhere in n (expression or statement), stopping at a Let/LetStmt that
// rebinds name (the rebinding shadows, matching normal lexical scoping).
func Substitute(name string, replacement ir.Expr, n ir.Node) ir.Node {
	memo := make(map[ir.Node]ir.Node)
	var rw rewriteFunc
	rw = func(node ir.Node) (ir.Node, bool) {
		switch x := node.(type) {
		case *ir.Variable:
			if x.Name == name {
				return replacement, true
			}
			return node, true
		case *ir.Let:
			if x.Name == name {
				// name is rebound for Body; only rewrite Value.
				return &ir.Let{Name: x.Name, Value: mexpr(x.Value, rw, memo), Body: x.Body}, true
			}
		case *ir.LetStmt:
			if x.Name == name {
				return &ir.LetStmt{Name: x.Name, Value: mexpr(x.Value, rw, memo), Body: x.Body}, true
			}
		case *ir.For:
			if x.Name == name {
				return &ir.For{Name: x.Name, ForType: x.ForType, Min: mexpr(x.Min, rw, memo), Extent: mexpr(x.Extent, rw, memo), Body: x.Body}, true
			}
		}
		return nil, false
	}
	return mutateDAG(n, rw, memo)
}

// SubstituteInAllLets inlines every Let/LetStmt in n, producing a pure,
// let-free DAG. Memoized so shared let-bound subterms are inlined once.
func SubstituteInAllLets(n ir.Node) ir.Node {
	memo := make(map[ir.Node]ir.Node)
	var rw rewriteFunc
	rw = func(node ir.Node) (ir.Node, bool) {
		switch x := node.(type) {
		case *ir.Let:
			body := mutateDAG(x.Body, rw, memo)
			value := mexpr(x.Value, rw, memo)
			inlined := Substitute(x.Name, value, body)
			// Re-run the rewriter over the freshly substituted tree so
			// nested lets introduced by the substitution are also
			// inlined.
			return mutateDAG(inlined, rw, memo), true
		case *ir.LetStmt:
			body := mutateDAG(x.Body, rw, memo)
			value := mexpr(x.Value, rw, memo)
			inlined := Substitute(x.Name, value, body)
			return mutateDAG(inlined, rw, memo), true
		}
		return nil, false
	}
	return mutateDAG(n, rw, memo)
}

// GraphSubstitute replaces every occurrence of needle (by identity) with
// replacement inside haystack, preserving DAG sharing elsewhere.
func GraphSubstitute(needle, replacement ir.Expr, haystack ir.Node) ir.Node {
	memo := make(map[ir.Node]ir.Node)
	var needleNode ir.Node = needle
	var rw rewriteFunc = func(node ir.Node) (ir.Node, bool) {
		if node == needleNode {
			return replacement, true
		}
		return nil, false
	}
	return mutateDAG(haystack, rw, memo)
}

// GraphSubstituteAll applies several identity-keyed replacements in one
// pass, used by the code synthesis step to redirect every load in a
// group to its scratch slot in a single memoized traversal.
func GraphSubstituteAll(replacements map[ir.Expr]ir.Expr, haystack ir.Node) ir.Node {
	memo := make(map[ir.Node]ir.Node)
	var rw rewriteFunc = func(node ir.Node) (ir.Node, bool) {
		if e, ok := node.(ir.Expr); ok {
			if repl, found := replacements[e]; found {
				return repl, true
			}
		}
		return nil, false
	}
	return mutateDAG(haystack, rw, memo)
}
