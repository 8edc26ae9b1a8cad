package loopcarry

import (
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// eligibleInt32 reports whether t is (or is a vector of) the 32-bit
// signed integer type the linearity analysis restricts itself to.
func eligibleInt32(t ir.Type) bool {
	switch x := t.(type) {
	case ir.Scalar:
		return x.K == ir.IntKind && x.Bits == 32
	case ir.Vector:
		return x.Elem.K == ir.IntKind && x.Elem.Bits == 32
	default:
		return false
	}
}

// IsLinear classifies e as linear in the loop tracked by scope, returning
// its symbolic per-iteration step, or (nil, false) when it is not.
func IsLinear(e ir.Expr, scope *LinearScope) (ir.Expr, bool) {
	if !eligibleInt32(e.Type()) {
		return nil, false
	}
	switch x := e.(type) {
	case *ir.Variable:
		if step, bound := scope.Lookup(x.Name); bound {
			if step == nil {
				return nil, false
			}
			return step, true
		}
		return symbolic.MakeZero(x.Typ), true
	case *ir.IntImm:
		return symbolic.MakeZero(x.Typ), true
	case *ir.Add:
		la, lok := IsLinear(x.A, scope)
		lb, lok2 := IsLinear(x.B, scope)
		if lok && symbolic.IsConstZero(la) {
			return lb, lok2
		}
		if lok2 && symbolic.IsConstZero(lb) {
			return la, lok
		}
		if lok && lok2 {
			return symbolic.Simplify(&ir.Add{A: la, B: lb}), true
		}
		return nil, false
	case *ir.Sub:
		la, lok := IsLinear(x.A, scope)
		lb, lok2 := IsLinear(x.B, scope)
		if lok2 && symbolic.IsConstZero(lb) {
			return la, lok
		}
		if lok && lok2 {
			return symbolic.Simplify(&ir.Sub{A: la, B: lb}), true
		}
		return nil, false
	case *ir.Mul:
		la, lok := IsLinear(x.A, scope)
		lb, lok2 := IsLinear(x.B, scope)
		if lok && lok2 && symbolic.IsConstZero(la) && symbolic.IsConstZero(lb) {
			return symbolic.MakeZero(x.Type()), true
		}
		if lok && symbolic.IsConstZero(la) && lok2 {
			return symbolic.Simplify(&ir.Mul{A: x.A, B: lb}), true
		}
		if lok2 && symbolic.IsConstZero(lb) && lok {
			return symbolic.Simplify(&ir.Mul{A: la, B: x.B}), true
		}
		return nil, false
	case *ir.Ramp:
		sStep, sOk := IsLinear(x.Stride, scope)
		if sOk && symbolic.IsConstZero(sStep) {
			return IsLinear(x.Base, scope)
		}
		return nil, false
	case *ir.Broadcast:
		return IsLinear(x.Value, scope)
	default:
		return nil, false
	}
}

// StepForwards returns the expression representing e evaluated at the
// next loop iteration, assuming every variable scope tracks has advanced
// by its step. Memoized so shared subgraphs are rebuilt
// once; aborts (returns ok=false) the instant a variable shadowed as
// non-linear is encountered.
func StepForwards(e ir.Expr, scope *LinearScope) (ir.Expr, bool) {
	memo := map[ir.Expr]stepResult{}
	return stepExpr(e, scope, memo)
}

type stepResult struct {
	expr ir.Expr
	ok   bool
}

func stepExpr(e ir.Expr, scope *LinearScope, memo map[ir.Expr]stepResult) (ir.Expr, bool) {
	if e == nil {
		return nil, true
	}
	if r, cached := memo[e]; cached {
		return r.expr, r.ok
	}
	out, ok := stepExprUncached(e, scope, memo)
	memo[e] = stepResult{out, ok}
	return out, ok
}

func stepExprUncached(e ir.Expr, scope *LinearScope, memo map[ir.Expr]stepResult) (ir.Expr, bool) {
	switch x := e.(type) {
	case *ir.Variable:
		step, bound := scope.Lookup(x.Name)
		if !bound {
			return x, true // external constant
		}
		if step == nil {
			return nil, false // bound but shadowed as non-linear: abort
		}
		if symbolic.IsConstZero(step) {
			return x, true
		}
		return &ir.Add{A: x, B: step}, true
	case *ir.IntImm:
		return x, true
	case *ir.Add:
		a, ok := stepExpr(x.A, scope, memo)
		if !ok {
			return nil, false
		}
		b, ok := stepExpr(x.B, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Add{A: a, B: b}, true
	case *ir.Sub:
		a, ok := stepExpr(x.A, scope, memo)
		if !ok {
			return nil, false
		}
		b, ok := stepExpr(x.B, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Sub{A: a, B: b}, true
	case *ir.Mul:
		a, ok := stepExpr(x.A, scope, memo)
		if !ok {
			return nil, false
		}
		b, ok := stepExpr(x.B, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Mul{A: a, B: b}, true
	case *ir.Eq:
		a, ok := stepExpr(x.A, scope, memo)
		if !ok {
			return nil, false
		}
		b, ok := stepExpr(x.B, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Eq{A: a, B: b}, true
	case *ir.Gt:
		a, ok := stepExpr(x.A, scope, memo)
		if !ok {
			return nil, false
		}
		b, ok := stepExpr(x.B, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Gt{A: a, B: b}, true
	case *ir.Ramp:
		base, ok := stepExpr(x.Base, scope, memo)
		if !ok {
			return nil, false
		}
		stride, ok := stepExpr(x.Stride, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Ramp{Base: base, Stride: stride, Lanes: x.Lanes}, true
	case *ir.Broadcast:
		v, ok := stepExpr(x.Value, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Broadcast{Value: v, Lanes: x.Lanes}, true
	case *ir.Load:
		idx, ok := stepExpr(x.Index, scope, memo)
		if !ok {
			return nil, false
		}
		pred, ok := stepExpr(x.Predicate, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Load{Buffer: x.Buffer, Index: idx, Predicate: pred, Class: x.Class, ElemType: x.ElemType, Alignment: x.Alignment}, true
	case *ir.Let:
		val, ok := stepExpr(x.Value, scope, memo)
		if !ok {
			return nil, false
		}
		body, ok := stepExpr(x.Body, scope, memo)
		if !ok {
			return nil, false
		}
		return &ir.Let{Name: x.Name, Value: val, Body: body}, true
	case *ir.Call:
		args := make([]ir.Expr, len(x.Args))
		for i, a := range x.Args {
			stepped, ok := stepExpr(a, scope, memo)
			if !ok {
				return nil, false
			}
			args[i] = stepped
		}
		return &ir.Call{Name: x.Name, Args: args, Typ: x.Typ}, true
	default:
		return x, true
	}
}

// CanonicalizeForward steps e forward one iteration and reduces the
// result to canonical form (CSE, simplify, let-substitution), ready for
// symbolic equality checks and for the solver.
func CanonicalizeForward(e ir.Expr, scope *LinearScope) (ir.Expr, bool) {
	stepped, ok := StepForwards(e, scope)
	if !ok {
		return nil, false
	}
	return symbolic.Canonicalize(stepped), true
}
