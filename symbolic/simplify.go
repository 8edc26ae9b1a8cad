package symbolic

import "github.com/thiremani/loopcarry/ir"

// Simplify applies a small set of algebraic identities bottom-up:
// constant folding, additive/multiplicative identities, and
// reassociation of constant terms so i+1+1 and i+2 meet in one shape.
// Constants migrate to the right operand. Idempotent.
func Simplify(e ir.Expr) ir.Expr {
	memo := make(map[ir.Node]ir.Node)
	var rw rewriteFunc
	rw = func(node ir.Node) (ir.Node, bool) {
		switch x := node.(type) {
		case *ir.Add:
			a := mexpr(x.A, rw, memo)
			b := mexpr(x.B, rw, memo)
			return simplifyAdd(a, b), true
		case *ir.Sub:
			a := mexpr(x.A, rw, memo)
			b := mexpr(x.B, rw, memo)
			return simplifySub(a, b), true
		case *ir.Mul:
			a := mexpr(x.A, rw, memo)
			b := mexpr(x.B, rw, memo)
			return simplifyMul(a, b), true
		}
		return nil, false
	}
	return mexpr(e, rw, memo)
}

func asImm(e ir.Expr) (int64, bool) {
	im, ok := e.(*ir.IntImm)
	if !ok {
		return 0, false
	}
	return im.Value, true
}

func simplifyAdd(a, b ir.Expr) ir.Expr {
	if av, ok := asImm(a); ok {
		if bv, ok := asImm(b); ok {
			return &ir.IntImm{Value: av + bv, Typ: a.Type()}
		}
		// Constant on the right.
		return simplifyAdd(b, a)
	}
	if bv, ok := asImm(b); ok {
		if bv == 0 {
			return a
		}
		// (x + c1) + c2 and (x - c1) + c2 refold into one constant term.
		if inner, ok := a.(*ir.Add); ok {
			if cv, ok := asImm(inner.B); ok {
				return simplifyAdd(inner.A, &ir.IntImm{Value: cv + bv, Typ: b.Type()})
			}
		}
		if inner, ok := a.(*ir.Sub); ok {
			if cv, ok := asImm(inner.B); ok {
				return simplifyAdd(inner.A, &ir.IntImm{Value: bv - cv, Typ: b.Type()})
			}
		}
	}
	return &ir.Add{A: a, B: b}
}

func simplifySub(a, b ir.Expr) ir.Expr {
	if av, ok := asImm(a); ok {
		if bv, ok := asImm(b); ok {
			return &ir.IntImm{Value: av - bv, Typ: a.Type()}
		}
	}
	if bv, ok := asImm(b); ok {
		// x - c is x + (-c), which reuses the Add refolding above.
		return simplifyAdd(a, &ir.IntImm{Value: -bv, Typ: b.Type()})
	}
	return &ir.Sub{A: a, B: b}
}

func simplifyMul(a, b ir.Expr) ir.Expr {
	if av, ok := asImm(a); ok {
		if bv, ok := asImm(b); ok {
			return &ir.IntImm{Value: av * bv, Typ: a.Type()}
		}
		return simplifyMul(b, a)
	}
	if bv, ok := asImm(b); ok {
		switch bv {
		case 0:
			return &ir.IntImm{Value: 0, Typ: b.Type()}
		case 1:
			return a
		}
		// (x * c1) * c2 refolds into one constant factor.
		if inner, ok := a.(*ir.Mul); ok {
			if cv, ok := asImm(inner.B); ok {
				return simplifyMul(inner.A, &ir.IntImm{Value: cv * bv, Typ: b.Type()})
			}
		}
	}
	return &ir.Mul{A: a, B: b}
}
