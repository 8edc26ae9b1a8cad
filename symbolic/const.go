package symbolic

import "github.com/thiremani/loopcarry/ir"

// IsConstZero reports whether e is the integer literal zero.
func IsConstZero(e ir.Expr) bool {
	im, ok := e.(*ir.IntImm)
	return ok && im.Value == 0
}

// IsConstOne reports whether e is the integer literal one.
func IsConstOne(e ir.Expr) bool {
	im, ok := e.(*ir.IntImm)
	return ok && im.Value == 1
}

// MakeZero returns a canonical zero literal of t.
func MakeZero(t ir.Type) ir.Expr {
	return &ir.IntImm{Value: 0, Typ: t}
}

// ConstTrue returns the canonical trivially-true predicate.
func ConstTrue() ir.Expr { return ir.ConstTrue() }
