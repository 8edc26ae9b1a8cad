package ir

// Eq is an equality test between two scalar or vector expressions. It is
// not part of the minimal node table the host compiler contributes, but
// the pass needs a boolean carrier to hand equality predicates to
// CanProve, so it is defined here alongside the rest of the IR.
type Eq struct {
	A, B Expr
}

func (n *Eq) exprNode()      {}
func (n *Eq) Type() Type     { return Bool }
func (n *Eq) String() string { return "(" + n.A.String() + " == " + n.B.String() + ")" }

// Gt is a greater-than test between two scalar expressions, used by the
// driver solely to guard a loop's hoisted prologue against an empty
// iteration range.
type Gt struct {
	A, B Expr
}

func (n *Gt) exprNode()      {}
func (n *Gt) Type() Type     { return Bool }
func (n *Gt) String() string { return "(" + n.A.String() + " > " + n.B.String() + ")" }
