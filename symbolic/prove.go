package symbolic

import "github.com/thiremani/loopcarry/ir"

// Canonicalize reduces an expression to the form the equality checks
// want: CSE to share repeated subterms, Simplify to fold constants and
// identities (including inside the CSE-introduced lets), then
// SubstituteInAllLets to flatten back into a pure, let-free DAG.
func Canonicalize(e ir.Expr) ir.Expr {
	cse := CSE(e)
	simplified := simplifyAny(cse)
	return SubstituteInAllLets(simplified).(ir.Expr)
}

func simplifyAny(n ir.Node) ir.Node {
	switch x := n.(type) {
	case ir.Expr:
		if let, ok := x.(*ir.Let); ok {
			return &ir.Let{Name: let.Name, Value: Simplify(let.Value), Body: simplifyAny(let.Body).(ir.Expr)}
		}
		return Simplify(x)
	case *ir.LetStmt:
		return &ir.LetStmt{Name: x.Name, Value: Simplify(x.Value), Body: simplifyAny(x.Body).(ir.Stmt)}
	default:
		return n
	}
}

// CanProve is a best-effort, conservative prover for integer equality
// predicates: it may return false for a true proposition but never true
// for a false one. Both sides are canonicalized, then compared
// structurally, then as linear combinations of opaque atoms.
func CanProve(pred ir.Expr) bool {
	eq, ok := pred.(*ir.Eq)
	if !ok {
		if im, ok := pred.(*ir.IntImm); ok {
			return im.Value != 0
		}
		return false
	}
	a := Canonicalize(eq.A)
	b := Canonicalize(eq.B)
	if GraphEqual(a, b) {
		return true
	}
	return provablyZero(&ir.Sub{A: a, B: b})
}

// provablyZero flattens e into constant + sum of coeff*atom, where an
// atom is any subexpression outside the Add/Sub/Mul-by-constant grammar,
// keyed by its printed form. Identical atoms denote identical values (the
// grammar is pure), so the difference is zero iff every coefficient and
// the constant are.
func provablyZero(e ir.Expr) bool {
	terms := map[string]int64{}
	var c int64
	accumulateTerms(e, 1, terms, &c)
	if c != 0 {
		return false
	}
	for _, coeff := range terms {
		if coeff != 0 {
			return false
		}
	}
	return true
}

func accumulateTerms(e ir.Expr, coeff int64, terms map[string]int64, c *int64) {
	switch x := e.(type) {
	case *ir.IntImm:
		*c += coeff * x.Value
	case *ir.Variable:
		terms[x.Name] += coeff
	case *ir.Add:
		accumulateTerms(x.A, coeff, terms, c)
		accumulateTerms(x.B, coeff, terms, c)
	case *ir.Sub:
		accumulateTerms(x.A, coeff, terms, c)
		accumulateTerms(x.B, -coeff, terms, c)
	case *ir.Mul:
		if v, ok := asImm(x.A); ok {
			accumulateTerms(x.B, coeff*v, terms, c)
			return
		}
		if v, ok := asImm(x.B); ok {
			accumulateTerms(x.A, coeff*v, terms, c)
			return
		}
		terms[x.String()] += coeff
	default:
		terms[e.String()] += coeff
	}
}
