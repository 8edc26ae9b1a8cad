package symbolic

import "github.com/thiremani/loopcarry/ir"

// StmtUsesVar reports whether a Variable named name occurs anywhere in
// n. Binding forms are not tracked: an occurrence bound by a Let,
// LetStmt or For inside n counts as a use as well, so the answer can be
// true when name is not free in n. Callers use it to decide whether an
// enclosing binding must be kept.
func StmtUsesVar(n ir.Node, name string) bool {
	found := false
	seen := map[ir.Node]bool{}
	collect(n, seen, func(e ir.Expr) {
		if v, ok := e.(*ir.Variable); ok && v.Name == name {
			found = true
		}
	})
	return found
}
