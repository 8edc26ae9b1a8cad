package loopcarry

import (
	"sort"

	"github.com/samber/lo"
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// Edge records that group J's load, stepped forward one iteration,
// lands on group I's current address: what J will load next iteration,
// I already loads this iteration, so I's value can be stashed and J's
// reload skipped.
type Edge struct {
	J, I int
}

func predOrTrue(p ir.Expr) ir.Expr {
	if p == nil {
		return symbolic.ConstTrue()
	}
	return p
}

// DetectEdges examines every ordered pair of distinct groups and records
// an edge when the buffer names match and both the stepped-forward index
// and the stepped-forward predicate of one group coincide with the
// other's current index and predicate. Structural equality is tried
// first; the solver is consulted only on structural mismatch, and only
// on CSE-normalized forms, which are computed once per group here.
// Loop invariants (i == j) are deliberately not caught.
func DetectEdges(groups []*LoadGroup, scope *LinearScope) []Edge {
	n := len(groups)
	canonIndex := make([]ir.Expr, n)
	canonPred := make([]ir.Expr, n)
	steppedIndex := make([]ir.Expr, n)
	steppedIndexOK := make([]bool, n)
	steppedPred := make([]ir.Expr, n)
	steppedPredOK := make([]bool, n)

	for g, grp := range groups {
		l := grp.Canonical()
		canonIndex[g] = symbolic.Canonicalize(l.Index)
		canonPred[g] = symbolic.Canonicalize(predOrTrue(l.Predicate))
		steppedIndex[g], steppedIndexOK[g] = CanonicalizeForward(l.Index, scope)
		steppedPred[g], steppedPredOK[g] = CanonicalizeForward(predOrTrue(l.Predicate), scope)
	}

	var edges []Edge
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if groups[i].Canonical().Buffer != groups[j].Canonical().Buffer {
				continue
			}
			if !steppedIndexOK[j] || !exprMatches(steppedIndex[j], canonIndex[i]) {
				continue
			}
			if !steppedPredOK[j] || !exprMatches(steppedPred[j], canonPred[i]) {
				continue
			}
			edges = append(edges, Edge{J: j, I: i})
		}
	}
	return edges
}

// exprMatches accepts either exact structural agreement or a solver
// verdict. The solver is stronger: it does not require the two index
// expressions to have the same shape, only the same value.
func exprMatches(a, b ir.Expr) bool {
	if a.Type().Kind() != b.Type().Kind() || a.Type().Lanes() != b.Type().Lanes() {
		return false
	}
	if symbolic.GraphEqual(a, b) {
		return true
	}
	return symbolic.CanProve(&ir.Eq{A: a, B: b})
}

// AgglomerateChains glues two-element edges into maximal chains: any
// pair [..., x] and [x, ...] concatenates into [..., x, ...], repeated
// to fixed point. Emptied entries are compacted with in-place swap-pop,
// iterating by index only, so the result never depends on pointer
// values. The surviving chains are stably sorted by decreasing length;
// the longest chains get the most reuse per scratch slot.
func AgglomerateChains(edges []Edge) [][]int {
	chains := lo.Map(edges, func(e Edge, _ int) []int { return []int{e.J, e.I} })

	done := false
	for !done {
		done = true
		for i := 0; i < len(chains); i++ {
			if len(chains[i]) == 0 {
				continue
			}
			for j := 0; j < len(chains); j++ {
				if i == j || len(chains[j]) == 0 {
					continue
				}
				if chains[i][len(chains[i])-1] == chains[j][0] {
					chains[i] = append(chains[i], chains[j][1:]...)
					chains[j] = nil
					done = false
				}
			}
		}

		for i := 0; i < len(chains); i++ {
			for i < len(chains) && len(chains[i]) == 0 {
				chains[i] = chains[len(chains)-1]
				chains = chains[:len(chains)-1]
			}
		}
	}

	sort.SliceStable(chains, func(a, b int) bool { return len(chains[a]) > len(chains[b]) })
	return chains
}

// AdmittedChain is a chain that survived budgeting, possibly truncated.
type AdmittedChain struct {
	Groups []int
}

// Budget admits chains greedily in sorted order until maxCarriedValues
// scratch slots are spoken for. The first chain that would overflow is
// truncated to the remaining slots when at least two remain (a carry
// needs a producer and a consumer), and dropped otherwise along with
// everything after it. Purely a heuristic against stack spill
// explosion; correctness does not depend on where the line lands.
func Budget(chains [][]int, maxCarriedValues int32) []AdmittedChain {
	var admitted []AdmittedChain
	sz := 0
	limit := int(maxCarriedValues)
	for _, c := range chains {
		if sz+len(c) > limit {
			if sz < limit-1 {
				admitted = append(admitted, AdmittedChain{Groups: c[:limit-sz]})
			}
			break
		}
		admitted = append(admitted, AdmittedChain{Groups: c})
		sz += len(c)
	}
	return admitted
}

// slotCount is the number of scratch slots a set of admitted chains
// occupies, used to charge a loop's running budget.
func slotCount(admitted []AdmittedChain) int32 {
	return int32(lo.SumBy(admitted, func(c AdmittedChain) int { return len(c.Groups) }))
}
