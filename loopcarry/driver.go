package loopcarry

import (
	"github.com/thiremani/loopcarry/ir"
	"github.com/thiremani/loopcarry/symbolic"
)

// LoopCarry rewrites stmt so that loads performed on one loop iteration
// whose values are provably reloaded by a later program point on the
// next iteration are carried through small stack scratch buffers
// instead. The transformation is conservative: any site it cannot prove
// safe and profitable passes through unchanged, and the result always
// has the same observable store side effects as the input.
func LoopCarry(stmt ir.Stmt, cfg Config) ir.Stmt {
	d := &driver{cfg: cfg, inConsume: NewInConsumeSet()}
	return d.mutate(stmt)
}

// driver descends the whole IR tree, tracking which productions are in
// their consume region and invoking the per-loop rewriter on every
// eligible serial loop, innermost first.
type driver struct {
	cfg       Config
	inConsume *InConsumeSet
}

func (d *driver) mutate(s ir.Stmt) ir.Stmt {
	switch x := s.(type) {
	case *ir.ProducerConsumer:
		if !x.IsProducer {
			// The production is finished: its storage is read-only for
			// this whole subtree, so loads from it are safe to lift.
			d.inConsume.Push(x.Name)
			body := d.mutate(x.Body)
			d.inConsume.Pop()
			if body == x.Body {
				return x
			}
			return &ir.ProducerConsumer{Name: x.Name, IsProducer: x.IsProducer, Body: body}
		}
		body := d.mutate(x.Body)
		if body == x.Body {
			return x
		}
		return &ir.ProducerConsumer{Name: x.Name, IsProducer: x.IsProducer, Body: body}
	case *ir.For:
		return d.mutateFor(x)
	case *ir.Block:
		stmts := make([]ir.Stmt, len(x.Stmts))
		same := true
		for i, st := range x.Stmts {
			stmts[i] = d.mutate(st)
			same = same && stmts[i] == st
		}
		if same {
			return x
		}
		return &ir.Block{Stmts: stmts}
	case *ir.LetStmt:
		body := d.mutate(x.Body)
		if body == x.Body {
			return x
		}
		return &ir.LetStmt{Name: x.Name, Value: x.Value, Body: body}
	case *ir.IfThenElse:
		then := d.mutate(x.Then)
		var els ir.Stmt
		if x.Else != nil {
			els = d.mutate(x.Else)
		}
		if then == x.Then && els == x.Else {
			return x
		}
		return &ir.IfThenElse{Cond: x.Cond, Then: then, Else: els}
	case *ir.Allocate:
		body := d.mutate(x.Body)
		if body == x.Body {
			return x
		}
		return &ir.Allocate{Name: x.Name, ElemType: x.ElemType, Class: x.Class, Extents: x.Extents, Condition: x.Condition, Body: body}
	default:
		return s
	}
}

func (d *driver) mutateFor(loop *ir.For) ir.Stmt {
	// Inner loops first, so outer loops see already-carried bodies.
	body := d.mutate(loop.Body)

	if loop.ForType != ir.Serial || symbolic.IsConstOne(symbolic.Simplify(loop.Extent)) {
		if body == loop.Body {
			return loop
		}
		return &ir.For{Name: loop.Name, Min: loop.Min, Extent: loop.Extent, ForType: loop.ForType, Body: body}
	}

	carry := newLoopRewriter(loop.Name, d.inConsume, d.cfg.MaxCarriedValues)
	carried := carry.mutate(body)

	var stmt ir.Stmt
	if carried == loop.Body {
		stmt = loop
	} else {
		stmt = &ir.For{Name: loop.Name, Min: loop.Min, Extent: loop.Extent, ForType: loop.ForType, Body: carried}
	}

	// Inject the scratch buffer allocations, each with its prologue
	// spliced just inside the allocation with the loop variable pinned
	// to its min: the prologue runs conceptually at iteration zero.
	for _, scratch := range carry.scratches {
		prologue := symbolic.Substitute(loop.Name, loop.Min, scratch.Prologue).(ir.Stmt)
		stmt = &ir.Block{Stmts: []ir.Stmt{prologue, stmt}}
		stmt = &ir.Allocate{
			Name:      scratch.Name,
			ElemType:  scratch.ElemType,
			Class:     ir.Stack,
			Extents:   []ir.Expr{&ir.IntImm{Value: int64(scratch.Size), Typ: ir.Int32}},
			Condition: symbolic.ConstTrue(),
			Body:      stmt,
		}
	}
	if len(carry.scratches) > 0 {
		// Guard the prologue against an empty loop.
		zero := &ir.IntImm{Value: 0, Typ: ir.Int32}
		stmt = &ir.IfThenElse{Cond: &ir.Gt{A: loop.Extent, B: zero}, Then: stmt}
	}
	return stmt
}
