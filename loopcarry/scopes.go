package loopcarry

import "github.com/thiremani/loopcarry/ir"

// linearBinding is one entry of the linear scope: either a defined
// symbolic step, or the shadowed/undefined marker (Step == nil).
type linearBinding struct {
	Step ir.Expr // nil means shadowed-as-non-linear
}

// LinearScope is the stack-shaped map from variable name to linear step,
// aligned with lexical let-scopes: push/pop track recursion into and out
// of each binding form.
type LinearScope struct {
	frames []map[string]linearBinding
}

// NewLinearScope creates a scope whose outermost binding is the loop
// variable itself, stepping by 1 per iteration.
func NewLinearScope(loopVar string) *LinearScope {
	s := &LinearScope{frames: []map[string]linearBinding{
		{loopVar: {Step: &ir.IntImm{Value: 1, Typ: ir.Int32}}},
	}}
	return s
}

// Push opens a new lexical frame.
func (s *LinearScope) Push() {
	s.frames = append(s.frames, map[string]linearBinding{})
}

// Pop closes the innermost lexical frame.
func (s *LinearScope) Pop() {
	if len(s.frames) == 1 {
		panic("cannot pop the outermost linear scope")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Bind records name's step (nil for shadowed-as-non-linear) in the
// innermost frame.
func (s *LinearScope) Bind(name string, step ir.Expr) {
	s.frames[len(s.frames)-1][name] = linearBinding{Step: step}
}

// Lookup returns (step, bound). step may be nil even when bound is true,
// meaning name is shadowed as non-linear.
func (s *LinearScope) Lookup(name string) (ir.Expr, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i][name]; ok {
			return b.Step, true
		}
	}
	return nil, false
}

// InConsumeSet tracks, as a lexical stack, which named productions are
// currently inside their matching consumer, in the same push/pop
// discipline as LinearScope.
type InConsumeSet struct {
	frames []string
}

func NewInConsumeSet() *InConsumeSet {
	return &InConsumeSet{}
}

func (s *InConsumeSet) Push(name string) {
	s.frames = append(s.frames, name)
}

func (s *InConsumeSet) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *InConsumeSet) Contains(name string) bool {
	for _, f := range s.frames {
		if f == name {
			return true
		}
	}
	return false
}
