package micro

// View walks a Builder's instruction stream in emission order while
// tolerating a bounded set of in-place mutations (§4.3). A pass may erase
// the current instruction, the immediately following instruction, or
// previously visited instructions; it must not erase instructions beyond
// the first Next() without re-acquiring an Iterator. That rule is what
// lets the peephole pass (internal/peephole) rewrite locally without a
// full SSA rebuild.
type View struct {
	b     *Builder
	order []Ref // snapshot of emission order at View creation time
}

// NewView snapshots the current emission order of b. Instructions appended
// to b after the snapshot (legalization sequences, peephole rewrites that
// insert new forms) are not visited by this View; callers that need to see
// them re-acquire a View.
func NewView(b *Builder) *View {
	order := make([]Ref, 0, len(b.order))
	for _, r := range b.order {
		order = append(order, r)
	}
	return &View{b: b, order: order}
}

// Iterator is a cursor into a View. Current is the instruction ref the
// cursor points at; it is only valid until the next mutation that erases
// it.
type Iterator struct {
	v   *View
	pos int
}

// Begin returns an iterator at the first non-erased instruction.
func (v *View) Begin() Iterator {
	it := Iterator{v: v, pos: -1}
	it.advance()
	return it
}

// End reports the one-past-the-last sentinel position.
func (v *View) End() Iterator { return Iterator{v: v, pos: len(v.order)} }

func (it *Iterator) advance() {
	for it.pos++; it.pos < len(it.v.order); it.pos++ {
		if !it.v.b.Instrs.Ptr(it.v.order[it.pos]).erased {
			return
		}
	}
}

// Valid reports whether the iterator refers to a live instruction.
func (it Iterator) Valid() bool { return it.pos < len(it.v.order) }

// Current is the arena reference the iterator currently points at.
func (it Iterator) Current() Ref { return it.v.order[it.pos] }

// Instr dereferences Current.
func (it Iterator) Instr() *MicroInstr { return it.v.b.Instrs.Ptr(it.Current()) }

// Ops returns the operand slots of the current instruction.
func (it Iterator) Ops() []MicroInstrOperand { return it.v.b.Ops(it.Current()) }

// Next returns an iterator to the next live instruction after it.
func (it Iterator) Next() Iterator {
	n := Iterator{v: it.v, pos: it.pos}
	n.advance()
	return n
}

// Peek returns the next live instruction's ref without moving it, or
// (RefInvalid, false) at the end of the view.
func (it Iterator) Peek() (Ref, bool) {
	n := it.Next()
	if !n.Valid() {
		return RefInvalid, false
	}
	return n.Current(), true
}

// EraseCurrent lazily removes the instruction it points at.
func (it Iterator) EraseCurrent() { it.v.b.Erase(it.Current()) }

// EraseForward erases the instruction immediately following it — the one
// other position §4.3 permits erasing without re-acquiring an iterator.
func (it Iterator) EraseForward() {
	if n, ok := it.Peek(); ok {
		it.v.b.Erase(n)
	}
}

// EraseRef erases a previously visited instruction by reference; always
// permitted per §4.3.
func (v *View) EraseRef(ref Ref) { v.b.Erase(ref) }

// From returns an iterator positioned at ref, for helper analyses that
// need to resume a forward scan from an arbitrary previously-visited
// instruction.
func (v *View) From(ref Ref) Iterator {
	for i, r := range v.order {
		if r == ref {
			return Iterator{v: v, pos: i}
		}
	}
	return v.End()
}

// PatchOperand overwrites operand slot idx of the instruction at ref
// in-place.
func (v *View) PatchOperand(ref Ref, idx int, slot MicroInstrOperand) {
	ops := v.b.Ops(ref)
	ops[idx] = slot
}
