package micro

import "github.com/pkg/errors"

// RelocationKind distinguishes RIP-relative 32-bit relocations (most
// call/lea sites) from absolute 64-bit ones (mov imm64), per §3.
type RelocationKind uint8

const (
	RelocAMD64REL32 RelocationKind = iota
	RelocAMD64ADDR64
)

func (k RelocationKind) String() string {
	if k == RelocAMD64ADDR64 {
		return "AMD64_ADDR64"
	}
	return "AMD64_REL32"
}

// Relocation is {site offset in code bytes, symbol index, kind} (§3). Site
// offsets are relative to the text-section start, not the current
// function, and are finalized by the façade once function layout is known.
type Relocation struct {
	SiteOffset uint32
	SymbolIdx  uint32
	Kind       RelocationKind
}

// pendingJump tracks a JumpCond/JumpReg instruction awaiting its target
// label's placement.
type pendingJump struct {
	instrRef Ref
}

// labelState is the per-label bookkeeping the builder maintains: the
// instruction reference at which the label was placed (or invalid while
// forward-referenced) and every jump awaiting patching.
type labelState struct {
	placedAt     Ref
	placed       bool
	pendingJumps []pendingJump
}

// Config controls builder-level behavior that is otherwise implicit in the
// source: whether per-instruction debug info is tracked at all.
type Config struct {
	DebugInfo bool
}

// Builder converts per-node lowering requests into MicroInstr records and
// matching operand slots (§4.2). It owns the instruction and operand
// arenas for exactly one function; builders are never shared across
// functions or goroutines (§5: single-threaded per function).
type Builder struct {
	cfg Config

	Instrs  *Arena[MicroInstr]
	Operand *Arena[MicroInstrOperand]

	labels []labelState

	debugInfos map[Ref]DebugInfo
	curDebug   DebugInfo
	haveDebug  bool

	relocations []Relocation

	// order is the emission order, a slice of Refs kept independent of
	// arena allocation order; arena Refs remain the stable identity
	// passes key off of.
	order []Ref
}

// NewBuilder returns an empty per-function builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg:        cfg,
		Instrs:     NewArena[MicroInstr](),
		Operand:    NewArena[MicroInstrOperand](),
		debugInfos: map[Ref]DebugInfo{},
	}
}

// SetDebugInfo arms the {source view, token, line} triple attached to
// every instruction emitted until the next call (§4.2, SPEC_FULL debug
// provenance supplement).
func (b *Builder) SetDebugInfo(d DebugInfo) {
	b.curDebug = d
	b.haveDebug = true
}

// ClearDebugInfo stops attaching provenance to newly emitted instructions.
func (b *Builder) ClearDebugInfo() { b.haveDebug = false }

// DebugInfo looks up the provenance of an instruction, or (zero, false) if
// none was recorded (builder not configured for it, or none set at the
// time of emission).
func (b *Builder) DebugInfo(ref Ref) (DebugInfo, bool) {
	d, ok := b.debugInfos[ref]
	return d, ok
}

func (b *Builder) storeDebugInfo(ref Ref) {
	if !b.cfg.DebugInfo || !b.haveDebug {
		return
	}
	b.debugInfos[ref] = b.curDebug
}

// Order returns the instructions in emission order, skipping erased ones.
func (b *Builder) Order() []Ref {
	out := make([]Ref, 0, len(b.order))
	for _, r := range b.order {
		if !b.Instrs.Ptr(r).erased {
			out = append(out, r)
		}
	}
	return out
}

// addInstruction is the shared entry point every typed emit_* helper
// funnels through: allocate the instruction, allocate its operand span,
// record debug info, append to emission order.
func (b *Builder) addInstruction(op Opcode, flags EmitFlags, ops []MicroInstrOperand) Ref {
	ref, inst := b.Instrs.EmplaceUninit()
	inst.Opcode = op
	inst.Flags = flags
	inst.NumOps = uint8(len(ops))
	if len(ops) > 0 {
		opsRef, slots := b.Operand.EmplaceUninitArray(len(ops))
		copy(slots, ops)
		inst.OpsRef = opsRef
	} else {
		inst.OpsRef = RefInvalid
	}
	b.storeDebugInfo(ref)
	b.order = append(b.order, ref)
	return ref
}

// Ops returns the operand slots of an instruction, contiguous in the
// operand arena (§3 invariant).
func (b *Builder) Ops(ref Ref) []MicroInstrOperand {
	inst := b.Instrs.Ptr(ref)
	if inst.NumOps == 0 {
		return nil
	}
	page, offset := inst.OpsRef.decode()
	return b.Operand.pages[page][offset : offset+uint32(inst.NumOps)]
}

// Instr resolves an instruction reference.
func (b *Builder) Instr(ref Ref) *MicroInstr { return b.Instrs.Ptr(ref) }

// ---- Labels -----------------------------------------------------------

// CreateLabel returns a fresh label id in the unplaced state.
func (b *Builder) CreateLabel() Label {
	id := Label(len(b.labels))
	b.labels = append(b.labels, labelState{placedAt: RefInvalid})
	return id
}

// PlaceLabel emits a Label opcode instance and binds id to it. It is a bug
// to place a label twice (§4.2).
func (b *Builder) PlaceLabel(id Label) Ref {
	st := b.labelAt(id)
	if st.placed {
		panic(errors.Errorf("micro: label %d placed twice", id))
	}
	ref := b.addInstruction(OpcodeLabel, EmitNone, []MicroInstrOperand{
		{Kind: SlotLabel, Label: id},
	})
	st.placed = true
	st.placedAt = ref
	return ref
}

// JumpToLabel emits a JumpCond referring to id (or OpcodeJumpReg family for
// unconditional/register jumps handled elsewhere) and registers the jump
// as pending until the label is placed.
func (b *Builder) JumpToLabel(cond MicroCond, w MicroOpBits, id Label) Ref {
	if int(id) >= len(b.labels) {
		panic(errors.Errorf("micro: jump to unknown label %d", id))
	}
	ref := b.addInstruction(OpcodeJumpCond, EmitNone, []MicroInstrOperand{
		{Kind: SlotCond, Cond: cond},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotLabel, Label: id},
	})
	st := b.labelAt(id)
	st.pendingJumps = append(st.pendingJumps, pendingJump{instrRef: ref})
	return ref
}

func (b *Builder) labelAt(id Label) *labelState {
	if int(id) >= len(b.labels) {
		panic(errors.Errorf("micro: unknown label %d", id))
	}
	return &b.labels[id]
}

// IsLabelPlaced reports whether id has been bound by PlaceLabel.
func (b *Builder) IsLabelPlaced(id Label) bool { return b.labelAt(id).placed }

// PendingJumps returns every jump site still awaiting id's placement.
func (b *Builder) PendingJumps(id Label) []Ref {
	st := b.labelAt(id)
	out := make([]Ref, len(st.pendingJumps))
	for i, p := range st.pendingJumps {
		out[i] = p.instrRef
	}
	return out
}

// LabelInstr returns the instruction ref at which id was placed.
func (b *Builder) LabelInstr(id Label) (Ref, bool) {
	st := b.labelAt(id)
	return st.placedAt, st.placed
}

// CheckAllLabelsPlaced is an internal-invariant check (§3, §7.2): every
// label id must be placed at most once and at least once before encoding
// starts.
func (b *Builder) CheckAllLabelsPlaced() error {
	for i, st := range b.labels {
		if !st.placed {
			return errors.Errorf("micro: label %d reachable but never placed", i)
		}
	}
	return nil
}

// ---- Relocations --------------------------------------------------------

// AddRelocation records a code relocation site. Offsets are finalized by
// the façade relative to the text-section start (§3).
func (b *Builder) AddRelocation(r Relocation) {
	b.relocations = append(b.relocations, r)
}

// Relocations returns every relocation recorded so far.
func (b *Builder) Relocations() []Relocation { return b.relocations }

// ---- Typed opcode entry points (§4.2 catalogue) ------------------------

func (b *Builder) Nop() Ref { return b.addInstruction(OpcodeNop, EmitNone, nil) }
func (b *Builder) Ret() Ref { return b.addInstruction(OpcodeRet, EmitNone, nil) }
func (b *Builder) End() Ref { return b.addInstruction(OpcodeEnd, EmitNone, nil) }

func (b *Builder) Push(r MicroReg) Ref {
	return b.addInstruction(OpcodePush, EmitNone, []MicroInstrOperand{{Kind: SlotReg, Reg: r}})
}

func (b *Builder) Pop(r MicroReg) Ref {
	return b.addInstruction(OpcodePop, EmitNone, []MicroInstrOperand{{Kind: SlotReg, Reg: r}})
}

func (b *Builder) JumpReg(r MicroReg) Ref {
	return b.addInstruction(OpcodeJumpReg, EmitNone, []MicroInstrOperand{{Kind: SlotReg, Reg: r}})
}

// JumpTable emits the indirect dispatch sequence a dense switch lowers to
// (§4.6): index holds the (already range-checked) selector, scratch and
// disp32 are clobbered temporaries, and tableSym names the rodata symbol
// holding the table's 32-bit entries, each a target's offset from the
// table's own start. targets records the
// case labels in table order purely for FormatInstructions/diagnostics;
// the encoder never reads it, and the backend façade rebuilds the same
// ordering independently from lower.JumpTableRequest.
func (b *Builder) JumpTable(index, scratch, disp32 MicroReg, tableSym uint32, targets []Label) Ref {
	ref := b.addInstruction(OpcodeJumpTable, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: index},
		{Kind: SlotReg, Reg: scratch},
		{Kind: SlotReg, Reg: disp32},
		{Kind: SlotSymbolIndex, SymIndex: tableSym},
	})
	if len(targets) > 0 {
		raw := make([]uint32, len(targets))
		for i, l := range targets {
			raw[i] = uint32(l)
		}
		b.Instrs.Ptr(ref).Targets = raw
	}
	return ref
}

func (b *Builder) CallLocal(name uint32, cc CallConv, symbolHandle uint32) Ref {
	return b.addInstruction(OpcodeCallLocal, EmitNone, []MicroInstrOperand{
		{Kind: SlotIdentifier, IdentRef: name},
		{Kind: SlotCallConv, CallConv: cc},
		{Kind: SlotNone},
		{Kind: SlotSymbolIndex, SymIndex: symbolHandle},
	})
}

func (b *Builder) CallExtern(name uint32, cc CallConv, symbolHandle uint32) Ref {
	return b.addInstruction(OpcodeCallExtern, EmitNone, []MicroInstrOperand{
		{Kind: SlotIdentifier, IdentRef: name},
		{Kind: SlotCallConv, CallConv: cc},
		{Kind: SlotSymbolIndex, SymIndex: symbolHandle},
	})
}

func (b *Builder) CallIndirect(r MicroReg, cc CallConv) Ref {
	return b.addInstruction(OpcodeCallIndirect, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r},
		{Kind: SlotCallConv, CallConv: cc},
	})
}

func (b *Builder) LoadRegImm(r MicroReg, w MicroOpBits, imm uint64) Ref {
	return b.addInstruction(OpcodeLoadRegImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) LoadRegReg(dst, src MicroReg, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeLoadRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: src},
		{Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) LoadRegMem(r, base MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeLoadRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r},
		{Kind: SlotReg, Reg: base},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) LoadMemReg(base, r MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeLoadMemReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base},
		{Kind: SlotReg, Reg: r},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) LoadMemImm(base MicroReg, w MicroOpBits, offset int32, imm uint64) Ref {
	return b.addInstruction(OpcodeLoadMemImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: offset},
		{Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) LoadSignedExtRegReg(dst, src MicroReg, wDst, wSrc MicroOpBits) Ref {
	return b.addInstruction(OpcodeLoadSignedExtRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: src},
		{Kind: SlotWidth, Width: wDst},
		{Kind: SlotWidth, Width: wSrc},
	})
}

func (b *Builder) LoadSignedExtRegMem(dst, base MicroReg, wDst, wSrc MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeLoadSignedExtRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: base},
		{Kind: SlotWidth, Width: wDst},
		{Kind: SlotWidth, Width: wSrc},
		{Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) LoadZeroExtRegReg(dst, src MicroReg, wDst, wSrc MicroOpBits) Ref {
	return b.addInstruction(OpcodeLoadZeroExtRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: src},
		{Kind: SlotWidth, Width: wDst},
		{Kind: SlotWidth, Width: wSrc},
	})
}

func (b *Builder) LoadZeroExtRegMem(dst, base MicroReg, wDst, wSrc MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeLoadZeroExtRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: base},
		{Kind: SlotWidth, Width: wDst},
		{Kind: SlotWidth, Width: wSrc},
		{Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) LoadAddrRegMem(r, base MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeLoadAddrRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r},
		{Kind: SlotReg, Reg: base},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: offset},
	})
}

// amc* entry points encode addressing with multiplier+constant,
// [base + index*scale + disp] (§3 AMC glossary entry).

func (b *Builder) LoadAmcRegMem(dst, base, index MicroReg, scale byte, w MicroOpBits, disp int32) Ref {
	return b.addInstruction(OpcodeLoadAmcRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotReg, Reg: base},
		{Kind: SlotReg, Reg: index},
		{Kind: SlotAmcScale, Scale: scale},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: disp},
	})
}

func (b *Builder) LoadAmcMemReg(base, index MicroReg, scale byte, src MicroReg, w MicroOpBits, disp int32) Ref {
	return b.addInstruction(OpcodeLoadAmcMemReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base},
		{Kind: SlotReg, Reg: index},
		{Kind: SlotAmcScale, Scale: scale},
		{Kind: SlotReg, Reg: src},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: disp},
	})
}

func (b *Builder) LoadAmcMemImm(base, index MicroReg, scale byte, w MicroOpBits, disp int32, imm uint64) Ref {
	return b.addInstruction(OpcodeLoadAmcMemImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base},
		{Kind: SlotReg, Reg: index},
		{Kind: SlotAmcScale, Scale: scale},
		{Kind: SlotWidth, Width: w},
		{Kind: SlotOffset, Offset: disp},
		{Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) LoadAddrAmcRegMem(dst, base, index MicroReg, scale byte, dstWidth MicroOpBits, disp int32) Ref {
	return b.addInstruction(OpcodeLoadAddrAmcRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base},
		{Kind: SlotReg, Reg: index},
		{Kind: SlotAmcScale, Scale: scale},
		{Kind: SlotOffset, Offset: disp},
		{Kind: SlotReg, Reg: dst},
		{Kind: SlotWidth, Width: dstWidth},
	})
}

func (b *Builder) CmpRegReg(lhs, rhs MicroReg, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeCmpRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: lhs}, {Kind: SlotReg, Reg: rhs}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) CmpRegImm(lhs MicroReg, w MicroOpBits, imm uint64) Ref {
	return b.addInstruction(OpcodeCmpRegImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: lhs}, {Kind: SlotImm, ImmU64: imm}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) CmpMemReg(base, rhs MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeCmpMemReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base}, {Kind: SlotReg, Reg: rhs}, {Kind: SlotWidth, Width: w}, {Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) CmpMemImm(base MicroReg, w MicroOpBits, offset int32, imm uint64) Ref {
	return b.addInstruction(OpcodeCmpMemImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base}, {Kind: SlotWidth, Width: w}, {Kind: SlotOffset, Offset: offset}, {Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) SetCondReg(r MicroReg, cond MicroCond) Ref {
	return b.addInstruction(OpcodeSetCondReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r}, {Kind: SlotCond, Cond: cond},
	})
}

func (b *Builder) LoadCondRegReg(dst, src MicroReg, cond MicroCond, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeLoadCondRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst}, {Kind: SlotReg, Reg: src}, {Kind: SlotCond, Cond: cond}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) ClearReg(r MicroReg, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeClearReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) OpUnaryReg(op MicroOp, r MicroReg, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeOpUnaryReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) OpBinaryRegReg(op MicroOp, dst, src MicroReg, w MicroOpBits, flags EmitFlags) Ref {
	return b.addInstruction(OpcodeOpBinaryRegReg, flags, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst}, {Kind: SlotReg, Reg: src}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) OpBinaryRegMem(op MicroOp, dst, base MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeOpBinaryRegMem, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst}, {Kind: SlotReg, Reg: base}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w}, {Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) OpBinaryRegImm(op MicroOp, dst MicroReg, w MicroOpBits, imm uint64) Ref {
	return b.addInstruction(OpcodeOpBinaryRegImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w}, {Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) OpBinaryMemReg(op MicroOp, base, src MicroReg, w MicroOpBits, offset int32) Ref {
	return b.addInstruction(OpcodeOpBinaryMemReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base}, {Kind: SlotReg, Reg: src}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w}, {Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) OpBinaryMemImm(op MicroOp, base MicroReg, w MicroOpBits, offset int32, imm uint64) Ref {
	return b.addInstruction(OpcodeOpBinaryMemImm, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: base}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w}, {Kind: SlotOffset, Offset: offset}, {Kind: SlotImm, ImmU64: imm},
	})
}

func (b *Builder) OpTernaryRegRegReg(op MicroOp, dst, a, c MicroReg, w MicroOpBits) Ref {
	return b.addInstruction(OpcodeOpTernaryRegRegReg, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: dst}, {Kind: SlotReg, Reg: a}, {Kind: SlotReg, Reg: c}, {Kind: SlotOp, Op: op}, {Kind: SlotWidth, Width: w},
	})
}

func (b *Builder) SymbolRelocAddr(r MicroReg, symbolIndex uint32, offset int32) Ref {
	return b.addInstruction(OpcodeSymbolRelocAddr, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r}, {Kind: SlotSymbolIndex, SymIndex: symbolIndex}, {Kind: SlotOffset, Offset: offset},
	})
}

func (b *Builder) SymbolRelocValue(r MicroReg, w MicroOpBits, symbolIndex uint32, offset int32) Ref {
	return b.addInstruction(OpcodeSymbolRelocValue, EmitNone, []MicroInstrOperand{
		{Kind: SlotReg, Reg: r}, {Kind: SlotWidth, Width: w}, {Kind: SlotSymbolIndex, SymIndex: symbolIndex}, {Kind: SlotOffset, Offset: offset},
	})
}

// Erase lazily marks ref as removed; subsequent traversals of Order skip
// it (§3, §4.3).
func (b *Builder) Erase(ref Ref) {
	b.Instrs.Ptr(ref).erased = true
}

// SpliceBefore reorders the emission order so that seq (instructions
// already allocated in the arena, typically via freshly-called typed
// entry points) appear immediately before target. Used by the
// prolog/epilog pass to insert a push/sub sequence ahead of a function's
// first instruction, or a mirrored sequence ahead of each return, without
// disturbing arena identity for any existing Ref.
func (b *Builder) SpliceBefore(target Ref, seq []Ref) {
	if len(seq) == 0 {
		return
	}
	inSeq := make(map[Ref]bool, len(seq))
	for _, r := range seq {
		inSeq[r] = true
	}
	out := make([]Ref, 0, len(b.order))
	for _, r := range b.order {
		if inSeq[r] {
			continue // seq was appended at the tail when built; drop that copy
		}
		if r == target {
			out = append(out, seq...)
		}
		out = append(out, r)
	}
	b.order = out
}
