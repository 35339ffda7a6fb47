package micro

// Opcode is the micro-op family a MicroInstr belongs to (§4.2 catalogue).
// Operand meanings are positional within the owning opcode's operand span.
type Opcode uint16

const (
	OpcodeInvalid Opcode = iota

	OpcodeNop
	OpcodeRet
	OpcodeEnd

	OpcodePush
	OpcodePop

	OpcodeLabel
	OpcodeJumpCond
	OpcodeJumpReg
	OpcodeJumpTable

	OpcodeCallLocal
	OpcodeCallExtern
	OpcodeCallIndirect

	OpcodeLoadRegImm
	OpcodeLoadRegReg
	OpcodeLoadRegMem
	OpcodeLoadMemReg
	OpcodeLoadMemImm

	OpcodeLoadSignedExtRegMem
	OpcodeLoadSignedExtRegReg
	OpcodeLoadZeroExtRegMem
	OpcodeLoadZeroExtRegReg

	OpcodeLoadAddrRegMem

	OpcodeLoadAmcRegMem
	OpcodeLoadAmcMemReg
	OpcodeLoadAmcMemImm
	OpcodeLoadAddrAmcRegMem

	OpcodeCmpRegReg
	OpcodeCmpRegImm
	OpcodeCmpMemReg
	OpcodeCmpMemImm

	OpcodeSetCondReg
	OpcodeLoadCondRegReg
	OpcodeClearReg

	OpcodeOpUnaryReg
	OpcodeOpUnaryMem
	OpcodeOpBinaryRegReg
	OpcodeOpBinaryRegMem
	OpcodeOpBinaryRegImm
	OpcodeOpBinaryMemReg
	OpcodeOpBinaryMemImm
	OpcodeOpTernaryRegRegReg

	OpcodeSymbolRelocAddr
	OpcodeSymbolRelocValue
)

var opcodeNames = map[Opcode]string{
	OpcodeNop: "nop", OpcodeRet: "ret", OpcodeEnd: "end",
	OpcodePush: "push", OpcodePop: "pop",
	OpcodeLabel: "label", OpcodeJumpCond: "jcc", OpcodeJumpReg: "jmp.r", OpcodeJumpTable: "jmp.table",
	OpcodeCallLocal: "call.local", OpcodeCallExtern: "call.extern", OpcodeCallIndirect: "call.indirect",
	OpcodeLoadRegImm: "ld.r.i", OpcodeLoadRegReg: "ld.r.r", OpcodeLoadRegMem: "ld.r.m",
	OpcodeLoadMemReg: "ld.m.r", OpcodeLoadMemImm: "ld.m.i",
	OpcodeLoadSignedExtRegMem: "ld.sext.r.m", OpcodeLoadSignedExtRegReg: "ld.sext.r.r",
	OpcodeLoadZeroExtRegMem: "ld.zext.r.m", OpcodeLoadZeroExtRegReg: "ld.zext.r.r",
	OpcodeLoadAddrRegMem: "lea.r.m",
	OpcodeLoadAmcRegMem:  "ld.amc.r.m", OpcodeLoadAmcMemReg: "ld.amc.m.r", OpcodeLoadAmcMemImm: "ld.amc.m.i",
	OpcodeLoadAddrAmcRegMem: "lea.amc.r.m",
	OpcodeCmpRegReg:         "cmp.r.r", OpcodeCmpRegImm: "cmp.r.i", OpcodeCmpMemReg: "cmp.m.r", OpcodeCmpMemImm: "cmp.m.i",
	OpcodeSetCondReg: "setcc", OpcodeLoadCondRegReg: "cmov", OpcodeClearReg: "clear",
	OpcodeOpUnaryReg: "op1.r", OpcodeOpUnaryMem: "op1.m",
	OpcodeOpBinaryRegReg: "op2.r.r", OpcodeOpBinaryRegMem: "op2.r.m", OpcodeOpBinaryRegImm: "op2.r.i",
	OpcodeOpBinaryMemReg: "op2.m.r", OpcodeOpBinaryMemImm: "op2.m.i",
	OpcodeOpTernaryRegRegReg: "op3.r.r.r",
	OpcodeSymbolRelocAddr:    "reloc.addr", OpcodeSymbolRelocValue: "reloc.value",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return "opcode?"
}

// IsTerminator reports whether o ends a basic block, used by the
// Optimization Oracle's barrier classification.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpcodeRet, OpcodeEnd, OpcodeJumpCond, OpcodeJumpReg, OpcodeJumpTable:
		return true
	default:
		return false
	}
}

// IsCall reports whether o transfers control to another function.
func (o Opcode) IsCall() bool {
	switch o {
	case OpcodeCallLocal, OpcodeCallExtern, OpcodeCallIndirect:
		return true
	default:
		return false
	}
}

// EmitFlags are per-instruction bits for overflow checking, the LOCK
// prefix, and conformance-only ("probe") mode. There is no 64-bit operand
// hint bit; operand width is carried in each instruction's width slot.
type EmitFlags uint8

const (
	EmitNone EmitFlags = 0
	// EmitLock requests a LOCK prefix on the encoded instruction
	// (compare-exchange, atomic RMW).
	EmitLock EmitFlags = 1 << iota >> 1
	// EmitCanEncode, when set, asks the encoder to perform every legality
	// check but emit no bytes (the conformance probe, §4.6/§9).
	EmitCanEncode
	// EmitOverflowChecked marks arithmetic whose AST node is
	// overflow-checked; lowering sets it. The encoder does not read this
	// bit and emits no overflow-trap sequence for it.
	EmitOverflowChecked
)

// Has reports whether all bits of mask are set in f.
func (f EmitFlags) Has(mask EmitFlags) bool { return f&mask == mask }

// OperandSlotKind tags which field of a MicroInstrOperand is meaningful.
// Meaning is otherwise a pure function of (opcode, index) per §9.
type OperandSlotKind uint8

const (
	SlotNone OperandSlotKind = iota
	SlotReg
	SlotImm
	SlotWidth
	SlotCond
	SlotOp
	SlotCallConv
	SlotIdentifier
	SlotSymbolIndex
	SlotOffset
	SlotLabel
	SlotAmcScale
)

// MicroInstrOperand is a tagged-union-by-position slot, large enough for
// any of: register, 64-bit immediate (u64/i32 views), width tag, condition,
// micro-op, call convention, identifier reference, or relocation target.
type MicroInstrOperand struct {
	Kind OperandSlotKind

	Reg      MicroReg
	ImmU64   uint64
	Width    MicroOpBits
	Cond     MicroCond
	Op       MicroOp
	CallConv CallConv
	IdentRef uint32
	SymIndex uint32
	Offset   int32
	Label    Label
	Scale    byte // one of {1, 2, 4, 8} when SlotAmcScale
}

// ImmI32 views the immediate slot as a sign-extended 32-bit value.
func (s MicroInstrOperand) ImmI32() int32 { return int32(uint32(s.ImmU64)) }

// DebugInfo is the optional {source view, token, line} triple an
// instruction may carry when the builder is configured with the debug
// flag (§4.2). Stored out-of-line, keyed by instruction Ref, so the common
// release-build case pays nothing per instruction (see builder.go).
type DebugInfo struct {
	SourceView uint32
	Token      uint32
	Line       uint32
}

// MicroInstr is {opcode, emit-flags, operand-count, operand-span
// reference}. Operands live in a parallel operand arena; the instruction
// stores only a span reference and a count (§3).
type MicroInstr struct {
	Opcode  Opcode
	Flags   EmitFlags
	NumOps  uint8
	OpsRef  Ref
	Targets []uint32 // jump-table island targets, when Opcode == OpcodeJumpTable
	erased  bool
}

// Erased reports whether the instruction has been lazily removed from its
// view (§3 invariant: erasure is lazy and marked).
func (i *MicroInstr) Erased() bool { return i.erased }
