// Package x64 implements the x86-64 machine encoder (§4.6): ModR/M, REX,
// SIB and immediate encoding exactly as Intel defines them, plus the
// jump-patch and relocation bookkeeping the emit pass needs. Grounded on
// the teacher's internal/engine/wazevo/backend/isa/amd64/instr_encoding.go
// and the original CpuEncoder.h/X64Encoder.cpp referenced from
// original_source/.
package x64

import (
	"github.com/sirupsen/logrus"

	"github.com/xlang-toolchain/x64codegen/internal/metrics"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// EncodeResult is returned by every encode_* entry point (§4.6).
type EncodeResult uint8

const (
	// Zero means emitted successfully, or — if EmitCanEncode was set —
	// the encoding is legal.
	Zero EncodeResult = iota
	// Left2Reg means the left/first operand must be materialised into a
	// register before this form is encodable.
	Left2Reg
	// Right2Reg means the right/second operand must be materialised into
	// a register.
	Right2Reg
	// Left2Rax means the left operand must be moved into Rax (division,
	// compare-exchange).
	Left2Rax
	// Right2Rcx means the right operand (a shift count) must be moved
	// into Rcx.
	Right2Rcx
	// Right2Cst means the right operand must be materialised into an
	// immediate (constant) form.
	Right2Cst
	// ForceZero32 means a zero-extension to 32 bits is required first.
	ForceZero32
	// NotSupported means no rewriting can make this legal; the caller
	// must choose a different lowering.
	NotSupported
)

func (r EncodeResult) String() string {
	switch r {
	case Zero:
		return "ok"
	case Left2Reg:
		return "left->reg"
	case Right2Reg:
		return "right->reg"
	case Left2Rax:
		return "left->rax"
	case Right2Rcx:
		return "right->rcx"
	case Right2Cst:
		return "right->imm"
	case ForceZero32:
		return "force-zero32"
	case NotSupported:
		return "not-supported"
	default:
		return "?"
	}
}

// SymbolKind distinguishes symbol-table entry kinds (§3).
type SymbolKind uint8

const (
	SymbolFunction SymbolKind = iota
	SymbolExtern
	SymbolCustom
	SymbolConstant
)

// Symbol is an encoder-local symbol-table entry: {name, kind, value,
// compact index}.
type Symbol struct {
	Name  uint32
	Kind  SymbolKind
	Value int64
	Index uint32
}

// CpuJump is a pending jump-patch site: {byte address of the displacement
// field, instruction-end offset the displacement is measured from, width
// of the displacement} (§3).
type CpuJump struct {
	DispFieldOffset uint32
	InstrEndOffset  uint32
	Width           micro.MicroOpBits // B8 or B32
	Label           micro.Label
}

// Encoder owns the output byte buffer, the current function's text-section
// base offset, the deduplicated symbol table, and the pending jump-patch
// lists (§4.6).
type Encoder struct {
	Buf *CodeBuffer

	textBaseOffset uint32

	symbols     []Symbol
	symbolIndex map[uint32]uint32 // name -> index, dedup by name

	relocations []micro.Relocation

	pendingJumps []CpuJump

	log *logrus.Entry
}

// NewEncoder returns an encoder writing into a fresh CodeBuffer, with its
// text-section base offset fixed at textBaseOffset (§3: relocation site
// offsets are relative to the start of the text section, not the current
// function).
func NewEncoder(textBaseOffset uint32, log *logrus.Entry) *Encoder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Encoder{
		Buf:            NewCodeBuffer(),
		textBaseOffset: textBaseOffset,
		symbolIndex:    map[uint32]uint32{},
		log:            log,
	}
}

// InternSymbol deduplicates by name and returns a stable compact index
// (§3: "maintains a deduplicating ordered list").
func (e *Encoder) InternSymbol(name uint32, kind SymbolKind, value int64) uint32 {
	if idx, ok := e.symbolIndex[name]; ok {
		return idx
	}
	idx := uint32(len(e.symbols))
	e.symbols = append(e.symbols, Symbol{Name: name, Kind: kind, Value: value, Index: idx})
	e.symbolIndex[name] = idx
	return idx
}

// Symbols returns the deduplicated symbol table in insertion order.
func (e *Encoder) Symbols() []Symbol { return e.symbols }

// Relocations returns every relocation recorded during encoding.
func (e *Encoder) Relocations() []micro.Relocation { return e.relocations }

func (e *Encoder) addRelocation(kind micro.RelocationKind, symbolIdx uint32, siteOffsetInFunction uint32) {
	site := e.textBaseOffset + siteOffsetInFunction
	e.relocations = append(e.relocations, micro.Relocation{
		SiteOffset: site,
		SymbolIdx:  symbolIdx,
		Kind:       kind,
	})
}

// PendingJumps returns every CpuJump recorded during encoding, for the
// emit pass to patch once label offsets are known.
func (e *Encoder) PendingJumps() []CpuJump { return e.pendingJumps }

func (e *Encoder) addPendingJump(j CpuJump) { e.pendingJumps = append(e.pendingJumps, j) }

// Encode dispatches a single micro instruction to its encode_* entry
// point. When flags carries EmitCanEncode the call is a conformance probe.
// The individual encoders do not consult that flag: every case writes its
// bytes, relocations and pending jumps as usual, and Encode then truncates
// the buffer and both side tables back to the lengths they had on entry, so
// a probe leaves no trace once it returns.
func (e *Encoder) Encode(op micro.Opcode, flags micro.EmitFlags, ops []micro.MicroInstrOperand) EncodeResult {
	probe := flags.Has(micro.EmitCanEncode)
	mark := e.Buf.Len()
	relocMark := len(e.relocations)
	jumpMark := len(e.pendingJumps)

	res := e.encodeDispatch(op, flags, ops)

	if probe {
		// Conformance probes never commit bytes or side tables, even if
		// a dispatch case wrote something before discovering it must
		// fail; truncate back to the pre-call watermark.
		e.Buf.Truncate(mark)
		e.relocations = e.relocations[:relocMark]
		e.pendingJumps = e.pendingJumps[:jumpMark]
	} else if res == Zero {
		metrics.InstructionsEncoded.Inc()
		metrics.BytesEmitted.Add(float64(e.Buf.Len() - mark))
	}
	return res
}

// CanEncode is sugar for Encode with EmitCanEncode forced on — the
// conformance probe used by the legalizer and the peephole rewriter.
func (e *Encoder) CanEncode(op micro.Opcode, flags micro.EmitFlags, ops []micro.MicroInstrOperand) EncodeResult {
	return e.Encode(op, flags|micro.EmitCanEncode, ops)
}
