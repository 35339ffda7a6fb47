package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// sseBinary is the {single-precision, double-precision} opcode pair for an
// SSE/SSE2 two-register arithmetic instruction, grounded on the teacher's
// xmmRmROpcode table (instr_encoding.go) generalized from its
// avx-vs-legacy split down to the legacy-only encoding this backend emits.
type sseBinary struct {
	pfxSingle, pfxDouble legacyPrefixes
	opcode               uint32
}

var sseBinaryTable = map[micro.MicroOp]sseBinary{
	micro.OpFAdd: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f58},
	micro.OpFSub: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f5c},
	micro.OpFMul: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f59},
	micro.OpFDiv: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f5e},
	micro.OpFMin: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f5d},
	micro.OpFMax: {legacyPrefixes0xF3, legacyPrefixes0xF2, 0x0f5f},
	// FAnd/FXor operate on the full 128-bit register bit pattern (andps,
	// xorps) regardless of whether the value being masked is f32 or f64 —
	// there is no double-precision variant to select.
	micro.OpFAnd: {legacyPrefixesNone, legacyPrefixesNone, 0x0f54},
	micro.OpFXor: {legacyPrefixesNone, legacyPrefixesNone, 0x0f57},
}

// isSingle reports whether w denotes a 32-bit (single-precision) float
// operand; B64 is double-precision. §3's width tag doubles as the
// float/double selector for the OpF* family.
func isSingle(w micro.MicroOpBits) bool { return w != micro.B64 }

func (e *Encoder) encodeSSEBinaryRegReg(op micro.MicroOp, dst, src micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	entry, ok := sseBinaryTable[op]
	if !ok {
		return NotSupported
	}
	pfx := entry.pfxDouble
	if isSingle(w) {
		pfx = entry.pfxSingle
	}
	encodeRegReg(e.Buf, pfx, entry.opcode, 2, encodeGPR(dst), encodeGPR(src), rexInfo(0))
	return Zero
}

func (e *Encoder) encodeSSEUnaryRegReg(op micro.MicroOp, dst, src micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	if op != micro.OpFSqrt {
		return NotSupported
	}
	pfx := legacyPrefixes0xF2
	if isSingle(w) {
		pfx = legacyPrefixes0xF3
	}
	encodeRegReg(e.Buf, pfx, 0x0f51, 2, encodeGPR(dst), encodeGPR(src), rexInfo(0))
	return Zero
}

// encodeConvert implements the OpCvt* family: integer<->float conversions
// between a GPR and an XMM register (§3 "Convert").
func (e *Encoder) encodeConvert(op micro.MicroOp, dst, src micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	switch op {
	case micro.OpCvtI2F:
		// cvtsi2ss/cvtsi2sd xmm, r/m(32|64): GPR -> float.
		pfx := legacyPrefixes0xF2
		if isSingle(w) {
			pfx = legacyPrefixes0xF3
		}
		rex := rexInfo(0)
		if w == micro.B64 {
			rex = rex.setW()
		}
		encodeRegReg(e.Buf, pfx, 0x0f2a, 2, encodeGPR(dst), encodeGPR(src), rex)
		return Zero
	case micro.OpCvtU2F64:
		// No direct unsigned-to-float instruction on this target; the
		// legalizer is expected to have already widened the value into a
		// wider signed representation before reaching the encoder.
		return NotSupported
	case micro.OpCvtF2I:
		// cvttss2si/cvttsd2si r(32|64), xmm: float -> GPR, truncating.
		pfx := legacyPrefixes0xF2
		if isSingle(w) {
			pfx = legacyPrefixes0xF3
		}
		rex := rexInfo(0)
		if w == micro.B64 {
			rex = rex.setW()
		}
		encodeRegReg(e.Buf, pfx, 0x0f2c, 2, encodeGPR(dst), encodeGPR(src), rex)
		return Zero
	case micro.OpCvtF2F:
		// cvtss2sd / cvtsd2ss xmm, xmm. w carries the destination width:
		// B64 means converting up to double, otherwise down to single.
		pfx := legacyPrefixes0xF3
		if w == micro.B64 {
			pfx = legacyPrefixes0xF2
		}
		encodeRegReg(e.Buf, pfx, 0x0f5a, 2, encodeGPR(dst), encodeGPR(src), rexInfo(0))
		return Zero
	default:
		return NotSupported
	}
}

// EncodeFloatLoadRegMem and EncodeFloatLoadMemReg cover movss/movsd against
// a memory operand — the float-class counterpart of encodeLoadRegMem/
// encodeLoadMemReg. OpcodeLoadRegMem/OpcodeLoadMemReg route here whenever
// the register operand is float-classed, so callers (register allocation's
// spill reload/store, internal/lower's local-variable access) never need
// to choose between the two forms themselves.
func (e *Encoder) EncodeFloatLoadRegMem(dst, base micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	pfx := legacyPrefixes0xF2
	if isSingle(w) {
		pfx = legacyPrefixes0xF3
	}
	return encodeRegMem(e.Buf, pfx, 0x0f10, 2, encodeGPR(dst), amodeEncodable{base: base, disp: offset}, rexInfo(0))
}

func (e *Encoder) EncodeFloatLoadMemReg(base, src micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	pfx := legacyPrefixes0xF2
	if isSingle(w) {
		pfx = legacyPrefixes0xF3
	}
	return encodeRegMem(e.Buf, pfx, 0x0f11, 2, encodeGPR(src), amodeEncodable{base: base, disp: offset}, rexInfo(0))
}
