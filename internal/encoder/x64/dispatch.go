package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// encodeDispatch is the single switch every micro.Opcode is routed
// through. Each case either writes bytes via e.Buf or returns a non-Zero
// EncodeResult describing why it can't — the legalizer (internal/passes)
// and peephole pass (internal/peephole) are the only callers that ever see
// a non-Zero result; the emit pass treats one as an internal invariant
// violation (§7.1).
func (e *Encoder) encodeDispatch(op micro.Opcode, flags micro.EmitFlags, ops []micro.MicroInstrOperand) EncodeResult {
	switch op {
	case micro.OpcodeNop, micro.OpcodeEnd, micro.OpcodeLabel:
		return Zero

	case micro.OpcodeRet:
		e.Buf.EmitByte(0xc3)
		return Zero

	case micro.OpcodePush:
		return e.encodePush(ops[0].Reg)
	case micro.OpcodePop:
		return e.encodePop(ops[0].Reg)

	case micro.OpcodeJumpReg:
		return e.encodeJumpReg(ops[0].Reg)
	case micro.OpcodeJumpCond:
		return e.encodeJumpCond(ops[0].Cond, ops[1].Width, ops[2].Label)
	case micro.OpcodeJumpTable:
		return e.encodeJumpTable(ops)

	case micro.OpcodeCallLocal:
		return e.encodeCall(ops[3].SymIndex)
	case micro.OpcodeCallExtern:
		return e.encodeCall(ops[2].SymIndex)
	case micro.OpcodeCallIndirect:
		return e.encodeCallIndirect(ops[0].Reg)

	case micro.OpcodeLoadRegImm:
		return e.encodeLoadRegImm(ops[0].Reg, ops[1].Width, ops[2].ImmU64)
	case micro.OpcodeLoadRegReg:
		return e.encodeLoadRegReg(ops[0].Reg, ops[1].Reg, ops[2].Width)
	case micro.OpcodeLoadRegMem:
		if ops[0].Reg.Class().IsFloat() {
			return e.EncodeFloatLoadRegMem(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Offset)
		}
		return e.encodeLoadRegMem(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Offset)
	case micro.OpcodeLoadMemReg:
		if ops[1].Reg.Class().IsFloat() {
			return e.EncodeFloatLoadMemReg(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Offset)
		}
		return e.encodeLoadMemReg(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Offset)
	case micro.OpcodeLoadMemImm:
		return e.encodeLoadMemImm(ops[0].Reg, ops[1].Width, ops[2].Offset, ops[3].ImmU64)

	case micro.OpcodeLoadSignedExtRegReg:
		return e.encodeExtRegReg(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Width, true)
	case micro.OpcodeLoadZeroExtRegReg:
		return e.encodeExtRegReg(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Width, false)
	case micro.OpcodeLoadSignedExtRegMem:
		return e.encodeExtRegMem(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Width, ops[4].Offset, true)
	case micro.OpcodeLoadZeroExtRegMem:
		return e.encodeExtRegMem(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Width, ops[4].Offset, false)

	case micro.OpcodeLoadAddrRegMem:
		return e.encodeLea(ops[0].Reg, amodeEncodable{base: ops[1].Reg, disp: ops[3].Offset})

	case micro.OpcodeLoadAmcRegMem:
		return e.encodeAmcRegMem(ops[0].Reg, ops[1].Reg, ops[2].Reg, ops[3].Scale, ops[4].Width, ops[5].Offset, true)
	case micro.OpcodeLoadAmcMemReg:
		return e.encodeAmcRegMem(ops[3].Reg, ops[0].Reg, ops[1].Reg, ops[2].Scale, ops[4].Width, ops[5].Offset, false)
	case micro.OpcodeLoadAmcMemImm:
		return e.encodeAmcMemImm(ops[0].Reg, ops[1].Reg, ops[2].Scale, ops[3].Width, ops[4].Offset, ops[5].ImmU64)
	case micro.OpcodeLoadAddrAmcRegMem:
		return e.encodeLea(ops[4].Reg, amodeEncodable{base: ops[0].Reg, index: ops[1].Reg, scale: ops[2].Scale, disp: ops[3].Offset})

	case micro.OpcodeCmpRegReg:
		return e.encodeCmpRegReg(ops[0].Reg, ops[1].Reg, ops[2].Width)
	case micro.OpcodeCmpRegImm:
		return e.encodeCmpRegImm(ops[0].Reg, ops[2].Width, ops[1].ImmU64)
	case micro.OpcodeCmpMemReg:
		return e.encodeCmpMemReg(ops[0].Reg, ops[1].Reg, ops[2].Width, ops[3].Offset)
	case micro.OpcodeCmpMemImm:
		return e.encodeCmpMemImm(ops[0].Reg, ops[1].Width, ops[2].Offset, ops[3].ImmU64)

	case micro.OpcodeSetCondReg:
		return e.encodeSetCond(ops[0].Reg, ops[1].Cond)
	case micro.OpcodeLoadCondRegReg:
		return e.encodeCmov(ops[0].Reg, ops[1].Reg, ops[2].Cond, ops[3].Width)
	case micro.OpcodeClearReg:
		return e.encodeClearReg(ops[0].Reg, ops[1].Width)

	case micro.OpcodeOpUnaryReg:
		return e.encodeUnaryReg(ops[1].Op, ops[0].Reg, ops[2].Width)
	case micro.OpcodeOpUnaryMem:
		return e.encodeUnaryMem(ops[1].Op, ops[0].Reg, ops[2].Width, ops[0].Offset)

	case micro.OpcodeOpBinaryRegReg:
		return e.encodeBinaryRegReg(ops[2].Op, ops[0].Reg, ops[1].Reg, ops[3].Width, flags)
	case micro.OpcodeOpBinaryRegMem:
		return e.encodeBinaryRegMem(ops[2].Op, ops[0].Reg, ops[1].Reg, ops[3].Width, ops[4].Offset)
	case micro.OpcodeOpBinaryRegImm:
		return e.encodeBinaryRegImm(ops[1].Op, ops[0].Reg, ops[2].Width, ops[3].ImmU64)
	case micro.OpcodeOpBinaryMemReg:
		return e.encodeBinaryMemReg(ops[2].Op, ops[0].Reg, ops[1].Reg, ops[3].Width, ops[4].Offset)
	case micro.OpcodeOpBinaryMemImm:
		return e.encodeBinaryMemImm(ops[1].Op, ops[0].Reg, ops[2].Width, ops[3].Offset, ops[4].ImmU64)
	case micro.OpcodeOpTernaryRegRegReg:
		return e.encodeTernary(ops[3].Op, ops[0].Reg, ops[1].Reg, ops[2].Reg, ops[4].Width)

	case micro.OpcodeSymbolRelocAddr:
		return e.encodeSymbolRelocAddr(ops[0].Reg, ops[1].SymIndex, ops[2].Offset)
	case micro.OpcodeSymbolRelocValue:
		return e.encodeSymbolRelocValue(ops[0].Reg, ops[1].Width, ops[2].SymIndex, ops[3].Offset)

	default:
		return NotSupported
	}
}

// regWidthRex returns a rexInfo with W set iff w == B64, matching the
// common "operand-size determines REX.W" rule (§4.6).
func regWidthRex(w micro.MicroOpBits) rexInfo {
	r := rexInfo(0)
	if w == micro.B64 {
		r = r.setW()
	}
	return r
}

// opSizePrefix returns the 0x66 legacy prefix for 16-bit integer
// operations (§4.6 "Operand-size prefix 0x66").
func opSizePrefix(w micro.MicroOpBits) legacyPrefixes {
	if w == micro.B16 {
		return legacyPrefixes0x66
	}
	return legacyPrefixesNone
}

// byteRegRexAlways reports whether accessing r as an 8-bit register
// requires a REX prefix purely to disambiguate SPL/BPL/SIL/DIL from
// AH/CH/DH/BH (§4.6 REX prefix rule, third clause).
func byteRegRexAlways(r micro.MicroReg, w micro.MicroOpBits) bool {
	if w != micro.B8 || r.IsVirtual() {
		return false
	}
	switch r.Index() {
	case 4, 5, 6, 7: // rsp, rbp, rsi, rdi encodings
		return true
	default:
		return false
	}
}
