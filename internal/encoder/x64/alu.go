package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// aluTable maps the plain ALU MicroOps to their {op r/m,r ; op r,r/m ;
// /digit for the imm8/imm32 group} opcodes, grounded on the teacher's
// aluRmiROpcode switch in instr_encoding.go.
type aluEntry struct{ opcR, opcM uint32; sub byte }

var aluTable = map[micro.MicroOp]aluEntry{
	micro.OpAdd: {0x01, 0x03, 0x0},
	micro.OpOr:  {0x09, 0x0b, 0x1},
	micro.OpAnd: {0x21, 0x23, 0x4},
	micro.OpSub: {0x29, 0x2b, 0x5},
	micro.OpXor: {0x31, 0x33, 0x6},
}

// cmpAlu is the ALU-shaped form CMP uses: sub-style opcodes that discard
// the result and only update flags.
var cmpAlu = aluEntry{0x39, 0x3b, 0x7}

func (e *Encoder) encodeBinaryRegReg(op micro.MicroOp, dst, src micro.MicroReg, w micro.MicroOpBits, flags micro.EmitFlags) EncodeResult {
	if entry, ok := aluTable[op]; ok {
		opSizePrefix(w).encode(e.Buf)
		encodeRegReg(e.Buf, legacyPrefixesNone, entry.opcR, 1, encodeGPR(src), encodeGPR(dst), regWidthRex(w))
		return Zero
	}
	switch op {
	case micro.OpMulSigned:
		opSizePrefix(w).encode(e.Buf)
		encodeRegReg(e.Buf, legacyPrefixesNone, 0x0faf, 2, encodeGPR(dst), encodeGPR(src), regWidthRex(w))
		return Zero
	case micro.OpMulUnsigned:
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeMulDivUnary(src, w, 4, false)
	case micro.OpDivSigned:
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeMulDivUnary(src, w, 7, true)
	case micro.OpDivUnsigned:
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeMulDivUnary(src, w, 6, false)
	case micro.OpModSigned:
		// Same idiv instruction as OpDivSigned: quotient lands in RAX,
		// remainder in RDX. The legalizer is responsible for moving the
		// remainder out of RDX into the real destination afterward.
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeMulDivUnary(src, w, 7, true)
	case micro.OpModUnsigned:
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeMulDivUnary(src, w, 6, false)
	case micro.OpCvtI2F, micro.OpCvtU2F64, micro.OpCvtF2I, micro.OpCvtF2F:
		return e.encodeConvert(op, dst, src, w)
	case micro.OpShl, micro.OpShr, micro.OpSar, micro.OpRol, micro.OpRor:
		if src != micro.Rcx {
			return Right2Rcx
		}
		return e.encodeShiftByCL(op, dst, w)
	case micro.OpExchange:
		return e.encodeExchangeRegReg(dst, src, w)
	case micro.OpCmpXchg:
		if dst != micro.Rax {
			return Left2Rax
		}
		return e.encodeCmpXchgRegReg(dst, src, w, flags)
	case micro.OpFAdd, micro.OpFSub, micro.OpFMul, micro.OpFDiv, micro.OpFMin, micro.OpFMax, micro.OpFAnd, micro.OpFXor:
		return e.encodeSSEBinaryRegReg(op, dst, src, w)
	case micro.OpPopcnt:
		opSizePrefix(w).encode(e.Buf)
		encodeRegReg(e.Buf, legacyPrefixes0xF3, 0x0fb8, 2, encodeGPR(dst), encodeGPR(src), regWidthRex(w))
		return Zero
	case micro.OpBsf:
		encodeRegReg(e.Buf, legacyPrefixesNone, 0x0fbc, 2, encodeGPR(dst), encodeGPR(src), regWidthRex(w))
		return Zero
	case micro.OpBsr:
		encodeRegReg(e.Buf, legacyPrefixesNone, 0x0fbd, 2, encodeGPR(dst), encodeGPR(src), regWidthRex(w))
		return Zero
	default:
		return NotSupported
	}
}

func (e *Encoder) encodeBinaryRegMem(op micro.MicroOp, dst, base micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	entry, ok := aluTable[op]
	if !ok {
		return NotSupported
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, entry.opcM, 1, encodeGPR(dst), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

func (e *Encoder) encodeBinaryMemReg(op micro.MicroOp, base, src micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	entry, ok := aluTable[op]
	if !ok {
		return NotSupported
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, entry.opcR, 1, encodeGPR(src), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

func (e *Encoder) encodeBinaryRegImm(op micro.MicroOp, dst micro.MicroReg, w micro.MicroOpBits, imm uint64) EncodeResult {
	entry, ok := aluTable[op]
	if op == micro.OpMulSigned {
		return e.encodeImulRegImm(dst, w, imm)
	}
	if !ok {
		return NotSupported
	}
	return e.encodeAluRegImm(entry.sub, dst, w, imm)
}

func (e *Encoder) encodeBinaryMemImm(op micro.MicroOp, base micro.MicroReg, w micro.MicroOpBits, offset int32, imm uint64) EncodeResult {
	entry, ok := aluTable[op]
	if !ok {
		return NotSupported
	}
	return e.encodeAluMemImm(entry.sub, base, w, offset, imm)
}

// encodeAluRegImm encodes the ALU r/m, imm8/imm32 forms (opcode 0x83 /sub
// for a sign-extending imm8, 0x81 /sub otherwise), shared by ALU ops and
// CMP.
func (e *Encoder) encodeAluRegImm(sub byte, dst micro.MicroReg, w micro.MicroOpBits, imm uint64) EncodeResult {
	opSizePrefix(w).encode(e.Buf)
	imm8 := w != micro.B8 && lower8WillSignExtendTo32(uint32(imm))
	opcode := uint32(0x81)
	if imm8 || w == micro.B8 {
		opcode = 0x83
		if w == micro.B8 {
			opcode = 0x80
		}
	}
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), encodeGPR(dst), regWidthRex(w))
	switch {
	case w == micro.B8:
		e.Buf.EmitByte(byte(imm))
	case opcode == 0x83:
		e.Buf.EmitByte(byte(imm))
	case w == micro.B16:
		e.Buf.EmitByte(byte(imm))
		e.Buf.EmitByte(byte(imm >> 8))
	default:
		e.Buf.Emit4Bytes(uint32(imm))
	}
	return Zero
}

func (e *Encoder) encodeAluMemImm(sub byte, base micro.MicroReg, w micro.MicroOpBits, offset int32, imm uint64) EncodeResult {
	opSizePrefix(w).encode(e.Buf)
	imm8 := w != micro.B8 && lower8WillSignExtendTo32(uint32(imm))
	opcode := uint32(0x81)
	if imm8 || w == micro.B8 {
		opcode = 0x83
		if w == micro.B8 {
			opcode = 0x80
		}
	}
	res := encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
	if res != Zero {
		return res
	}
	switch {
	case w == micro.B8:
		e.Buf.EmitByte(byte(imm))
	case opcode == 0x83:
		e.Buf.EmitByte(byte(imm))
	case w == micro.B16:
		e.Buf.EmitByte(byte(imm))
		e.Buf.EmitByte(byte(imm >> 8))
	default:
		e.Buf.Emit4Bytes(uint32(imm))
	}
	return Zero
}

func (e *Encoder) encodeImulRegImm(dst micro.MicroReg, w micro.MicroOpBits, imm uint64) EncodeResult {
	d := encodeGPR(dst)
	imm8 := lower8WillSignExtendTo32(uint32(imm))
	opcode := uint32(0x69)
	if imm8 {
		opcode = 0x6b
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, d, d, regWidthRex(w))
	if imm8 {
		e.Buf.EmitByte(byte(imm))
	} else {
		e.Buf.Emit4Bytes(uint32(imm))
	}
	return Zero
}

// encodeMulDivUnary encodes the one-operand F7/digit group (MUL, DIV,
// IDIV): implicit dividend in RAX (and RDX on entry for the wide divide),
// quotient in RAX, remainder in RDX (§4.6 "Division/modulo").
func (e *Encoder) encodeMulDivUnary(src micro.MicroReg, w micro.MicroOpBits, sub byte, signed bool) EncodeResult {
	opcode := uint32(0xf7)
	if w == micro.B8 {
		opcode = 0xf6
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), encodeGPR(src), regWidthRex(w))
	return Zero
}

// EncodeSignExtendData emits CDQ (32-bit) or CQO (64-bit): sign-extends
// EAX/RAX into EDX:EAX / RDX:RAX ahead of a signed division, per §4.6 and
// §8 scenario 5.
func (e *Encoder) EncodeSignExtendData(w micro.MicroOpBits) EncodeResult {
	if w == micro.B64 {
		e.Buf.EmitByte(rexW)
		e.Buf.EmitByte(0x99)
	} else {
		e.Buf.EmitByte(0x99)
	}
	return Zero
}

// EncodeZeroRdx emits `xor edx, edx`, the unsigned-division counterpart to
// CDQ/CQO (§4.6).
func (e *Encoder) EncodeZeroRdx() EncodeResult {
	encodeRegReg(e.Buf, legacyPrefixesNone, 0x31, 1, fixedRegEnc(2), fixedRegEnc(2), rexInfo(0))
	return Zero
}

func (e *Encoder) encodeShiftByCL(op micro.MicroOp, dst micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	sub, ok := shiftSub[op]
	if !ok {
		return NotSupported
	}
	opcode := uint32(0xd3)
	if w == micro.B8 {
		opcode = 0xd2
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), encodeGPR(dst), regWidthRex(w))
	return Zero
}

// EncodeShiftByImm encodes the C1/digit imm8 shift form, used once the
// legalizer has confirmed the count is a compile-time constant rather than
// a register.
func (e *Encoder) EncodeShiftByImm(op micro.MicroOp, dst micro.MicroReg, w micro.MicroOpBits, count uint8) EncodeResult {
	sub, ok := shiftSub[op]
	if !ok {
		return NotSupported
	}
	opcode := uint32(0xc1)
	if w == micro.B8 {
		opcode = 0xc0
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), encodeGPR(dst), regWidthRex(w))
	e.Buf.EmitByte(count)
	return Zero
}

var shiftSub = map[micro.MicroOp]byte{
	micro.OpRol: 0, micro.OpRor: 1, micro.OpShl: 4, micro.OpShr: 5, micro.OpSar: 7,
}

func (e *Encoder) encodeExchangeRegReg(dst, src micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	opcode := uint32(0x87)
	if w == micro.B8 {
		opcode = 0x86
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(src), encodeGPR(dst), regWidthRex(w))
	return Zero
}

func (e *Encoder) encodeCmpXchgRegReg(cmp, src micro.MicroReg, w micro.MicroOpBits, flags micro.EmitFlags) EncodeResult {
	if flags.Has(micro.EmitLock) {
		e.Buf.EmitByte(0xf0)
	}
	opcode := uint32(0x0fb1)
	if w == micro.B8 {
		opcode = 0x0fb0
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 2, encodeGPR(src), encodeGPR(cmp), regWidthRex(w))
	return Zero
}

func (e *Encoder) encodeUnaryReg(op micro.MicroOp, r micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	switch op {
	case micro.OpNot:
		return e.encodeF7Unary(2, r, w)
	case micro.OpNeg:
		return e.encodeF7Unary(3, r, w)
	case micro.OpBswap:
		enc := encodeGPR(r)
		if enc.rexBit() > 0 {
			e.Buf.EmitByte(rexW | 0x1)
		} else if w == micro.B64 {
			e.Buf.EmitByte(rexW)
		}
		e.Buf.EmitByte(0x0f)
		e.Buf.EmitByte(0xc8 | enc.encoding())
		return Zero
	case micro.OpFSqrt:
		return e.encodeSSEUnaryRegReg(op, r, r, w)
	case micro.OpSignExtendAccum:
		return e.EncodeSignExtendData(w)
	default:
		return NotSupported
	}
}

func (e *Encoder) encodeUnaryMem(op micro.MicroOp, base micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	switch op {
	case micro.OpNot:
		return e.encodeF7UnaryMem(2, base, w, offset)
	case micro.OpNeg:
		return e.encodeF7UnaryMem(3, base, w, offset)
	default:
		return NotSupported
	}
}

func (e *Encoder) encodeF7Unary(sub byte, r micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	opcode := uint32(0xf7)
	if w == micro.B8 {
		opcode = 0xf6
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), encodeGPR(r), regWidthRex(w))
	return Zero
}

func (e *Encoder) encodeF7UnaryMem(sub byte, base micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	opcode := uint32(0xf7)
	if w == micro.B8 {
		opcode = 0xf6
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(sub), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

// encodeTernary implements MulAdd: dst := dst*a + c for float triples,
// expanded into a multiply followed by an add (§4.6 "FMA is expanded
// into...").
func (e *Encoder) encodeTernary(op micro.MicroOp, dst, a, c micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	if op != micro.OpMulAdd {
		return NotSupported
	}
	if res := e.encodeSSEBinaryRegReg(micro.OpFMul, dst, a, w); res != Zero {
		return res
	}
	return e.encodeSSEBinaryRegReg(micro.OpFAdd, dst, c, w)
}
