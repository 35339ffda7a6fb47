package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

func (e *Encoder) encodePush(r micro.MicroReg) EncodeResult {
	enc := encodeGPR(r)
	if enc.rexBit() > 0 {
		e.Buf.EmitByte(rexBase | 0x1)
	}
	e.Buf.EmitByte(0x50 | enc.encoding())
	return Zero
}

func (e *Encoder) encodePop(r micro.MicroReg) EncodeResult {
	enc := encodeGPR(r)
	if enc.rexBit() > 0 {
		e.Buf.EmitByte(rexBase | 0x1)
	}
	e.Buf.EmitByte(0x58 | enc.encoding())
	return Zero
}

// encodeLoadRegImm covers LoadRegImm: mov reg, imm at the requested width
// (§4.6 "Immediate width selection").
func (e *Encoder) encodeLoadRegImm(dst micro.MicroReg, w micro.MicroOpBits, imm uint64) EncodeResult {
	d := encodeGPR(dst)
	switch w {
	case micro.B64:
		if lower32WillSignExtendTo64(imm) {
			encodeRegReg(e.Buf, legacyPrefixesNone, 0xc7, 1, fixedRegEnc(0), d, rexInfo(0).setW())
			e.Buf.Emit4Bytes(uint32(imm))
		} else {
			if d.rexBit() > 0 {
				e.Buf.EmitByte(rexW | 0x1)
			} else {
				e.Buf.EmitByte(rexW)
			}
			e.Buf.EmitByte(0xb8 | d.encoding())
			e.Buf.Emit8Bytes(imm)
		}
	case micro.B32:
		if d.rexBit() > 0 {
			e.Buf.EmitByte(rexBase | 0x1)
		}
		e.Buf.EmitByte(0xb8 | d.encoding())
		e.Buf.Emit4Bytes(uint32(imm))
	case micro.B16:
		opSizePrefix(w).encode(e.Buf)
		if d.rexBit() > 0 {
			e.Buf.EmitByte(rexBase | 0x1)
		}
		e.Buf.EmitByte(0xb8 | d.encoding())
		e.Buf.EmitByte(byte(imm))
		e.Buf.EmitByte(byte(imm >> 8))
	case micro.B8:
		if byteRegRexAlways(dst, w) || d.rexBit() > 0 {
			rx := byte(rexBase)
			if d.rexBit() > 0 {
				rx |= 0x1
			}
			e.Buf.EmitByte(rx)
		}
		e.Buf.EmitByte(0xb0 | d.encoding())
		e.Buf.EmitByte(byte(imm))
	default:
		return NotSupported
	}
	return Zero
}

// encodeLoadRegReg covers LoadRegReg: mov dst, src (reg-to-reg copy).
func (e *Encoder) encodeLoadRegReg(dst, src micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	s, d := encodeGPR(src), encodeGPR(dst)
	rex := regWidthRex(w)
	if byteRegRexAlways(dst, w) || byteRegRexAlways(src, w) {
		rex = rex.always()
	}
	opcode := byte(0x89)
	if w == micro.B8 {
		opcode = 0x88
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, uint32(opcode), 1, s, d, rex)
	return Zero
}

func (e *Encoder) encodeLoadRegMem(dst, base micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	opcode := uint32(0x8b)
	if w == micro.B8 {
		opcode = 0x8a
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(dst), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

func (e *Encoder) encodeLoadMemReg(base, src micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	opcode := uint32(0x89)
	if w == micro.B8 {
		opcode = 0x88
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(src), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

func (e *Encoder) encodeLoadMemImm(base micro.MicroReg, w micro.MicroOpBits, offset int32, imm uint64) EncodeResult {
	opcode := uint32(0xc7)
	if w == micro.B8 {
		opcode = 0xc6
	}
	opSizePrefix(w).encode(e.Buf)
	res := encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(0), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
	if res != Zero {
		return res
	}
	switch w {
	case micro.B8:
		e.Buf.EmitByte(byte(imm))
	case micro.B16:
		e.Buf.EmitByte(byte(imm))
		e.Buf.EmitByte(byte(imm >> 8))
	default:
		e.Buf.Emit4Bytes(uint32(imm))
	}
	return Zero
}

// encodeExtRegReg covers LoadSignedExtRegReg/LoadZeroExtRegReg: MOVSX /
// MOVZX / MOVSXD register-to-register widening.
func (e *Encoder) encodeExtRegReg(dst, src micro.MicroReg, wDst, wSrc micro.MicroOpBits, signed bool) EncodeResult {
	d, s := encodeGPR(dst), encodeGPR(src)
	rex := regWidthRex(wDst)
	if signed && wSrc == micro.B32 && wDst == micro.B64 {
		// MOVSXD r64, r/m32 — opcode 0x63, sign-extend 32->64.
		encodeRegReg(e.Buf, legacyPrefixesNone, 0x63, 1, d, s, rex)
		return Zero
	}
	if !signed && wSrc == micro.B32 {
		// MOV r32, r/m32 — the 32-bit write clears bits 32..63 itself.
		encodeRegReg(e.Buf, legacyPrefixesNone, 0x8b, 1, d, s, rexInfo(0))
		return Zero
	}
	opcode, opcodeNum := extOpcode(signed, wSrc)
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, opcodeNum, d, s, rex)
	return Zero
}

func (e *Encoder) encodeExtRegMem(dst, base micro.MicroReg, wDst, wSrc micro.MicroOpBits, offset int32, signed bool) EncodeResult {
	d := encodeGPR(dst)
	rex := regWidthRex(wDst)
	if signed && wSrc == micro.B32 && wDst == micro.B64 {
		return encodeRegMem(e.Buf, legacyPrefixesNone, 0x63, 1, d, amodeEncodable{base: base, disp: offset}, rex)
	}
	if !signed && wSrc == micro.B32 {
		return encodeRegMem(e.Buf, legacyPrefixesNone, 0x8b, 1, d, amodeEncodable{base: base, disp: offset}, rexInfo(0))
	}
	opcode, opcodeNum := extOpcode(signed, wSrc)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, opcodeNum, d, amodeEncodable{base: base, disp: offset}, rex)
}

// extOpcode returns the two-byte 0x0F-prefixed MOVSX/MOVZX opcode for a
// sub-32-bit source width.
func extOpcode(signed bool, wSrc micro.MicroOpBits) (opcode uint32, opcodeNum int) {
	switch {
	case signed && wSrc == micro.B8:
		return 0x0fbe, 2
	case signed && wSrc == micro.B16:
		return 0x0fbf, 2
	case !signed && wSrc == micro.B8:
		return 0x0fb6, 2
	case !signed && wSrc == micro.B16:
		return 0x0fb7, 2
	default:
		// Callers handle B32 sources themselves: opcode 0x63 (MOVSXD)
		// when signed, a plain 32-bit MOV when unsigned, since a 32-bit
		// write already clears the upper half. This path only exists to
		// keep the switch exhaustive.
		return 0x89, 1
	}
}

func (e *Encoder) encodeLea(dst micro.MicroReg, m amodeEncodable) EncodeResult {
	return encodeRegMem(e.Buf, legacyPrefixesNone, 0x8d, 1, encodeGPR(dst), m, rexInfo(0).setW())
}

func (e *Encoder) encodeAmcRegMem(reg, base, index micro.MicroReg, scale byte, w micro.MicroOpBits, disp int32, load bool) EncodeResult {
	base, index = swapRspIndexForScaleOne(base, index, scale)
	var opcode uint32
	if load {
		opcode = 0x8b
		if w == micro.B8 {
			opcode = 0x8a
		}
	} else {
		opcode = 0x89
		if w == micro.B8 {
			opcode = 0x88
		}
	}
	opSizePrefix(w).encode(e.Buf)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(reg), amodeEncodable{base: base, index: index, scale: scale, disp: disp}, regWidthRex(w))
}

// encodeExtAmcRegMem is encodeExtRegMem's SIB-addressed counterpart: it
// widens a value loaded from [base + index*scale + disp] instead of plain
// [base + disp], needed wherever a sign- or zero-extending load has to
// reach through an index register (jump-table dispatch's B32->B64 MOVSXD,
// §4.6).
func (e *Encoder) encodeExtAmcRegMem(dst, base, index micro.MicroReg, scale byte, wDst, wSrc micro.MicroOpBits, disp int32, signed bool) EncodeResult {
	base, index = swapRspIndexForScaleOne(base, index, scale)
	d := encodeGPR(dst)
	rex := regWidthRex(wDst)
	m := amodeEncodable{base: base, index: index, scale: scale, disp: disp}
	if signed && wSrc == micro.B32 && wDst == micro.B64 {
		return encodeRegMem(e.Buf, legacyPrefixesNone, 0x63, 1, d, m, rex)
	}
	if !signed && wSrc == micro.B32 {
		return encodeRegMem(e.Buf, legacyPrefixesNone, 0x8b, 1, d, m, rexInfo(0))
	}
	opcode, opcodeNum := extOpcode(signed, wSrc)
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, opcodeNum, d, m, rex)
}

func (e *Encoder) encodeAmcMemImm(base, index micro.MicroReg, scale byte, w micro.MicroOpBits, disp int32, imm uint64) EncodeResult {
	base, index = swapRspIndexForScaleOne(base, index, scale)
	opcode := uint32(0xc7)
	if w == micro.B8 {
		opcode = 0xc6
	}
	opSizePrefix(w).encode(e.Buf)
	res := encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, fixedRegEnc(0), amodeEncodable{base: base, index: index, scale: scale, disp: disp}, regWidthRex(w))
	if res != Zero {
		return res
	}
	switch w {
	case micro.B8:
		e.Buf.EmitByte(byte(imm))
	case micro.B16:
		e.Buf.EmitByte(byte(imm))
		e.Buf.EmitByte(byte(imm >> 8))
	default:
		e.Buf.Emit4Bytes(uint32(imm))
	}
	return Zero
}

// encodeClearReg implements the xor-self idiom: at B64 the dest is cleared
// via a 32-bit xor (which implicitly zero-extends into the upper half, one
// byte shorter than a 64-bit form); narrower widths clear exactly their
// own width.
func (e *Encoder) encodeClearReg(r micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	eff := w
	if w == micro.B64 {
		eff = micro.B32
	}
	enc := encodeGPR(r)
	opSizePrefix(eff).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, 0x31, 1, enc, enc, regWidthRex(eff))
	return Zero
}
