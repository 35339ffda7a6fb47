package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// condCode is the 4-bit x86-64 condition-code field used by Jcc, SETcc and
// CMOVcc, grounded on the teacher's condFlag table (instr.go).
var condCode = map[micro.MicroCond]byte{
	micro.CondO: 0x0, micro.CondNO: 0x1,
	micro.CondB: 0x2, micro.CondAE: 0x3,
	micro.CondEq: 0x4, micro.CondNE: 0x5,
	micro.CondBE: 0x6, micro.CondA: 0x7,
	micro.CondL: 0xc, micro.CondGE: 0xd,
	micro.CondLE: 0xe, micro.CondG: 0xf,
	micro.CondP: 0xa, micro.CondNP: 0xb,
}

func (e *Encoder) encodeCmpRegReg(a, b micro.MicroReg, w micro.MicroOpBits) EncodeResult {
	opSizePrefix(w).encode(e.Buf)
	opcode := uint32(0x39)
	if w == micro.B8 {
		opcode = 0x38
	}
	encodeRegReg(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(b), encodeGPR(a), regWidthRex(w))
	return Zero
}

func (e *Encoder) encodeCmpRegImm(r micro.MicroReg, w micro.MicroOpBits, imm uint64) EncodeResult {
	return e.encodeAluRegImm(0x7, r, w, imm)
}

func (e *Encoder) encodeCmpMemReg(base, src micro.MicroReg, w micro.MicroOpBits, offset int32) EncodeResult {
	opSizePrefix(w).encode(e.Buf)
	opcode := uint32(0x39)
	if w == micro.B8 {
		opcode = 0x38
	}
	return encodeRegMem(e.Buf, legacyPrefixesNone, opcode, 1, encodeGPR(src), amodeEncodable{base: base, disp: offset}, regWidthRex(w))
}

func (e *Encoder) encodeCmpMemImm(base micro.MicroReg, w micro.MicroOpBits, offset int32, imm uint64) EncodeResult {
	return e.encodeAluMemImm(0x7, base, w, offset, imm)
}

// encodeSetCond encodes SETcc r/m8. Only the destination's low byte is
// written; its upper 56 bits are left as they were, and no zero-extension
// is emitted here.
func (e *Encoder) encodeSetCond(dst micro.MicroReg, cond micro.MicroCond) EncodeResult {
	cc, ok := condCode[cond]
	if !ok {
		return NotSupported
	}
	d := encodeGPR(dst)
	rex := rexInfo(0)
	if byteRegRexAlways(dst, micro.B8) || d.rexBit() > 0 {
		rex = rex.always()
	}
	encodeRegReg(e.Buf, legacyPrefixesNone, 0x0f90|uint32(cc), 2, fixedRegEnc(0), d, rex)
	return Zero
}

// encodeCmov encodes CMOVcc dst, src (§3's LoadCondRegReg).
func (e *Encoder) encodeCmov(dst, src micro.MicroReg, cond micro.MicroCond, w micro.MicroOpBits) EncodeResult {
	cc, ok := condCode[cond]
	if !ok {
		return NotSupported
	}
	opSizePrefix(w).encode(e.Buf)
	encodeRegReg(e.Buf, legacyPrefixesNone, 0x0f40|uint32(cc), 2, encodeGPR(dst), encodeGPR(src), regWidthRex(w))
	return Zero
}
