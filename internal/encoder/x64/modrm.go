package x64

import (
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// regEnc is the 4-bit hardware encoding of a physical register: low 3 bits
// go into ModR/M.reg/.rm or SIB.index/.base; bit 3 is the REX extension
// bit. Grounded on the teacher's regEnc/regEncodings
// (instr_encoding.go).
type regEnc byte

func (r regEnc) rexBit() byte    { return byte(r) >> 3 }
func (r regEnc) encoding() byte  { return byte(r) & 0x07 }
func fixedRegEnc(v byte) regEnc  { return regEnc(v) }

// encodeGPR maps a physical MicroReg (integer or float class) to its
// hardware encoding. Panics on a virtual register — the emit pass is
// required to have eliminated every virtual register beforehand (§8
// "No-virtuals-at-emit").
func encodeGPR(r micro.MicroReg) regEnc {
	if r.IsVirtual() {
		panic(errors.Errorf("x64: virtual register %s reached the encoder", r))
	}
	return regEnc(r.Index())
}

// legacyPrefixes enumerates the mandatory SSE/operand-size legacy prefix
// combinations the encoder emits ahead of the opcode bytes.
type legacyPrefixes byte

const (
	legacyPrefixesNone legacyPrefixes = iota
	legacyPrefixes0x66
	legacyPrefixes0xF2
	legacyPrefixes0xF3
	legacyPrefixes0x66F0 // LOCK + operand-size, for 16-bit atomic RMW
	legacyPrefixes0xF0   // LOCK alone
)

func (p legacyPrefixes) encode(buf *CodeBuffer) {
	switch p {
	case legacyPrefixesNone:
	case legacyPrefixes0x66:
		buf.EmitByte(0x66)
	case legacyPrefixes0xF2:
		buf.EmitByte(0xf2)
	case legacyPrefixes0xF3:
		buf.EmitByte(0xf3)
	case legacyPrefixes0x66F0:
		buf.EmitByte(0x66)
		buf.EmitByte(0xf0)
	case legacyPrefixes0xF0:
		buf.EmitByte(0xf0)
	default:
		panic("x64: invalid legacy prefix")
	}
}

// rexInfo packs whether REX.W must be set and whether a REX prefix must
// always be emitted even when otherwise it would encode to 0x40 with every
// extension bit clear (required for SPL/BPL/SIL/DIL byte-register access).
type rexInfo byte

const (
	rexFlagW      rexInfo = 0x01
	rexFlagAlways rexInfo = 0x02
)

func (ri rexInfo) setW() rexInfo    { return ri | rexFlagW }
func (ri rexInfo) clearW() rexInfo  { return ri &^ rexFlagW }
func (ri rexInfo) always() rexInfo  { return ri | rexFlagAlways }

const (
	rexBase byte = 0x40
	rexW         = rexBase | 0x08
)

// encode emits a REX prefix covering ModR/M.reg (r) and ModR/M.rm (rm)
// when required: 64-bit operation, R8-R15 touched anywhere, or the
// "always" flag is set (byte-register access to RSP/RBP/RSI/RDI, per
// §4.6's REX prefix rule).
func (ri rexInfo) encode(buf *CodeBuffer, r, rm regEnc) {
	var w byte
	if ri&rexFlagW != 0 {
		w = 1
	}
	rBit, bBit := r.rexBit(), rm.rexBit()
	rex := rexBase | w<<3 | rBit<<2 | bBit
	if rex != rexBase || ri&rexFlagAlways != 0 {
		buf.EmitByte(rex)
	}
}

// encodeForIndex emits REX covering reg (R), SIB.index (X) and SIB.base (B).
func (ri rexInfo) encodeForIndex(buf *CodeBuffer, r, index, base regEnc) {
	var w byte
	if ri&rexFlagW != 0 {
		w = 1
	}
	rex := rexBase | w<<3 | r.rexBit()<<2 | index.rexBit()<<1 | base.rexBit()
	if rex != rexBase || ri&rexFlagAlways != 0 {
		buf.EmitByte(rex)
	}
}

func encodeModRM(mod, reg, rm byte) byte { return mod<<6 | reg<<3 | rm }
func encodeSIB(scale, index, base byte) byte { return scale<<6 | index<<3 | base }

// writeOpcode emits opcodeNum bytes of opcodes, most-significant first —
// the 1/2/3-byte opcode forms (plain, 0x0F-prefixed, 0x0F38/0x0F3A-prefixed).
func writeOpcode(buf *CodeBuffer, opcode uint32, opcodeNum int) {
	for opcodeNum > 0 {
		opcodeNum--
		buf.EmitByte(byte(opcode >> (uint(opcodeNum) * 8)))
	}
}

func lower8WillSignExtendTo32(x uint32) bool {
	s := int32(x)
	return s == (s<<24)>>24
}

func lower32WillSignExtendTo64(x uint64) bool {
	s := int64(x)
	return s == int64(int32(s))
}

// encodeRegReg encodes a register-direct ModR/M byte (mod=11) for the
// `op reg, reg` family: opcode bytes, REX, then a single ModR/M byte
// (§4.6).
func encodeRegReg(buf *CodeBuffer, pfx legacyPrefixes, opcode uint32, opcodeNum int, r, rm regEnc, rex rexInfo) {
	pfx.encode(buf)
	rex.encode(buf, r, rm)
	writeOpcode(buf, opcode, opcodeNum)
	buf.EmitByte(encodeModRM(0b11, r.encoding(), rm.encoding()))
}

// amodeEncodable is the encoder-facing view of a memory operand the
// lowering/legalization layers build: a base register (or NoBase for
// RIP-relative), an optional scaled index, and a 32-bit displacement.
// Mirrors the teacher's `amode` (operands.go) generalized from a
// regalloc.VReg-keyed struct into one keyed by micro.MicroReg, and the
// spec's "Scaled index (AMC) encoding" rule (§4.6).
type amodeEncodable struct {
	base  micro.MicroReg
	index micro.MicroReg // micro.NoBase when absent
	scale byte           // 1, 2, 4, or 8; meaningless when index == NoBase
	disp  int32
	rip   bool // amodeRipRelative: base/index are ignored, disp is the 32-bit RIP offset
}

// encodeRegMem encodes the `op reg, mem` / `op mem, reg` shared ModR/M+SIB
// logic (§4.6: ModR/M chosen by displacement size; [base] with disp=0
// except Rbp/R13; [base+index*scale+disp] forces SIB; Rsp/R12 as base
// always force SIB; RIP-relative via mod=00,rm=101).
func encodeRegMem(buf *CodeBuffer, pfx legacyPrefixes, opcode uint32, opcodeNum int, r regEnc, m amodeEncodable, rex rexInfo) EncodeResult {
	const (
		modNoDisp    = 0b00
		modDisp8     = 0b01
		modDisp32    = 0b10
		sibMarkerRM  = 0b100
		sibNoIndex   = 0b100
	)

	if m.rip {
		pfx.encode(buf)
		rex.encode(buf, r, 0)
		writeOpcode(buf, opcode, opcodeNum)
		buf.EmitByte(encodeModRM(modNoDisp, r.encoding(), 0b101))
		buf.Emit4Bytes(uint32(m.disp))
		return Zero
	}

	if !m.index.Valid() || m.index == micro.NoBase {
		base := encodeGPR(m.base)
		pfx.encode(buf)
		rex.encode(buf, r, base)
		writeOpcode(buf, opcode, opcodeNum)

		baseIsRbpOrR13 := base.encoding() == 0b101
		baseIsRspOrR12 := base.encoding() == sibMarkerRM
		short := lower8WillSignExtendTo32(uint32(m.disp))

		switch {
		case m.disp == 0 && !baseIsRbpOrR13:
			buf.EmitByte(encodeModRM(modNoDisp, r.encoding(), base.encoding()))
			if baseIsRspOrR12 {
				buf.EmitByte(encodeSIB(0, sibNoIndex, base.encoding()))
			}
		case short:
			buf.EmitByte(encodeModRM(modDisp8, r.encoding(), base.encoding()))
			if baseIsRspOrR12 {
				buf.EmitByte(encodeSIB(0, sibNoIndex, base.encoding()))
			}
			buf.EmitByte(byte(m.disp))
		default:
			buf.EmitByte(encodeModRM(modDisp32, r.encoding(), base.encoding()))
			if baseIsRspOrR12 {
				buf.EmitByte(encodeSIB(0, sibNoIndex, base.encoding()))
			}
			buf.Emit4Bytes(uint32(m.disp))
		}
		return Zero
	}

	// AMC form: [base + index*scale + disp].
	if m.index == micro.Rsp {
		return NotSupported // Rsp can never be a SIB index; caller must swap.
	}
	switch m.scale {
	case 1, 2, 4, 8:
	default:
		return NotSupported
	}
	base := encodeGPR(m.base)
	index := encodeGPR(m.index)
	pfx.encode(buf)
	rex.encodeForIndex(buf, r, index, base)
	writeOpcode(buf, opcode, opcodeNum)

	shiftBits := scaleToShift(m.scale)
	baseIsRbpOrR13 := base.encoding() == 0b101
	short := lower8WillSignExtendTo32(uint32(m.disp))

	switch {
	case m.disp == 0 && !baseIsRbpOrR13:
		buf.EmitByte(encodeModRM(modNoDisp, r.encoding(), sibMarkerRM))
		buf.EmitByte(encodeSIB(shiftBits, index.encoding(), base.encoding()))
	case short:
		buf.EmitByte(encodeModRM(modDisp8, r.encoding(), sibMarkerRM))
		buf.EmitByte(encodeSIB(shiftBits, index.encoding(), base.encoding()))
		buf.EmitByte(byte(m.disp))
	default:
		buf.EmitByte(encodeModRM(modDisp32, r.encoding(), sibMarkerRM))
		buf.EmitByte(encodeSIB(shiftBits, index.encoding(), base.encoding()))
		buf.Emit4Bytes(uint32(m.disp))
	}
	return Zero
}

func scaleToShift(scale byte) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		panic("x64: illegal AMC scale")
	}
}

// swapRspIndexForScaleOne implements the §4.6 rule: "the base register Rsp
// is swapped with the index when the scale is 1, because Rsp cannot be an
// SIB index." Returns the possibly-swapped (base, index).
func swapRspIndexForScaleOne(base, index micro.MicroReg, scale byte) (micro.MicroReg, micro.MicroReg) {
	if scale == 1 && index == micro.Rsp {
		return index, base
	}
	return base, index
}
