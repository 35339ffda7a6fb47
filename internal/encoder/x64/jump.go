package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// encodeJumpReg encodes an indirect jump through a register: FF /4.
func (e *Encoder) encodeJumpReg(r micro.MicroReg) EncodeResult {
	encodeRegReg(e.Buf, legacyPrefixesNone, 0xff, 1, fixedRegEnc(4), encodeGPR(r), rexInfo(0))
	return Zero
}

// encodeJumpCond emits Jcc (or JMP, for CondAlways) with a placeholder
// 32-bit relative displacement and records a CpuJump patch site; the emit
// pass fixes up the displacement once every label's final offset is known
// (§3 CpuJump, §4.6's jump-patching rule). The displacement width follows
// w: B8 selects the rel8 short form (encodeJumpCondShort), any other width
// the rel32 form. No range check happens here; the emit pass reports an
// error when a rel8 target turns out to be out of reach.
func (e *Encoder) encodeJumpCond(cond micro.MicroCond, w micro.MicroOpBits, label micro.Label) EncodeResult {
	if w == micro.B8 {
		return e.encodeJumpCondShort(cond, label)
	}
	if cond == micro.CondAlways {
		e.Buf.EmitByte(0xe9)
	} else {
		cc, ok := condCode[cond]
		if !ok {
			return NotSupported
		}
		e.Buf.EmitByte(0x0f)
		e.Buf.EmitByte(0x80 | cc)
	}
	dispOffset := e.Buf.Len()
	e.Buf.Emit4Bytes(0) // patched later
	e.addPendingJump(CpuJump{
		DispFieldOffset: dispOffset,
		InstrEndOffset:  e.Buf.Len(),
		Width:           micro.B32,
		Label:           label,
	})
	return Zero
}

func (e *Encoder) encodeJumpCondShort(cond micro.MicroCond, label micro.Label) EncodeResult {
	if cond == micro.CondAlways {
		e.Buf.EmitByte(0xeb)
	} else {
		cc, ok := condCode[cond]
		if !ok {
			return NotSupported
		}
		e.Buf.EmitByte(0x70 | cc)
	}
	dispOffset := e.Buf.Len()
	e.Buf.EmitByte(0) // patched later
	e.addPendingJump(CpuJump{
		DispFieldOffset: dispOffset,
		InstrEndOffset:  e.Buf.Len(),
		Width:           micro.B8,
		Label:           label,
	})
	return Zero
}

// encodeJumpTable emits the indirect dispatch sequence for a switch lowered
// to a jump table (§4.6): load the table base via RIP-relative LEA, widen
// the selector index into a 64-bit byte offset, sign-extend the table entry
// into a 64-bit displacement, add it to the base, and jump through the
// result. The table's entries are 32-bit deltas from the table's own start,
// written into a separate rodata island that internal/backend's Link
// materialises from each function's JumpTableRequest list (MicroInstr.Targets
// is only read for diagnostics); internal/backend/link.go always places that rodata
// after the function's own code, so every entry's delta back into the
// function body is negative and must sign-extend, not zero-extend, into
// disp32 — a plain 32-bit load would clear the upper half and send the jump
// to the wrong address.
//
//	lea    scratch, [rip + table]
//	movsxd index64, index32
//	movsxd disp32,  [scratch + index64*4]
//	add    scratch, disp32
//	jmp    scratch
func (e *Encoder) encodeJumpTable(ops []micro.MicroInstrOperand) EncodeResult {
	index := ops[0].Reg
	scratch := ops[1].Reg
	disp32 := ops[2].Reg
	tableSym := ops[3].SymIndex

	if res := e.encodeLoadAddrSymbol(scratch, tableSym); res != Zero {
		return res
	}
	if res := e.encodeExtRegReg(index, index, micro.B64, micro.B32, true); res != Zero {
		return res
	}
	if res := e.encodeExtAmcRegMem(disp32, scratch, index, 4, micro.B64, micro.B32, 0, true); res != Zero {
		return res
	}
	if res := e.encodeBinaryRegReg(micro.OpAdd, scratch, disp32, micro.B64, micro.EmitNone); res != Zero {
		return res
	}
	return e.encodeJumpReg(scratch)
}

// encodeLoadAddrSymbol emits `lea dst, [rip + symbol]` and records an
// AMD64_REL32-kind relocation at the displacement field, used both by the
// jump-table prologue and by SymbolRelocAddr.
func (e *Encoder) encodeLoadAddrSymbol(dst micro.MicroReg, symIdx uint32) EncodeResult {
	d := encodeGPR(dst)
	rexInfo(0).setW().encode(e.Buf, d, 0)
	e.Buf.EmitByte(0x8d)
	e.Buf.EmitByte(encodeModRM(0b00, d.encoding(), 0b101))
	site := e.Buf.Len()
	e.Buf.Emit4Bytes(0)
	e.addRelocation(micro.RelocAMD64REL32, symIdx, site)
	return Zero
}
