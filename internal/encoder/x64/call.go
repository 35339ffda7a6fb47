package x64

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// encodeCall emits a direct CALL rel32 with a placeholder displacement and
// records an AMD64_REL32 relocation against the callee symbol — the linker
// (or the in-process function-address patcher, for CallLocal) resolves it
// once every function's final text offset is known (§4.6).
func (e *Encoder) encodeCall(symIdx uint32) EncodeResult {
	e.Buf.EmitByte(0xe8)
	site := e.Buf.Len()
	e.Buf.Emit4Bytes(0)
	e.addRelocation(micro.RelocAMD64REL32, symIdx, site)
	return Zero
}

// encodeCallIndirect emits CALL r/m64 (FF /2) through a register holding a
// computed function pointer.
func (e *Encoder) encodeCallIndirect(r micro.MicroReg) EncodeResult {
	encodeRegReg(e.Buf, legacyPrefixesNone, 0xff, 1, fixedRegEnc(2), encodeGPR(r), rexInfo(0))
	return Zero
}

// encodeSymbolRelocAddr implements SymbolRelocAddr: materialise a symbol's
// address into dst via RIP-relative LEA plus an AMD64_REL32 relocation.
// offset is not applied: the relocation carries no addend, so dst receives
// the symbol's own address whatever offset is.
func (e *Encoder) encodeSymbolRelocAddr(dst micro.MicroReg, symIdx uint32, offset int32) EncodeResult {
	_ = offset
	return e.encodeLoadAddrSymbol(dst, symIdx)
}

// encodeSymbolRelocValue implements SymbolRelocValue: load an 8-byte
// absolute address (AMD64_ADDR64) into dst as a movabs immediate, used for
// symbols the configured ABI cannot reach with a 32-bit RIP-relative
// displacement (§3 Relocation kinds).
func (e *Encoder) encodeSymbolRelocValue(dst micro.MicroReg, w micro.MicroOpBits, symIdx uint32, offset int32) EncodeResult {
	_ = offset
	d := encodeGPR(dst)
	if d.rexBit() > 0 {
		e.Buf.EmitByte(rexW | 0x1)
	} else {
		e.Buf.EmitByte(rexW)
	}
	e.Buf.EmitByte(0xb8 | d.encoding())
	site := e.Buf.Len()
	e.Buf.Emit8Bytes(0)
	e.addRelocation(micro.RelocAMD64ADDR64, symIdx, site)
	return Zero
}
