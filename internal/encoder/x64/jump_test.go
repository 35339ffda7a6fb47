package x64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestEncodeJumpRegIndirect(t *testing.T) {
	e := newEnc()
	res := e.encodeJumpReg(micro.Rax)
	require.Equal(t, Zero, res)
	// 0xFF /4, ModRM(reg=4,rm=rax=0) -> 0xE0
	require.Equal(t, []byte{0xFF, 0xE0}, e.Buf.Bytes())
}

func TestEncodeJumpCondRel32RecordsPendingJump(t *testing.T) {
	e := newEnc()
	res := e.encodeJumpCond(micro.CondEq, micro.B32, micro.Label(7))
	require.Equal(t, Zero, res)
	require.Equal(t, []byte{0x0F, 0x84, 0, 0, 0, 0}, e.Buf.Bytes())
	require.Len(t, e.PendingJumps(), 1)
	pj := e.PendingJumps()[0]
	require.Equal(t, uint32(2), pj.DispFieldOffset)
	require.Equal(t, uint32(6), pj.InstrEndOffset)
	require.Equal(t, micro.B32, pj.Width)
	require.Equal(t, micro.Label(7), pj.Label)
}

func TestEncodeJumpCondAlwaysUsesJmpOpcode(t *testing.T) {
	e := newEnc()
	e.encodeJumpCond(micro.CondAlways, micro.B32, micro.Label(1))
	require.Equal(t, byte(0xE9), e.Buf.Bytes()[0])
}

func TestEncodeJumpCondShortForm(t *testing.T) {
	e := newEnc()
	res := e.encodeJumpCond(micro.CondEq, micro.B8, micro.Label(7))
	require.Equal(t, Zero, res)
	require.Equal(t, []byte{0x74, 0}, e.Buf.Bytes())
	pj := e.PendingJumps()[0]
	require.Equal(t, micro.B8, pj.Width)
	require.Equal(t, uint32(1), pj.DispFieldOffset)
	require.Equal(t, uint32(2), pj.InstrEndOffset)
}

func TestEncodeJumpCondShortAlwaysUsesJmpShort(t *testing.T) {
	e := newEnc()
	e.encodeJumpCond(micro.CondAlways, micro.B8, micro.Label(1))
	require.Equal(t, byte(0xEB), e.Buf.Bytes()[0])
}

func TestEncodeJumpCondUnknownConditionRel32(t *testing.T) {
	e := newEnc()
	res := e.encodeJumpCond(micro.MicroCond(255), micro.B32, micro.Label(1))
	require.Equal(t, NotSupported, res)
}

func TestEncodeJumpTableEmitsFullDispatchSequence(t *testing.T) {
	e := newEnc()
	ops := []micro.MicroInstrOperand{
		{Reg: micro.Rcx},           // index
		{Reg: micro.Rax},           // scratch
		{Reg: micro.Rdx},           // disp32
		{SymIndex: 9},              // table symbol
	}
	res := e.encodeJumpTable(ops)
	require.Equal(t, Zero, res)
	require.NotEmpty(t, e.Buf.Bytes())
	// lea (7 bytes) + movsxd (3 bytes) + movsxd disp32 from SIB mem (4 bytes)
	// + add (3 bytes) + jmp reg (2 bytes): long enough to contain every step.
	require.GreaterOrEqual(t, len(e.Buf.Bytes()), 16)
	require.Len(t, e.Relocations(), 1)
	require.Equal(t, micro.RelocAMD64REL32, e.Relocations()[0].Kind)
	require.Equal(t, uint32(9), e.Relocations()[0].SymbolIdx)
	// the jmp reg sequence is always the final two bytes: FF /4 against scratch (rax=0) -> 0xE0
	bytes := e.Buf.Bytes()
	require.Equal(t, []byte{0xFF, 0xE0}, bytes[len(bytes)-2:])
}
