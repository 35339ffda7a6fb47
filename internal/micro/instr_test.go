package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpcodeIsTerminator(t *testing.T) {
	require.True(t, OpcodeRet.IsTerminator())
	require.True(t, OpcodeJumpCond.IsTerminator())
	require.True(t, OpcodeJumpTable.IsTerminator())
	require.False(t, OpcodeNop.IsTerminator())
	require.False(t, OpcodeCallLocal.IsTerminator())
}

func TestOpcodeIsCall(t *testing.T) {
	require.True(t, OpcodeCallLocal.IsCall())
	require.True(t, OpcodeCallExtern.IsCall())
	require.True(t, OpcodeCallIndirect.IsCall())
	require.False(t, OpcodeRet.IsCall())
}

func TestEmitFlagsHas(t *testing.T) {
	f := EmitLock | EmitOverflowChecked
	require.True(t, f.Has(EmitLock))
	require.True(t, f.Has(EmitOverflowChecked))
	require.False(t, f.Has(EmitCanEncode))
	require.True(t, f.Has(EmitLock|EmitOverflowChecked))
}

func TestImmI32SignExtends(t *testing.T) {
	op := MicroInstrOperand{ImmU64: 0xFFFFFFFF}
	require.Equal(t, int32(-1), op.ImmI32())
}

func TestMicroInstrErased(t *testing.T) {
	inst := &MicroInstr{}
	require.False(t, inst.Erased())
	inst.erased = true
	require.True(t, inst.Erased())
}
