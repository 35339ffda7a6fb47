package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackedRegRoundtrip(t *testing.T) {
	r := PhysInt(7)
	require.Equal(t, RegClassPhysInt, r.Class())
	require.Equal(t, uint32(7), r.Index())
	require.True(t, r.IsPhysical())
	require.False(t, r.IsVirtual())
}

func TestVirtualRegCounters(t *testing.T) {
	a := VirtInt(0)
	b := VirtInt(1)
	require.NotEqual(t, a, b)
	require.True(t, a.IsVirtual())
	require.True(t, a.Valid())
}

func TestInvalidRegNotValid(t *testing.T) {
	require.False(t, Invalid.Valid())
}

func TestIsSameRegisterClass(t *testing.T) {
	require.True(t, IsSameRegisterClass(Rax, Rbx))
	require.True(t, IsSameRegisterClass(Rax, VirtInt(3)))
	require.False(t, IsSameRegisterClass(Rax, PhysFloat(0)))
	require.False(t, IsSameRegisterClass(Rax, Invalid))
}

func TestRegStringNames(t *testing.T) {
	require.Equal(t, "rax", Rax.String())
	require.Equal(t, "rbp", Rbp.String())
	require.Equal(t, "xmm3", PhysFloat(3).String())
	require.Equal(t, "rip", InstructionPointer.String())
}

func TestCalleeSavedCoversRbpAndRbx(t *testing.T) {
	require.True(t, CalleeSaved[Rbp])
	require.True(t, CalleeSaved[Rbx])
	require.False(t, CalleeSaved[Rax])
}

func TestArgRegsWindowsX64Order(t *testing.T) {
	require.Equal(t, []MicroReg{Rcx, Rdx, R8, R9}, ArgIntRegs)
	require.Equal(t, Rax, RetIntReg)
}
