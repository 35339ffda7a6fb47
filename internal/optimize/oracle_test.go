package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestIsNoOpEncoderInstructionNop(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeNop}
	require.True(t, IsNoOpEncoderInstruction(inst, nil))
}

func TestIsNoOpEncoderInstructionIdentityCopy(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeLoadRegReg}
	ops := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Reg: micro.Rax}, {Width: micro.B64}}
	require.True(t, IsNoOpEncoderInstruction(inst, ops))

	ops2 := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Reg: micro.Rcx}, {Width: micro.B64}}
	require.False(t, IsNoOpEncoderInstruction(inst, ops2))
}

func TestIsNoOpEncoderInstructionIdentityLea(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeLoadAddrRegMem}
	ops := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Reg: micro.Rax}, {}, {Offset: 0}}
	require.True(t, IsNoOpEncoderInstruction(inst, ops))

	ripOps := []micro.MicroInstrOperand{{Reg: micro.InstructionPointer}, {Reg: micro.InstructionPointer}, {}, {Offset: 0}}
	require.False(t, IsNoOpEncoderInstruction(inst, ripOps))
}

func TestIsNoOpEncoderInstructionSelfExchange(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeOpBinaryRegReg}
	ops := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Reg: micro.Rax}, {Op: micro.OpExchange}}
	require.True(t, IsNoOpEncoderInstruction(inst, ops))

	ops2 := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Reg: micro.Rax}, {Op: micro.OpAdd}}
	require.False(t, IsNoOpEncoderInstruction(inst, ops2))
}

func TestIsNoOpEncoderInstructionIdentityImmediate(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeOpBinaryRegImm}
	ops := []micro.MicroInstrOperand{{Reg: micro.Rax}, {Op: micro.OpAdd}, {Width: micro.B64}, {ImmU64: 0}}
	require.True(t, IsNoOpEncoderInstruction(inst, ops))
}

func TestIsNoOpEncoderInstructionDefaultFalse(t *testing.T) {
	inst := &micro.MicroInstr{Opcode: micro.OpcodeRet}
	require.False(t, IsNoOpEncoderInstruction(inst, nil))
}

func TestViolatesEncoderConformanceDelegatesToCanEncode(t *testing.T) {
	enc := x64.NewEncoder(0, nil)
	inst := &micro.MicroInstr{Opcode: micro.OpcodeRet}
	require.False(t, ViolatesEncoderConformance(enc, inst, nil))

	badInst := &micro.MicroInstr{Opcode: micro.Opcode(255)}
	require.True(t, ViolatesEncoderConformance(enc, badInst, nil))
}

func TestIsLocalDataflowBarrier(t *testing.T) {
	require.True(t, IsLocalDataflowBarrier(&micro.MicroInstr{Opcode: micro.OpcodeLabel}))
	require.True(t, IsLocalDataflowBarrier(&micro.MicroInstr{Opcode: micro.OpcodeCallExtern}))
	require.True(t, IsLocalDataflowBarrier(&micro.MicroInstr{Opcode: micro.OpcodeRet}))
	require.False(t, IsLocalDataflowBarrier(&micro.MicroInstr{Opcode: micro.OpcodeNop}))
}

func TestIsSameRegisterClassReexport(t *testing.T) {
	require.True(t, IsSameRegisterClass(micro.Rax, micro.Rbx))
	require.False(t, IsSameRegisterClass(micro.Rax, micro.PhysFloat(0)))
}
