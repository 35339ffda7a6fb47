package peephole

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestIsCopyDeadAfterInstructionTrueWhenRedefinedBeforeUse(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	b.LoadRegImm(micro.Rax, micro.B64, 9) // redefines rax without reading it
	b.Ret()

	ctx := newCtx(b)
	require.True(t, isCopyDeadAfterInstruction(ctx, ref, micro.Rax))
}

func TestIsCopyDeadAfterInstructionFalseWhenUsedLater(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	b.OpBinaryRegReg(micro.OpAdd, micro.Rdx, micro.Rax, micro.B64, micro.EmitNone)
	b.Ret()

	ctx := newCtx(b)
	require.False(t, isCopyDeadAfterInstruction(ctx, ref, micro.Rax))
}

func TestIsCopyDeadAfterInstructionFalseAcrossBarrier(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	l := b.CreateLabel()
	b.PlaceLabel(l)
	b.Ret()

	ctx := newCtx(b)
	require.False(t, isCopyDeadAfterInstruction(ctx, ref, micro.Rax))
}

func TestIsTempDeadForAddressFoldTrueAcrossCallWhenNotCalleeSaved(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	b.CallExtern(1, micro.CallConvWindowsX64, 1)
	b.Ret()

	ctx := newCtx(b)
	require.True(t, isTempDeadForAddressFold(ctx, ref, micro.Rax))
}

func TestAreFlagsDeadAfterInstructionTrueBeforeJumpCondSinceItIsABarrier(t *testing.T) {
	// JumpCond is itself a terminator, so isBarrier short-circuits before
	// the flag-consumer switch ever sees it.
	b := micro.NewBuilder(micro.Config{})
	ref := b.OpBinaryRegReg(micro.OpAdd, micro.Rax, micro.Rcx, micro.B64, micro.EmitNone)
	l := b.CreateLabel()
	b.JumpToLabel(micro.CondEq, micro.B32, l)
	b.PlaceLabel(l)
	b.Ret()

	ctx := newCtx(b)
	require.True(t, areFlagsDeadAfterInstruction(ctx, ref))
}

func TestAreFlagsDeadAfterInstructionTrueWhenClobberedFirst(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.OpBinaryRegReg(micro.OpAdd, micro.Rax, micro.Rcx, micro.B64, micro.EmitNone)
	b.OpBinaryRegReg(micro.OpSub, micro.Rdx, micro.Rcx, micro.B64, micro.EmitNone)
	b.Ret()

	ctx := newCtx(b)
	require.True(t, areFlagsDeadAfterInstruction(ctx, ref))
}

func TestGetMemBaseOffsetOperandIndices(t *testing.T) {
	base, off, ok := getMemBaseOffsetOperandIndices(micro.OpcodeLoadRegMem)
	require.True(t, ok)
	require.Equal(t, 1, base)
	require.Equal(t, 3, off)

	_, _, ok = getMemBaseOffsetOperandIndices(micro.OpcodeRet)
	require.False(t, ok)
}

func TestIsBarrier(t *testing.T) {
	require.True(t, isBarrier(&micro.MicroInstr{Opcode: micro.OpcodeLabel}))
	require.True(t, isBarrier(&micro.MicroInstr{Opcode: micro.OpcodeRet}))
	require.False(t, isBarrier(&micro.MicroInstr{Opcode: micro.OpcodeNop}))
}
