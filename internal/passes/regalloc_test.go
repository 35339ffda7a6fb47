package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestRegisterAllocationPassAssignsByFirstAppearance(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	v0 := micro.VirtInt(0)
	v1 := micro.VirtInt(1)
	ref := b.OpBinaryRegReg(micro.OpAdd, v0, v1, micro.B64, micro.EmitNone)
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	ops := b.Ops(ref)
	require.Equal(t, allocatableInt[0], ops[0].Reg)
	require.Equal(t, allocatableInt[1], ops[1].Reg)
}

func TestRegisterAllocationPassReusesAssignmentForSameVirtual(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	v0 := micro.VirtInt(0)
	ref1 := b.LoadRegImm(v0, micro.B64, 1)
	ref2 := b.OpBinaryRegReg(micro.OpAdd, v0, v0, micro.B64, micro.EmitNone)
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, allocatableInt[0], b.Ops(ref1)[0].Reg)
	require.Equal(t, allocatableInt[0], b.Ops(ref2)[0].Reg)
	require.Equal(t, allocatableInt[0], b.Ops(ref2)[1].Reg)
}

func TestRegisterAllocationPassLeavesPhysicalRegistersUntouched(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ref := b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, micro.Rax, b.Ops(ref)[0].Reg)
	require.Equal(t, micro.Rcx, b.Ops(ref)[1].Reg)
}

func TestRegisterAllocationPassRecordsClobberedCalleeSavedRegister(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	var virtuals []micro.MicroReg
	for i := uint32(0); i < uint32(len(allocatableInt)); i++ {
		virtuals = append(virtuals, micro.VirtInt(i))
	}
	for _, v := range virtuals {
		b.LoadRegImm(v, micro.B64, 1)
	}
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	// allocatableInt includes callee-saved registers (Rbx, Rsi, Rdi, R12-R15);
	// exhausting the pool with one virtual per physical register must flag
	// every callee-saved one as clobbered for PrologEpilogPass to push/pop.
	require.Contains(t, ctx.ClobberedCalleeSaved, micro.Rbx)
}

func TestRegisterAllocationPassSpillsOverflowVirtualsAndSetsFrameSize(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	var overflowRef micro.Ref
	for i := uint32(0); i < uint32(len(allocatableInt))+1; i++ {
		ref := b.LoadRegImm(micro.VirtInt(i), micro.B64, 1)
		if i == uint32(len(allocatableInt)) {
			overflowRef = ref
		}
	}
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	// The overflow virtual spills past the pool; its resolved register is
	// the Rax scratch, and FrameSize reserves one 8-byte slot aligned up to
	// 16. Its single stack-backed reference is wrapped with a reload before
	// and a store-back after, rather than aliasing Rax across instructions.
	require.Equal(t, micro.Rax, b.Ops(overflowRef)[0].Reg)
	require.Equal(t, uint32(16), ctx.FrameSize)

	order := b.Order()
	var idx int
	for i, r := range order {
		if r == overflowRef {
			idx = i
			break
		}
	}
	require.Greater(t, idx, 0)
	require.Less(t, idx+1, len(order))

	reload := b.Instr(order[idx-1])
	require.Equal(t, micro.OpcodeLoadRegMem, reload.Opcode)
	reloadOps := b.Ops(order[idx-1])
	require.Equal(t, micro.Rax, reloadOps[0].Reg)
	require.Equal(t, micro.Rbp, reloadOps[1].Reg)
	require.Equal(t, int32(-8), reloadOps[3].Offset)

	store := b.Instr(order[idx+1])
	require.Equal(t, micro.OpcodeLoadMemReg, store.Opcode)
	storeOps := b.Ops(order[idx+1])
	require.Equal(t, micro.Rbp, storeOps[0].Reg)
	require.Equal(t, micro.Rax, storeOps[1].Reg)
	require.Equal(t, int32(-8), storeOps[3].Offset)
}

func TestRegisterAllocationPassDistinctSpillsInSameInstructionGetDistinctScratch(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	n := uint32(len(allocatableInt))
	for i := uint32(0); i < n; i++ {
		b.LoadRegImm(micro.VirtInt(i), micro.B64, 1)
	}
	spillA := micro.VirtInt(n)
	spillB := micro.VirtInt(n + 1)
	b.LoadRegImm(spillA, micro.B64, 2)
	b.LoadRegImm(spillB, micro.B64, 3)
	ref := b.OpBinaryRegReg(micro.OpAdd, spillA, spillB, micro.B64, micro.EmitNone)
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	ops := b.Ops(ref)
	require.Equal(t, micro.Rax, ops[0].Reg)
	require.Equal(t, micro.R11, ops[1].Reg)
	require.NotEqual(t, ops[0].Reg, ops[1].Reg)
}

func TestRegisterAllocationPassEmptyFunctionNoOp(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ctx := &Context{Builder: b}
	pass := &RegisterAllocationPass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.False(t, changed)
}
