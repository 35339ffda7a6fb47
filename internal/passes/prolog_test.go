package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func opcodesOf(b *micro.Builder) []micro.Opcode {
	var out []micro.Opcode
	for _, ref := range b.Order() {
		out = append(out, b.Instr(ref).Opcode)
	}
	return out
}

func TestPrologEpilogPassBasicFrame(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.LoadRegImm(micro.Rax, micro.B64, 1)
	b.Ret()

	ctx := &Context{Builder: b, FrameSize: 0, LocalsFrameSize: 0}
	pass := &PrologEpilogPass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	got := opcodesOf(b)
	require.Equal(t, []micro.Opcode{
		micro.OpcodePush, micro.OpcodeLoadRegReg, // push rbp; mov rbp, rsp
		micro.OpcodeLoadRegImm,
		micro.OpcodePop, micro.OpcodeRet, // pop rbp; ret
	}, got)
}

func TestPrologEpilogPassReservesAlignedFrame(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.Ret()

	ctx := &Context{Builder: b, FrameSize: 8, LocalsFrameSize: 1}
	pass := &PrologEpilogPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	got := opcodesOf(b)
	require.Equal(t, []micro.Opcode{
		micro.OpcodePush, micro.OpcodeLoadRegReg, micro.OpcodeOpBinaryRegImm, // push rbp; mov rbp,rsp; sub rsp, frame
		micro.OpcodeOpBinaryRegImm, micro.OpcodePop, micro.OpcodeRet, // add rsp, frame; pop rbp; ret
	}, got)

	// FrameSize(8) + LocalsFrameSize(1) = 9, aligned up to 16.
	subRef := b.Order()[2]
	require.Equal(t, uint64(16), b.Ops(subRef)[3].ImmU64)
}

func TestPrologEpilogPassPushesClobberedCalleeSaved(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.Ret()

	ctx := &Context{Builder: b, ClobberedCalleeSaved: []micro.MicroReg{micro.Rbx, micro.R12}}
	pass := &PrologEpilogPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)

	order := b.Order()
	// push rbp; mov rbp,rsp; push rbx; push r12; ... pop r12; pop rbx; pop rbp; ret
	require.Equal(t, micro.OpcodePush, b.Instr(order[0]).Opcode)
	require.Equal(t, micro.Rbp, b.Ops(order[0])[0].Reg)
	require.Equal(t, micro.Rbx, b.Ops(order[2])[0].Reg)
	require.Equal(t, micro.R12, b.Ops(order[3])[0].Reg)

	n := len(order)
	require.Equal(t, micro.R12, b.Ops(order[n-4])[0].Reg)
	require.Equal(t, micro.Rbx, b.Ops(order[n-3])[0].Reg)
	require.Equal(t, micro.Rbp, b.Ops(order[n-2])[0].Reg)
	require.Equal(t, micro.OpcodeRet, b.Instr(order[n-1]).Opcode)
}

func TestPrologEpilogPassNoFrameMeansNoSubAdd(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.Ret()

	ctx := &Context{Builder: b}
	pass := &PrologEpilogPass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)
	for _, op := range opcodesOf(b) {
		require.NotEqual(t, micro.OpcodeOpBinaryRegImm, op)
	}
}

func TestPrologEpilogPassEmptyFunctionNoOp(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	ctx := &Context{Builder: b}
	pass := &PrologEpilogPass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.False(t, changed)
}
