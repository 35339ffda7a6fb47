package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func newTestFrame() *Frame {
	b := micro.NewBuilder(micro.Config{})
	return NewFrame(b, micro.CallConvWindowsX64, noopLogger{})
}

func litNode(w micro.MicroOpBits, v uint64) *frontend.Node {
	return &frontend.Node{Kind: frontend.NodeLiteral, Type: frontend.Type{Width: w}, Const: frontend.Const{Type: frontend.Type{Width: w}, IntValue: v}}
}

func TestExprLiteralEmitsLoadRegImm(t *testing.T) {
	f := newTestFrame()
	dst := f.Expr(litNode(micro.B32, 42))

	order := f.B.Order()
	require.Len(t, order, 1)
	require.Equal(t, micro.OpcodeLoadRegImm, f.B.Instr(order[0]).Opcode)
	require.Equal(t, dst, f.B.Ops(order[0])[0].Reg)
	require.Equal(t, uint64(42), f.B.Ops(order[0])[2].ImmU64)
}

func TestExprLocalRefEmitsLoadRegMemOffRbp(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -8)
	n := &frontend.Node{Kind: frontend.NodeLocalRef, Type: frontend.Type{Width: micro.B64}, LocalIndex: 0}
	f.Expr(n)

	order := f.B.Order()
	require.Equal(t, micro.OpcodeLoadRegMem, f.B.Instr(order[0]).Opcode)
	require.Equal(t, micro.Rbp, f.B.Ops(order[0])[1].Reg)
	require.Equal(t, int32(-8), f.B.Ops(order[0])[3].Offset)
}

func TestExprBinaryFoldsTwoLiterals(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeBinary, Type: frontend.Type{Width: micro.B32}, Op: micro.OpAdd,
		Children: []*frontend.Node{litNode(micro.B32, 2), litNode(micro.B32, 3)},
	}
	f.Expr(n)

	// each literal child lowers to nothing (folding short-circuits before
	// Expr is ever called on them); only one LoadRegImm for the folded sum.
	order := f.B.Order()
	require.Len(t, order, 1)
	require.Equal(t, uint64(5), f.B.Ops(order[0])[2].ImmU64)
}

func TestExprBinaryNonLiteralEmitsBinaryRegReg(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -8)
	n := &frontend.Node{
		Kind: frontend.NodeBinary, Type: frontend.Type{Width: micro.B64}, Op: micro.OpAdd,
		Children: []*frontend.Node{
			{Kind: frontend.NodeLocalRef, Type: frontend.Type{Width: micro.B64}, LocalIndex: 0},
			litNode(micro.B64, 1),
		},
	}
	f.Expr(n)

	order := f.B.Order()
	require.Equal(t, micro.OpcodeLoadRegMem, f.B.Instr(order[0]).Opcode) // local load
	require.Equal(t, micro.OpcodeLoadRegImm, f.B.Instr(order[1]).Opcode) // literal 1
	require.Equal(t, micro.OpcodeOpBinaryRegReg, f.B.Instr(order[2]).Opcode)
}

func TestExprBinaryOverflowCheckedSetsFlag(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -8)
	n := &frontend.Node{
		Kind: frontend.NodeBinary, Type: frontend.Type{Width: micro.B64}, Op: micro.OpAdd, OverflowChecked: true,
		Children: []*frontend.Node{
			{Kind: frontend.NodeLocalRef, Type: frontend.Type{Width: micro.B64}, LocalIndex: 0},
			{Kind: frontend.NodeLocalRef, Type: frontend.Type{Width: micro.B64}, LocalIndex: 0},
		},
	}
	f.Expr(n)

	order := f.B.Order()
	binRef := order[len(order)-1]
	require.Equal(t, micro.EmitOverflowChecked, f.B.Instr(binRef).Flags)
}

func TestExprCompareEmitsCmpThenSetcc(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeCompare, Cond: micro.CondG,
		Children: []*frontend.Node{litNode(micro.B32, 1), litNode(micro.B32, 2)},
	}
	f.Expr(n)

	order := f.B.Order()
	var opcodes []micro.Opcode
	for _, ref := range order {
		opcodes = append(opcodes, f.B.Instr(ref).Opcode)
	}
	require.Contains(t, opcodes, micro.OpcodeCmpRegReg)
	require.Contains(t, opcodes, micro.OpcodeSetCondReg)
}

func TestExprThreeWayCompareIsBranchless(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeThreeWayCompare,
		Children: []*frontend.Node{litNode(micro.B32, 1), litNode(micro.B32, 2)},
	}
	f.Expr(n)

	for _, ref := range f.B.Order() {
		op := f.B.Instr(ref).Opcode
		require.NotEqual(t, micro.OpcodeJumpCond, op)
		require.NotEqual(t, micro.OpcodeJumpReg, op)
	}
}

func TestExprConditionalElidesBranchOnConstantTrue(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeConditional, Type: frontend.Type{Width: micro.B32},
		Cond_: litNode(micro.B32, 1),
		Then:  litNode(micro.B32, 10),
		Else:  litNode(micro.B32, 20),
	}
	dst := f.Expr(n)

	order := f.B.Order()
	require.Len(t, order, 1) // only the "then" literal load, no compare/jump
	require.Equal(t, uint64(10), f.B.Ops(order[0])[2].ImmU64)
	require.Equal(t, dst, f.B.Ops(order[0])[0].Reg)
}

func TestExprConditionalElidesBranchOnConstantFalse(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeConditional, Type: frontend.Type{Width: micro.B32},
		Cond_: litNode(micro.B32, 0),
		Then:  litNode(micro.B32, 10),
		Else:  litNode(micro.B32, 20),
	}
	f.Expr(n)

	order := f.B.Order()
	require.Len(t, order, 1)
	require.Equal(t, uint64(20), f.B.Ops(order[0])[2].ImmU64)
}

func TestExprConditionalRealBranchEmitsCmpAndBothArms(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -8)
	n := &frontend.Node{
		Kind: frontend.NodeConditional, Type: frontend.Type{Width: micro.B32},
		Cond_: &frontend.Node{Kind: frontend.NodeLocalRef, Type: frontend.Type{Width: micro.B32}, LocalIndex: 0},
		Then:  litNode(micro.B32, 10),
		Else:  litNode(micro.B32, 20),
	}
	f.Expr(n)

	var opcodes []micro.Opcode
	for _, ref := range f.B.Order() {
		opcodes = append(opcodes, f.B.Instr(ref).Opcode)
	}
	require.Contains(t, opcodes, micro.OpcodeCmpRegImm)
	require.Contains(t, opcodes, micro.OpcodeJumpCond)
	require.Contains(t, opcodes, micro.OpcodeLabel)
}

func TestExprCallLocalSpillsArgsAndReadsReturn(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeCall, Type: frontend.Type{Width: micro.B64},
		CalleeKind: frontend.CallLocalKind, CalleeName: 1, CalleeSymbol: 2,
		Args: []*frontend.Node{litNode(micro.B64, 7)},
	}
	f.Expr(n)

	var opcodes []micro.Opcode
	for _, ref := range f.B.Order() {
		opcodes = append(opcodes, f.B.Instr(ref).Opcode)
	}
	require.Contains(t, opcodes, micro.OpcodeCallLocal)
	require.Equal(t, micro.OpcodeLoadRegReg, opcodes[len(opcodes)-1]) // reading RetIntReg into dst
}

func TestExprCallVoidReturnsInvalid(t *testing.T) {
	f := newTestFrame()
	n := &frontend.Node{
		Kind: frontend.NodeCall, Type: frontend.Type{Width: micro.Zero},
		CalleeKind: frontend.CallLocalKind,
	}
	dst := f.Expr(n)
	require.Equal(t, micro.Invalid, dst)
}

func TestExprCallTooManyIntArgsPanics(t *testing.T) {
	f := newTestFrame()
	args := make([]*frontend.Node, len(micro.ArgIntRegs)+1)
	for i := range args {
		args[i] = litNode(micro.B64, uint64(i))
	}
	n := &frontend.Node{Kind: frontend.NodeCall, Type: frontend.Type{Width: micro.Zero}, CalleeKind: frontend.CallLocalKind, Args: args}
	require.Panics(t, func() { f.Expr(n) })
}

func TestExprMemberOnConstantStructShortCircuits(t *testing.T) {
	f := newTestFrame()
	structConst := frontend.Const{IsStruct: true, StructVal: map[string]frontend.Const{
		"x": {Type: frontend.Type{Width: micro.B32}, IntValue: 99},
	}}
	n := &frontend.Node{
		Kind: frontend.NodeMember, FieldName: "x",
		Children: []*frontend.Node{{Kind: frontend.NodeLiteral, Const: structConst}},
	}
	f.Expr(n)

	order := f.B.Order()
	require.Len(t, order, 1)
	require.Equal(t, micro.OpcodeLoadRegImm, f.B.Instr(order[0]).Opcode)
	require.Equal(t, uint64(99), f.B.Ops(order[0])[2].ImmU64)
}

func TestExprMemberOnStructValueLoadsFieldOffset(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -16)
	structType := frontend.Type{StructFields: map[string]frontend.StructField{
		"y": {Offset: 4, Type: frontend.Type{Width: micro.B32}},
	}}
	base := &frontend.Node{Kind: frontend.NodeLocalRef, Type: structType, LocalIndex: 0}
	n := &frontend.Node{Kind: frontend.NodeMember, FieldName: "y", Children: []*frontend.Node{base}}
	f.Expr(n)

	order := f.B.Order()
	last := order[len(order)-1]
	require.Equal(t, micro.OpcodeLoadRegMem, f.B.Instr(last).Opcode)
	require.Equal(t, int32(4), f.B.Ops(last)[3].Offset)
}

func TestExprMemberUnknownFieldPanics(t *testing.T) {
	f := newTestFrame()
	f.BindLocal(0, -8)
	base := &frontend.Node{Kind: frontend.NodeLocalRef, Type: frontend.Type{StructFields: map[string]frontend.StructField{}}, LocalIndex: 0}
	n := &frontend.Node{Kind: frontend.NodeMember, FieldName: "missing", Children: []*frontend.Node{base}}
	require.Panics(t, func() { f.Expr(n) })
}

func TestExprStmtKindPanics(t *testing.T) {
	f := newTestFrame()
	require.Panics(t, func() { f.Expr(&frontend.Node{Kind: frontend.NodeIf}) })
}
