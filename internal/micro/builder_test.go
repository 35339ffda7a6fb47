package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderOrderSkipsErased(t *testing.T) {
	b := NewBuilder(Config{})
	r1 := b.Nop()
	r2 := b.Nop()
	r3 := b.Nop()
	b.Erase(r2)

	require.Equal(t, []Ref{r1, r3}, b.Order())
}

func TestBuilderLabelLifecycle(t *testing.T) {
	b := NewBuilder(Config{})
	l := b.CreateLabel()
	require.False(t, b.IsLabelPlaced(l))

	jmp := b.JumpToLabel(CondEq, B32, l)
	require.Equal(t, []Ref{jmp}, b.PendingJumps(l))

	placedRef := b.PlaceLabel(l)
	require.True(t, b.IsLabelPlaced(l))

	got, ok := b.LabelInstr(l)
	require.True(t, ok)
	require.Equal(t, placedRef, got)

	require.NoError(t, b.CheckAllLabelsPlaced())
}

func TestBuilderPlaceLabelTwicePanics(t *testing.T) {
	b := NewBuilder(Config{})
	l := b.CreateLabel()
	b.PlaceLabel(l)
	require.Panics(t, func() { b.PlaceLabel(l) })
}

func TestBuilderCheckAllLabelsPlacedFailsWhenUnplaced(t *testing.T) {
	b := NewBuilder(Config{})
	b.CreateLabel()
	require.Error(t, b.CheckAllLabelsPlaced())
}

func TestBuilderJumpToUnknownLabelPanics(t *testing.T) {
	b := NewBuilder(Config{})
	require.Panics(t, func() { b.JumpToLabel(CondAlways, B32, Label(42)) })
}

func TestBuilderOpsContiguous(t *testing.T) {
	b := NewBuilder(Config{})
	ref := b.LoadRegImm(Rax, B64, 7)
	ops := b.Ops(ref)
	require.Len(t, ops, 3)
	require.Equal(t, Rax, ops[0].Reg)
	require.Equal(t, B64, ops[1].Width)
	require.Equal(t, uint64(7), ops[2].ImmU64)
}

func TestBuilderDebugInfoGatedByConfig(t *testing.T) {
	off := NewBuilder(Config{DebugInfo: false})
	off.SetDebugInfo(DebugInfo{Line: 3})
	ref := off.Nop()
	_, ok := off.DebugInfo(ref)
	require.False(t, ok, "debug info must not be recorded when Config.DebugInfo is false")

	on := NewBuilder(Config{DebugInfo: true})
	on.SetDebugInfo(DebugInfo{Line: 3})
	ref = on.Nop()
	got, ok := on.DebugInfo(ref)
	require.True(t, ok)
	require.Equal(t, uint32(3), got.Line)

	on.ClearDebugInfo()
	ref2 := on.Nop()
	_, ok = on.DebugInfo(ref2)
	require.False(t, ok)
}

func TestBuilderJumpTableOperandShape(t *testing.T) {
	b := NewBuilder(Config{})
	l0 := b.CreateLabel()
	l1 := b.CreateLabel()

	ref := b.JumpTable(Rax, Rcx, Rdx, 9, []Label{l0, l1})
	ops := b.Ops(ref)
	require.Len(t, ops, 4)
	require.Equal(t, Rax, ops[0].Reg)
	require.Equal(t, Rcx, ops[1].Reg)
	require.Equal(t, Rdx, ops[2].Reg)
	require.Equal(t, uint32(9), ops[3].SymIndex)

	inst := b.Instr(ref)
	require.Equal(t, []uint32{uint32(l0), uint32(l1)}, inst.Targets)
}

func TestBuilderJumpTableNoTargetsLeavesNilSlice(t *testing.T) {
	b := NewBuilder(Config{})
	ref := b.JumpTable(Rax, Rcx, Rdx, 1, nil)
	require.Nil(t, b.Instr(ref).Targets)
}

func TestBuilderSpliceBeforeInsertsInOrder(t *testing.T) {
	b := NewBuilder(Config{})
	entry := b.Nop()
	ret := b.Ret()

	push := b.Push(Rbp)
	mov := b.LoadRegReg(Rbp, Rsp, B64)
	b.SpliceBefore(entry, []Ref{push, mov})

	require.Equal(t, []Ref{push, mov, entry, ret}, b.Order())
}

func TestBuilderRelocations(t *testing.T) {
	b := NewBuilder(Config{})
	b.AddRelocation(Relocation{SiteOffset: 4, SymbolIdx: 2, Kind: RelocAMD64REL32})
	require.Len(t, b.Relocations(), 1)
	require.Equal(t, RelocAMD64REL32, b.Relocations()[0].Kind)
}
