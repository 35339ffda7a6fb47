package backend

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/lower"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestLinkConcatenatesInSymbolOrderRegardlessOfInputOrder(t *testing.T) {
	f := NewFacade(nil)
	symA := f.DefineSymbol("a", x64.SymbolFunction)
	symB := f.DefineSymbol("b", x64.SymbolFunction)

	fnA := &CompiledFunction{Symbol: symA, Code: []byte{0xAA}}
	fnB := &CompiledFunction{Symbol: symB, Code: []byte{0xBB, 0xBB}}

	linked, err := f.Link([]*CompiledFunction{fnB, fnA})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xBB}, linked.Image)
	require.Equal(t, FunctionLayout{Offset: 0, Size: 1}, linked.Functions[symA])
	require.Equal(t, FunctionLayout{Offset: 1, Size: 2}, linked.Functions[symB])
}

func TestLinkPatchesRel32CallRelocation(t *testing.T) {
	f := NewFacade(nil)
	caller := f.DefineSymbol("caller", x64.SymbolFunction)
	callee := f.DefineSymbol("callee", x64.SymbolFunction)

	// caller: call rel32 placeholder (5 bytes) then ret; callee: ret.
	callerCode := []byte{0xE8, 0, 0, 0, 0, 0xC3}
	fnCaller := &CompiledFunction{
		Symbol: caller,
		Code:   callerCode,
		Relocations: []micro.Relocation{
			{SiteOffset: 1, SymbolIdx: callee, Kind: micro.RelocAMD64REL32},
		},
	}
	fnCallee := &CompiledFunction{Symbol: callee, Code: []byte{0xC3}}

	linked, err := f.Link([]*CompiledFunction{fnCaller, fnCallee})
	require.NoError(t, err)

	// caller occupies [0,6), callee at offset 6. disp = target - (site+4).
	site := uint32(1)
	disp := int32(6) - int32(site+4)
	got := int32(binary.LittleEndian.Uint32(linked.Image[site : site+4]))
	require.Equal(t, disp, got)
}

func TestLinkPatchesAddr64Relocation(t *testing.T) {
	f := NewFacade(nil)
	sym := f.DefineSymbol("fn", x64.SymbolFunction)
	dataSym := f.DefineSymbol("data", x64.SymbolConstant)

	code := make([]byte, 10) // movabs placeholder at offset 2, 8 bytes
	fn := &CompiledFunction{
		Symbol: sym,
		Code:   code,
		Relocations: []micro.Relocation{
			{SiteOffset: 2, SymbolIdx: dataSym, Kind: micro.RelocAMD64ADDR64},
		},
	}

	linked, err := f.Link([]*CompiledFunction{fn})
	require.NoError(t, err)
	// data symbol was never assigned a value by Link (no function defines
	// it), so its resolved address is the zero value.
	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(linked.Image[2:10]))
}

func TestLinkRejectsOutOfRangeRel32Displacement(t *testing.T) {
	f := NewFacade(nil)
	near := f.DefineSymbol("near", x64.SymbolFunction)
	far := f.DefineSymbol("far", x64.SymbolFunction)
	// Simulate a callee resolved far outside rel32 range without allocating
	// an actual multi-gigabyte image: patchRelocation only reads the
	// symbol's already-resolved Value, so set it directly.
	f.setSymbolValue(far, int64(1)<<40)

	fnNear := &CompiledFunction{
		Symbol: near,
		Code:   []byte{0xE8, 0, 0, 0, 0},
		Relocations: []micro.Relocation{
			{SiteOffset: 1, SymbolIdx: far, Kind: micro.RelocAMD64REL32},
		},
	}

	_, err := f.Link([]*CompiledFunction{fnNear})
	require.Error(t, err)
}

func TestLinkBuildsJumpTableRodataAndPatchesEntries(t *testing.T) {
	f := NewFacade(nil)
	sym := f.DefineSymbol("switcher", x64.SymbolFunction)
	tableSym := f.DefineSymbol("switcher$table", x64.SymbolConstant)

	code := []byte{0xC3} // single-byte ret, label offset 0
	fn := &CompiledFunction{
		Symbol: sym,
		Code:   code,
		JumpTables: []lower.JumpTableRequest{
			{TableSym: tableSym, Min: 0, Entries: []micro.Label{0}},
		},
		LabelOffsets: map[micro.Label]uint32{0: 0},
	}

	linked, err := f.Link([]*CompiledFunction{fn})
	require.NoError(t, err)
	// image = 1 byte of code + 4 bytes of rodata (one rel32 entry).
	require.Len(t, linked.Image, 5)
	delta := int32(binary.LittleEndian.Uint32(linked.Image[1:5]))
	require.Equal(t, int32(0)-int32(1), delta) // target(0) - base(1)
}

func TestLinkErrorsOnUnplacedJumpTableLabel(t *testing.T) {
	f := NewFacade(nil)
	sym := f.DefineSymbol("switcher", x64.SymbolFunction)
	tableSym := f.DefineSymbol("switcher$table", x64.SymbolConstant)

	fn := &CompiledFunction{
		Symbol: sym,
		Code:   []byte{0xC3},
		JumpTables: []lower.JumpTableRequest{
			{TableSym: tableSym, Min: 0, Entries: []micro.Label{5}},
		},
		LabelOffsets: map[micro.Label]uint32{},
	}

	_, err := f.Link([]*CompiledFunction{fn})
	require.Error(t, err)
}
