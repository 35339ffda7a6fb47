package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestDefineSymbolDedupsByName(t *testing.T) {
	f := NewFacade(nil)
	a := f.DefineSymbol("foo", x64.SymbolFunction)
	b := f.DefineSymbol("foo", x64.SymbolFunction)
	c := f.DefineSymbol("bar", x64.SymbolExtern)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestSymbolsReturnsSortedSnapshot(t *testing.T) {
	f := NewFacade(nil)
	f.DefineSymbol("zeta", x64.SymbolFunction)
	f.DefineSymbol("alpha", x64.SymbolFunction)
	f.DefineSymbol("mid", x64.SymbolFunction)

	got := f.Symbols()
	require.Len(t, got, 3)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, []string{got[0].Name, got[1].Name, got[2].Name})
}

func TestCompileFunctionFromBuilderProducesEncodedCode(t *testing.T) {
	f := NewFacade(nil)
	sym := f.DefineSymbol("id", x64.SymbolFunction)

	b := micro.NewBuilder(micro.Config{})
	b.LoadRegReg(micro.Rax, micro.Rcx, micro.B64)
	b.Ret()

	compiled, err := f.CompileFunctionFromBuilder(sym, micro.CallConvWindowsX64, b, nil)
	require.NoError(t, err)
	require.Equal(t, sym, compiled.Symbol)
	require.NotEmpty(t, compiled.Code)
	// prolog/epilog always establishes rbp even for a trivial leaf function.
	require.Equal(t, byte(0x55), compiled.Code[0])
}

func TestCompileFunctionWithEmptyBodyProducesCode(t *testing.T) {
	f := NewFacade(nil)
	sym := f.DefineSymbol("square", x64.SymbolFunction)

	cfg := FunctionConfig{
		Symbol: sym,
		CC:     micro.CallConvWindowsX64,
	}
	compiled, err := f.CompileFunction(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, compiled.Code)
}

func TestCompileFunctionPropagatesPipelineError(t *testing.T) {
	f := NewFacade(nil)
	b := micro.NewBuilder(micro.Config{})
	b.CreateLabel() // never placed
	b.Ret()

	_, err := f.CompileFunctionFromBuilder(0, micro.CallConvWindowsX64, b, nil)
	require.Error(t, err)
}
