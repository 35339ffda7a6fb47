package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestPeepholePassAppliesDefaultCap(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.LoadRegReg(micro.Rax, micro.Rax, micro.B64) // identity copy, removable
	b.Ret()

	ctx := &Context{Builder: b, Encoder: x64.NewEncoder(0, nil)}
	pass := &PeepholePass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []micro.Opcode{micro.OpcodeRet}, opcodesOf(b))
}

func TestPeepholePassNoChangeOnCleanFunction(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.Ret()

	ctx := &Context{Builder: b, Encoder: x64.NewEncoder(0, nil)}
	pass := &PeepholePass{}
	changed, err := pass.Run(ctx)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestPeepholePassHonorsExplicitIterationCap(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	b.Ret()

	ctx := &Context{Builder: b, Encoder: x64.NewEncoder(0, nil), PeepholeIterationCap: 1}
	pass := &PeepholePass{}
	_, err := pass.Run(ctx)
	require.NoError(t, err)
}
