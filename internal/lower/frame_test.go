package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}

func TestFreshForPicksRegisterClassByType(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})

	i := f.freshFor(frontend.Type{Width: micro.B64})
	require.True(t, i.IsVirtual())
	require.False(t, i.Class().IsFloat())

	fl := f.freshFor(frontend.Type{Width: micro.B64, Float: true})
	require.True(t, fl.IsVirtual())
	require.True(t, fl.Class().IsFloat())
}

func TestFreshIntAndFloatCountersAreIndependentAndMonotonic(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})

	i0 := f.freshInt()
	f0 := f.freshFloat()
	i1 := f.freshInt()

	require.NotEqual(t, i0, i1)
	require.Equal(t, micro.VirtInt(0), i0)
	require.Equal(t, micro.VirtInt(1), i1)
	require.Equal(t, micro.VirtFloat(0), f0)
}

func TestBindLocalTracksMostNegativeOffset(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})

	f.BindLocal(0, -8)
	f.BindLocal(1, -24)
	f.BindLocal(2, -16)

	require.Equal(t, int32(-24), f.minLocalOffset)
	require.Equal(t, int32(-8), f.localOffset(0))
}

func TestLocalsFrameSizeZeroWhenNoNegativeOffsets(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})
	require.Equal(t, uint32(0), f.LocalsFrameSize())
}

func TestLocalsFrameSizeAlignsUpTo16(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})
	f.BindLocal(0, -20)
	require.Equal(t, uint32(32), f.LocalsFrameSize())
}

func TestBreakContextStackPushPopCurrent(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})

	outer := BreakContext{BreakLabel: f.B.CreateLabel(), ContinueLabel: f.B.CreateLabel()}
	inner := BreakContext{BreakLabel: f.B.CreateLabel(), ContinueLabel: f.B.CreateLabel()}
	f.pushBreakContext(outer)
	f.pushBreakContext(inner)
	require.Equal(t, inner, f.currentBreakContext())
	f.popBreakContext()
	require.Equal(t, outer, f.currentBreakContext())
}

func TestDeferStackRunsInReverseWithinAndAcrossScopes(t *testing.T) {
	b := micro.NewBuilder(micro.Config{})
	f := NewFrame(b, micro.CallConvWindowsX64, noopLogger{})

	var order []int
	record := func(i int) *frontend.Node {
		return &frontend.Node{Kind: frontend.NodeLiteral, Const: frontend.Const{IntValue: uint64(i)}}
	}

	f.pushScope()
	f.addDefer(record(1))
	f.addDefer(record(2))
	f.pushScope()
	f.addDefer(record(3))

	f.runDefersReverse(func(n *frontend.Node) *micro.MicroReg {
		order = append(order, int(n.Const.IntValue))
		return nil
	})

	require.Equal(t, []int{3, 2, 1}, order)
	f.popScope()
	f.popScope()
}
