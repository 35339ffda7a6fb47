package lower

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func TestFoldConstBinaryIntAdd(t *testing.T) {
	ty := frontend.Type{Width: micro.B32}
	r, ok := foldConstBinary(micro.OpAdd, frontend.Const{IntValue: 2}, frontend.Const{IntValue: 3}, ty)
	require.True(t, ok)
	require.Equal(t, uint64(5), r.IntValue)
}

func TestFoldConstBinaryIntMasksToWidth(t *testing.T) {
	ty := frontend.Type{Width: micro.B8}
	r, ok := foldConstBinary(micro.OpAdd, frontend.Const{IntValue: 0xFF}, frontend.Const{IntValue: 2}, ty)
	require.True(t, ok)
	require.Equal(t, uint64(1), r.IntValue)
}

func TestFoldConstBinaryShiftMasksCountTo63(t *testing.T) {
	ty := frontend.Type{Width: micro.B64}
	r, ok := foldConstBinary(micro.OpShl, frontend.Const{IntValue: 1}, frontend.Const{IntValue: 65}, ty)
	require.True(t, ok)
	require.Equal(t, uint64(2), r.IntValue) // shift count masked to 65&63=1
}

func TestFoldConstBinaryUnsupportedOpReturnsFalse(t *testing.T) {
	ty := frontend.Type{Width: micro.B32}
	_, ok := foldConstBinary(micro.OpDivSigned, frontend.Const{IntValue: 10}, frontend.Const{IntValue: 2}, ty)
	require.False(t, ok)
}

func TestFoldConstBinaryFloatAdd(t *testing.T) {
	ty := frontend.Type{Width: micro.B64, Float: true}
	a := frontend.Const{IntValue: math.Float64bits(1.5)}
	b := frontend.Const{IntValue: math.Float64bits(2.25)}
	r, ok := foldConstBinary(micro.OpFAdd, a, b, ty)
	require.True(t, ok)
	require.Equal(t, 3.75, math.Float64frombits(r.IntValue))
}

func TestFoldConstBinaryFloat32RoundTrips(t *testing.T) {
	ty := frontend.Type{Width: micro.B32, Float: true}
	a := frontend.Const{IntValue: uint64(math.Float32bits(1.5))}
	b := frontend.Const{IntValue: uint64(math.Float32bits(0.5))}
	r, ok := foldConstBinary(micro.OpFMul, a, b, ty)
	require.True(t, ok)
	require.Equal(t, float32(0.75), math.Float32frombits(uint32(r.IntValue)))
}

func TestFoldConstBinaryFloatUnsupportedOpReturnsFalse(t *testing.T) {
	ty := frontend.Type{Width: micro.B64, Float: true}
	_, ok := foldConstBinary(micro.OpAnd, frontend.Const{}, frontend.Const{}, ty)
	require.False(t, ok)
}
