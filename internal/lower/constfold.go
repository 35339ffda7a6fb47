package lower

import (
	"math"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// foldConstBinary evaluates op over two literal operands at lowering time,
// the same short-circuit the teacher's ssa builder applies before emitting
// an instruction for a binary op whose inputs are already known constants.
// ok is false when op has no constant-folding rule (float comparisons,
// anything operating on a non-literal) and the caller must emit real
// instructions instead.
func foldConstBinary(op micro.MicroOp, lhs, rhs frontend.Const, t frontend.Type) (frontend.Const, bool) {
	if t.Float {
		return foldConstBinaryFloat(op, lhs, rhs, t)
	}

	a, b := lhs.IntValue, rhs.IntValue
	mask := micro.MaskForWidth(t.Width)
	var r uint64
	switch op {
	case micro.OpAdd:
		r = a + b
	case micro.OpSub:
		r = a - b
	case micro.OpMulSigned, micro.OpMulUnsigned:
		r = a * b
	case micro.OpAnd:
		r = a & b
	case micro.OpOr:
		r = a | b
	case micro.OpXor:
		r = a ^ b
	case micro.OpShl:
		r = a << (b & 63)
	case micro.OpShr:
		r = a >> (b & 63)
	default:
		return frontend.Const{}, false
	}
	return frontend.Const{Type: t, IntValue: r & mask}, true
}

func foldConstBinaryFloat(op micro.MicroOp, lhs, rhs frontend.Const, t frontend.Type) (frontend.Const, bool) {
	a := floatFromBits(lhs.IntValue, t.Width)
	b := floatFromBits(rhs.IntValue, t.Width)
	var r float64
	switch op {
	case micro.OpFAdd:
		r = a + b
	case micro.OpFSub:
		r = a - b
	case micro.OpFMul:
		r = a * b
	case micro.OpFDiv:
		r = a / b
	default:
		return frontend.Const{}, false
	}
	return frontend.Const{Type: t, IntValue: bitsFromFloat(r, t.Width)}, true
}

func floatFromBits(bits uint64, w micro.MicroOpBits) float64 {
	if w == micro.B32 {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func bitsFromFloat(v float64, w micro.MicroOpBits) uint64 {
	if w == micro.B32 {
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}
