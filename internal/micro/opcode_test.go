package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskForWidth(t *testing.T) {
	require.Equal(t, uint64(0xFF), MaskForWidth(B8))
	require.Equal(t, uint64(0xFFFF), MaskForWidth(B16))
	require.Equal(t, uint64(0xFFFFFFFF), MaskForWidth(B32))
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), MaskForWidth(B64))
}

func TestIsIdentityImmediate(t *testing.T) {
	cases := []struct {
		name string
		op   MicroOp
		imm  uint64
		w    MicroOpBits
		want bool
	}{
		{"add zero", OpAdd, 0, B32, true},
		{"add one", OpAdd, 1, B32, false},
		{"sub zero", OpSub, 0, B64, true},
		{"shl zero", OpShl, 0, B32, true},
		{"and all-ones b8", OpAnd, 0xFF, B8, true},
		{"and all-ones b32 with truncated imm", OpAnd, 0xFFFFFFFF, B32, true},
		{"and not all-ones", OpAnd, 0x0F, B8, false},
		{"mul has no identity", OpMulSigned, 1, B32, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, IsIdentityImmediate(c.op, c.imm, c.w))
		})
	}
}

func TestMicroCondInverseIsInvolution(t *testing.T) {
	conds := []MicroCond{CondEq, CondNE, CondL, CondLE, CondG, CondGE, CondB, CondBE, CondA, CondAE, CondO, CondNO, CondP, CondNP}
	for _, c := range conds {
		require.Equal(t, c, c.Inverse().Inverse(), "inverse of inverse of %v should be %v", c, c)
		require.NotEqual(t, c, c.Inverse())
	}
}

func TestMicroOpIsCommutative(t *testing.T) {
	require.True(t, OpAdd.IsCommutative())
	require.True(t, OpMulSigned.IsCommutative())
	require.False(t, OpSub.IsCommutative())
	require.False(t, OpDivSigned.IsCommutative())
}
