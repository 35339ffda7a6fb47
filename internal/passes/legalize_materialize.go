package passes

import (
	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// materialize inserts the copy res names ahead of ref and, when the copy
// targets a different register, patches the affected operand slot to point
// at the materialized register. It does not probe ref again afterwards; the
// result only reports whether anything was inserted.
func materialize(ctx *Context, v *micro.View, ref micro.Ref, res x64.EncodeResult) bool {
	ops := ctx.Builder.Ops(ref)
	regSlots := regOperandIndices(ops)
	if len(regSlots) == 0 {
		return false
	}

	var idx int
	var target micro.MicroReg
	switch res {
	case x64.Left2Reg:
		idx, target = regSlots[0], micro.Rax
	case x64.Right2Reg:
		idx, target = lastOr(regSlots, regSlots[0]), micro.R11
	case x64.Left2Rax:
		idx, target = regSlots[0], micro.Rax
	case x64.Right2Rcx:
		idx, target = lastOr(regSlots, regSlots[0]), micro.Rcx
	case x64.ForceZero32:
		idx, target = regSlots[0], ops[regSlots[0]].Reg
		w := micro.B32
		seq := []micro.Ref{ctx.Builder.LoadZeroExtRegReg(target, target, micro.B64, w)}
		ctx.Builder.SpliceBefore(ref, seq)
		return true
	default:
		if ctx.Log != nil {
			ctx.Log.WithField("result", res.String()).Warn("legalization: no generic materialization for this result")
		}
		return false
	}

	src := ops[idx].Reg
	w := micro.B64
	if idx+1 < len(ops) && ops[idx+1].Kind == micro.SlotWidth {
		w = ops[idx+1].Width
	}

	var seq []micro.Ref
	if src != target {
		seq = append(seq, ctx.Builder.LoadRegReg(target, src, w))
	}
	if res == x64.Left2Rax {
		seq = append(seq, divModRdxPrep(ctx, ref, w)...)
	}
	if len(seq) == 0 {
		return false
	}
	ctx.Builder.SpliceBefore(ref, seq)
	if src != target {
		v.PatchOperand(ref, idx, micro.MicroInstrOperand{Kind: micro.SlotReg, Reg: target})
	}
	return true
}

// divModRdxPrep returns the instruction(s) that must precede the idiv/div
// ref materializes into RAX: CDQ/CQO sign-extends RAX into RDX:RAX ahead of
// a signed divide, xor edx,edx zeroes it ahead of an unsigned one. Mul needs
// no such preparation — RDX is its output, not an input — so this only
// fires for the four Div*/Mod* ops (§4.6, §8 scenarios 5/6).
func divModRdxPrep(ctx *Context, ref micro.Ref, w micro.MicroOpBits) []micro.Ref {
	inst := ctx.Builder.Instr(ref)
	if inst.Opcode != micro.OpcodeOpBinaryRegReg {
		return nil
	}
	op := ctx.Builder.Ops(ref)[2].Op
	switch op {
	case micro.OpDivSigned, micro.OpModSigned:
		return []micro.Ref{ctx.Builder.OpUnaryReg(micro.OpSignExtendAccum, micro.Rax, w)}
	case micro.OpDivUnsigned, micro.OpModUnsigned:
		return []micro.Ref{ctx.Builder.ClearReg(micro.Rdx, w)}
	default:
		return nil
	}
}

func regOperandIndices(ops []micro.MicroInstrOperand) []int {
	var out []int
	for i, op := range ops {
		if op.Kind == micro.SlotReg {
			out = append(out, i)
		}
	}
	return out
}

func lastOr(xs []int, fallback int) int {
	if len(xs) < 2 {
		return fallback
	}
	return xs[1]
}
