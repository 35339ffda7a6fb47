package peephole

import (
	"github.com/xlang-toolchain/x64codegen/internal/micro"
	"github.com/xlang-toolchain/x64codegen/internal/optimize"
)

// ruleRemoveOverwrittenCopy: `mov r, a; mov r, b` (same width) drops the
// first when nothing observes r in between (§4.4 "remove_overwritten_copy").
var ruleRemoveOverwrittenCopy = Rule{
	Name:   "remove_overwritten_copy",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeLoadRegReg {
			return false
		}
		return nops[0].Reg == ops[0].Reg && nops[2].Width == ops[2].Width
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldCopyAddIntoLoadAddress: `mov r, b; add r, k` -> `lea r, [b + k]`
// (both widths 64-bit, register class matches, flags dead afterward).
var ruleFoldCopyAddIntoLoadAddress = Rule{
	Name:   "fold_copy_add_into_load_address",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		if ops[2].Width != micro.B64 {
			return false
		}
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeOpBinaryRegImm || nops[1].Op != micro.OpAdd {
			return false
		}
		if nops[0].Reg != ops[0].Reg || nops[2].Width != micro.B64 {
			return false
		}
		if !micro.IsSameRegisterClass(ops[0].Reg, ops[1].Reg) {
			return false
		}
		return areFlagsDeadAfterInstruction(ctx, next)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		dst, base, k := ops[0].Reg, ops[1].Reg, int32(nops[3].ImmU64)
		if !commitOpcode(ctx, ref, micro.OpcodeLoadAddrRegMem, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: dst},
			{Kind: micro.SlotReg, Reg: base},
			{Kind: micro.SlotWidth, Width: micro.B64},
			{Kind: micro.SlotOffset, Offset: k},
		}) {
			return false
		}
		ctx.View.From(next).EraseForward()
		return true
	},
}

// ruleFoldLoadAddrIntoNextMemOffset: `lea t, [b + k1]; op […, [t + k2] …]`
// -> `op […, [b + (k1+k2)] …]` when t is dead after the second instruction.
var ruleFoldLoadAddrIntoNextMemOffset = Rule{
	Name:   "fold_loadaddr_into_next_mem_offset",
	Target: micro.OpcodeLoadAddrRegMem,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		baseIdx, _, ok2 := getMemBaseOffsetOperandIndices(ninst.Opcode)
		if !ok2 || nops[baseIdx].Reg != t {
			return false
		}
		return isTempDeadForAddressFold(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		b, k1 := ops[1].Reg, ops[3].Offset
		next, _ := ctx.View.From(ref).Peek()
		ninst := ctx.Builder.Instr(next)
		nops := append([]micro.MicroInstrOperand(nil), ctx.Builder.Ops(next)...)
		baseIdx, offsetIdx, _ := getMemBaseOffsetOperandIndices(ninst.Opcode)
		nops[baseIdx] = micro.MicroInstrOperand{Kind: micro.SlotReg, Reg: b}
		nops[offsetIdx] = micro.MicroInstrOperand{Kind: micro.SlotOffset, Offset: k1 + nops[offsetIdx].Offset}
		if !commit(ctx, next, nops) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldLoadImmIntoNextBinary: when a LoadRegImm materialises a temp
// whose sole live use is the very next instruction's source operand,
// inline the immediate directly (masked to the destination width).
var ruleFoldLoadImmIntoNextBinary = Rule{
	Name:   "fold_loadimm_into_next_binary",
	Target: micro.OpcodeLoadRegImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeOpBinaryRegReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		imm := ops[2].ImmU64 & micro.MaskForWidth(ops[1].Width)
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		dst, op, w := nops[0].Reg, nops[2].Op, nops[3].Width
		if !commitOpcode(ctx, next, micro.OpcodeOpBinaryRegImm, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: dst},
			{Kind: micro.SlotOp, Op: op},
			{Kind: micro.SlotWidth, Width: w},
			{Kind: micro.SlotImm, ImmU64: imm},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleMergeRspAdjustmentsAtStart: two consecutive SP adjustments with the
// same operator merge, optionally across one neutral mov between
// non-SP registers (supplemented from original_source's
// MicroPeepholePass, per SPEC_FULL.md).
var ruleMergeRspAdjustmentsAtStart = Rule{
	Name:   "merge_rsp_adjustments_at_start",
	Target: micro.OpcodeOpBinaryRegImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		if ops[0].Reg != micro.Rsp || (ops[1].Op != micro.OpAdd && ops[1].Op != micro.OpSub) {
			return false
		}
		_, ok := nextSpAdjustment(ctx, ref, ops[1].Op)
		return ok
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := nextSpAdjustment(ctx, ref, ops[1].Op)
		nops := ctx.Builder.Ops(next)
		total := ops[3].ImmU64 + nops[3].ImmU64
		if !commit(ctx, ref, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: micro.Rsp},
			{Kind: micro.SlotOp, Op: ops[1].Op},
			{Kind: micro.SlotWidth, Width: ops[2].Width},
			{Kind: micro.SlotImm, ImmU64: total},
		}) {
			return false
		}
		ctx.View.EraseRef(next)
		return true
	},
}

// nextSpAdjustment finds a second OpBinaryRegImm on Rsp with the same op,
// allowing exactly one intervening LoadRegReg between two non-SP registers.
func nextSpAdjustment(ctx *Context, ref micro.Ref, op micro.MicroOp) (micro.Ref, bool) {
	it := ctx.View.From(ref).Next()
	if !it.Valid() {
		return micro.RefInvalid, false
	}
	inst, ops := it.Instr(), it.Ops()
	if inst.Opcode == micro.OpcodeLoadRegReg && ops[0].Reg != micro.Rsp && ops[1].Reg != micro.Rsp {
		it = it.Next()
		if !it.Valid() {
			return micro.RefInvalid, false
		}
		inst, ops = it.Instr(), it.Ops()
	}
	if inst.Opcode == micro.OpcodeOpBinaryRegImm && ops[0].Reg == micro.Rsp && ops[1].Op == op {
		return it.Current(), true
	}
	return micro.RefInvalid, false
}

// ruleFoldCopyOpCopyBack: `mov t, s; op t, …; mov s, t` -> `op s, …`.
var ruleFoldCopyOpCopyBack = Rule{
	Name:   "fold_copy_op_copy_back",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t, s := ops[0].Reg, ops[1].Reg
		it := ctx.View.From(ref).Next()
		if !it.Valid() || it.Instr().Opcode != micro.OpcodeOpBinaryRegReg || it.Ops()[0].Reg != t {
			return false
		}
		it2 := it.Next()
		if !it2.Valid() || it2.Instr().Opcode != micro.OpcodeLoadRegReg {
			return false
		}
		n2 := it2.Ops()
		return n2[0].Reg == s && n2[1].Reg == t && isCopyDeadAfterInstruction(ctx, it2.Current(), t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		s := ops[1].Reg
		it := ctx.View.From(ref).Next()
		opRef := it.Current()
		opOps := ctx.Builder.Ops(opRef)
		copyBackRef, _ := it.Peek()
		if !commit(ctx, opRef, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: s},
			{Kind: micro.SlotReg, Reg: opOps[1].Reg},
			{Kind: micro.SlotOp, Op: opOps[2].Op},
			{Kind: micro.SlotWidth, Width: opOps[3].Width},
		}) {
			return false
		}
		ctx.View.EraseRef(copyBackRef)
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleForwardCopyIntoNextBinarySource: forwards a copy's source directly
// into the next instruction's source operand when the copy's destination
// is otherwise dead, subsuming source forwarding with liveness.
var ruleForwardCopyIntoNextBinarySource = Rule{
	Name:   "forward_copy_into_next_binary_source",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeOpBinaryRegReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		s := ops[1].Reg
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		if !commit(ctx, next, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: nops[0].Reg},
			{Kind: micro.SlotReg, Reg: s},
			{Kind: micro.SlotOp, Op: nops[2].Op},
			{Kind: micro.SlotWidth, Width: nops[3].Width},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldLoadImmIntoNextCopy: `mov t, imm; mov dst, t` -> `mov dst, imm`
// when t is dead after the copy (§4.4 "fold_loadimm_into_next_copy").
var ruleFoldLoadImmIntoNextCopy = Rule{
	Name:   "fold_loadimm_into_next_copy",
	Target: micro.OpcodeLoadRegImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeLoadRegReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		dst, w := nops[0].Reg, nops[2].Width
		imm := ops[2].ImmU64 & micro.MaskForWidth(w)
		if !commitOpcode(ctx, next, micro.OpcodeLoadRegImm, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: dst},
			{Kind: micro.SlotWidth, Width: w},
			{Kind: micro.SlotImm, ImmU64: imm},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldLoadImmIntoNextCompare: `mov t, imm; cmp a, t` -> `cmp a, imm`
// when t is dead after the compare (§4.4 "fold_loadimm_into_next_compare").
var ruleFoldLoadImmIntoNextCompare = Rule{
	Name:   "fold_loadimm_into_next_compare",
	Target: micro.OpcodeLoadRegImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeCmpRegReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		lhs, w := nops[0].Reg, nops[2].Width
		imm := ops[2].ImmU64 & micro.MaskForWidth(w)
		if !commitOpcode(ctx, next, micro.OpcodeCmpRegImm, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: lhs},
			{Kind: micro.SlotImm, ImmU64: imm},
			{Kind: micro.SlotWidth, Width: w},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldLoadImmIntoNextMemStore: `mov t, imm; mov [base+k], t` ->
// `mov [base+k], imm` when t is dead afterward (§4.4
// "fold_loadimm_into_next_mem_store").
var ruleFoldLoadImmIntoNextMemStore = Rule{
	Name:   "fold_loadimm_into_next_mem_store",
	Target: micro.OpcodeLoadRegImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeLoadMemReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		base, w, offset := nops[0].Reg, nops[2].Width, nops[3].Offset
		imm := ops[2].ImmU64 & micro.MaskForWidth(w)
		if !commitOpcode(ctx, next, micro.OpcodeLoadMemImm, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: base},
			{Kind: micro.SlotWidth, Width: w},
			{Kind: micro.SlotOffset, Offset: offset},
			{Kind: micro.SlotImm, ImmU64: imm},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldAdjacentMemImm32Stores: two adjacent 32-bit immediate stores to
// [base+o] and [base+o+4] coalesce into one 64-bit store at [base+o] (§4.4
// "fold_adjacent_memimm32_stores"). The encoder's mem-imm form is `mov
// r/m64, imm32` — the CPU always sign-extends that single 32-bit immediate
// to fill the upper half, so this only coalesces when the second store's
// value already equals the sign-extension of the first, i.e. the pair was
// always going to read back as one sign-extended 64-bit write.
var ruleFoldAdjacentMemImm32Stores = Rule{
	Name:   "fold_adjacent_memimm32_stores",
	Target: micro.OpcodeLoadMemImm,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		if ops[1].Width != micro.B32 {
			return false
		}
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeLoadMemImm || nops[1].Width != micro.B32 {
			return false
		}
		if nops[0].Reg != ops[0].Reg || nops[2].Offset != ops[2].Offset+4 {
			return false
		}
		low := uint32(ops[3].ImmU64)
		high := uint32(nops[3].ImmU64)
		var wantHigh uint32
		if low&0x80000000 != 0 {
			wantHigh = 0xffffffff
		}
		return high == wantHigh
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		next, _ := ctx.View.From(ref).Peek()
		low := ops[3].ImmU64 & micro.MaskForWidth(micro.B32)
		if !commit(ctx, ref, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: ops[0].Reg},
			{Kind: micro.SlotWidth, Width: micro.B64},
			{Kind: micro.SlotOffset, Offset: ops[2].Offset},
			{Kind: micro.SlotImm, ImmU64: low},
		}) {
			return false
		}
		ctx.View.EraseRef(next)
		return true
	},
}

// ruleForwardCopyIntoNextCompareSource: `mov t, s; cmp a, t` -> `cmp a, s`
// when t is otherwise dead, the compare counterpart of
// ruleForwardCopyIntoNextBinarySource (§4.4
// "forward_copy_into_next_compare_source").
var ruleForwardCopyIntoNextCompareSource = Rule{
	Name:   "forward_copy_into_next_compare_source",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t := ops[0].Reg
		next, ok := ctx.View.From(ref).Peek()
		if !ok {
			return false
		}
		ninst := ctx.Builder.Instr(next)
		nops := ctx.Builder.Ops(next)
		if ninst.Opcode != micro.OpcodeCmpRegReg || nops[1].Reg != t {
			return false
		}
		return isCopyDeadAfterInstruction(ctx, next, t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		s := ops[1].Reg
		next, _ := ctx.View.From(ref).Peek()
		nops := ctx.Builder.Ops(next)
		if !commit(ctx, next, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: nops[0].Reg},
			{Kind: micro.SlotReg, Reg: s},
			{Kind: micro.SlotWidth, Width: nops[2].Width},
		}) {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldCopyUnaryCopyBack: `mov t, s; op t; mov s, t` -> `op s`, the
// unary-op counterpart of ruleFoldCopyOpCopyBack (§4.4
// "fold_copy_unary_copy_back").
var ruleFoldCopyUnaryCopyBack = Rule{
	Name:   "fold_copy_unary_copy_back",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t, s := ops[0].Reg, ops[1].Reg
		it := ctx.View.From(ref).Next()
		if !it.Valid() || it.Instr().Opcode != micro.OpcodeOpUnaryReg || it.Ops()[0].Reg != t {
			return false
		}
		it2 := it.Next()
		if !it2.Valid() || it2.Instr().Opcode != micro.OpcodeLoadRegReg {
			return false
		}
		n2 := it2.Ops()
		return n2[0].Reg == s && n2[1].Reg == t && isCopyDeadAfterInstruction(ctx, it2.Current(), t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		s := ops[1].Reg
		it := ctx.View.From(ref).Next()
		opRef := it.Current()
		opOps := ctx.Builder.Ops(opRef)
		copyBackRef, _ := it.Peek()
		if !commit(ctx, opRef, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: s},
			{Kind: micro.SlotOp, Op: opOps[1].Op},
			{Kind: micro.SlotWidth, Width: opOps[2].Width},
		}) {
			return false
		}
		ctx.View.EraseRef(copyBackRef)
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleFoldCopyBackWithPreviousOp generalizes ruleFoldCopyOpCopyBack to
// tolerate one neutral mov (between two registers untouched by t or s)
// between the copy-in and the op, the same tolerance
// ruleMergeRspAdjustmentsAtStart allows between two SP adjustments (§4.4
// "fold_copy_back_with_previous_op", "mirror of the above when the
// copy-back appears after two earlier instructions").
var ruleFoldCopyBackWithPreviousOp = Rule{
	Name:   "fold_copy_back_with_previous_op",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		t, s := ops[0].Reg, ops[1].Reg
		it := ctx.View.From(ref).Next()
		if !it.Valid() {
			return false
		}
		if it.Instr().Opcode == micro.OpcodeLoadRegReg && it.Ops()[0].Reg != t && it.Ops()[0].Reg != s &&
			it.Ops()[1].Reg != t && it.Ops()[1].Reg != s {
			it = it.Next()
			if !it.Valid() {
				return false
			}
		} else {
			return false
		}
		if it.Instr().Opcode != micro.OpcodeOpBinaryRegReg || it.Ops()[0].Reg != t {
			return false
		}
		it2 := it.Next()
		if !it2.Valid() || it2.Instr().Opcode != micro.OpcodeLoadRegReg {
			return false
		}
		n2 := it2.Ops()
		return n2[0].Reg == s && n2[1].Reg == t && isCopyDeadAfterInstruction(ctx, it2.Current(), t)
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		s := ops[1].Reg
		neutral := ctx.View.From(ref).Next()
		it := neutral.Next()
		opRef := it.Current()
		opOps := ctx.Builder.Ops(opRef)
		copyBackRef, _ := it.Peek()
		if !commit(ctx, opRef, []micro.MicroInstrOperand{
			{Kind: micro.SlotReg, Reg: s},
			{Kind: micro.SlotReg, Reg: opOps[1].Reg},
			{Kind: micro.SlotOp, Op: opOps[2].Op},
			{Kind: micro.SlotWidth, Width: opOps[3].Width},
		}) {
			return false
		}
		ctx.View.EraseRef(copyBackRef)
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleCoalesceCopyInstruction: `mov dst, src` followed by a run of
// instructions that read dst before anything redefines it replaces every
// such read with src directly and drops the copy, generalizing
// ruleForwardCopyIntoNextBinarySource/...CompareSource beyond a single
// following instruction (§4.4 "coalesce_copy_instruction"). It fails
// closed at the first barrier or redefinition of src in the window.
var ruleCoalesceCopyInstruction = Rule{
	Name:   "coalesce_copy_instruction",
	Target: micro.OpcodeLoadRegReg,
	Match: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		dst, src := ops[0].Reg, ops[1].Reg
		if dst == src {
			return false
		}
		uses, ok := collectForwardableUses(ctx, ref, dst, src)
		return ok && len(uses) > 0
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ops := ctx.Builder.Ops(ref)
		dst, src := ops[0].Reg, ops[1].Reg
		uses, ok := collectForwardableUses(ctx, ref, dst, src)
		if !ok || len(uses) == 0 {
			return false
		}
		allOK := true
		for _, u := range uses {
			inst := ctx.Builder.Instr(u)
			uops := append([]micro.MicroInstrOperand(nil), ctx.Builder.Ops(u)...)
			for _, idx := range useSlotIndices(inst, uops, dst) {
				uops[idx] = micro.MicroInstrOperand{Kind: micro.SlotReg, Reg: src}
			}
			if !commit(ctx, u, uops) {
				allOK = false
			}
		}
		if !allOK {
			return false
		}
		ctx.View.From(ref).EraseCurrent()
		return true
	},
}

// ruleCleanupNoOp removes any instruction the Optimization Oracle flags as
// a no-op after legalization (§4.4 "Cleanup").
var ruleCleanupNoOp = Rule{
	Name:   "cleanup_no_op",
	Target: Any,
	Match: func(ctx *Context, ref micro.Ref) bool {
		return optimize.IsNoOpEncoderInstruction(ctx.Builder.Instr(ref), ctx.Builder.Ops(ref))
	},
	Rewrite: func(ctx *Context, ref micro.Ref) bool {
		ctx.View.EraseRef(ref)
		return true
	},
}
