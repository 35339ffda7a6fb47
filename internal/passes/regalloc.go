package passes

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// allocatableInt is the configured ABI's general-purpose register pool,
// in allocation-preference order: caller-saved scratch registers first
// (cheapest for the prolog/epilog pass to leave untouched), then
// callee-saved registers, which PrologEpilogPass must then push/pop.
// Rsp is never allocatable; Rax and R11 are reserved as the allocator's
// scratch spill registers (intSpillScratch).
var allocatableInt = []micro.MicroReg{
	micro.Rcx, micro.Rdx, micro.R8, micro.R9, micro.R10,
	micro.Rbx, micro.Rsi, micro.Rdi, micro.R12, micro.R13, micro.R14, micro.R15,
}

// allocatableFloat mirrors allocatableInt for the XMM file; PhysFloat(0)
// and PhysFloat(1) are reserved as floatSpillScratch instead of pool
// members.
var allocatableFloat = []micro.MicroReg{
	micro.PhysFloat(2), micro.PhysFloat(3), micro.PhysFloat(4), micro.PhysFloat(5),
	micro.PhysFloat(6), micro.PhysFloat(7), micro.PhysFloat(8), micro.PhysFloat(9), micro.PhysFloat(10),
	micro.PhysFloat(11), micro.PhysFloat(12), micro.PhysFloat(13), micro.PhysFloat(14), micro.PhysFloat(15),
}

// intSpillScratch and floatSpillScratch are the fixed registers a spilled
// virtual is reloaded into immediately before, and stored back from
// immediately after, each instruction that references it (§4.8 step 1).
// Both entries of each pair are caller-saved, matching the teacher's
// convention of never needing a push/pop around a transient scratch use.
// An instruction referencing more than two distinct spilled virtuals of
// the same class (only possible through OpTernaryRegRegReg) runs out of
// scratch slots; the third reference reuses slot 0 and a warning is
// logged rather than silently aliasing without comment.
var intSpillScratch = []micro.MicroReg{micro.Rax, micro.R11}
var floatSpillScratch = []micro.MicroReg{micro.PhysFloat(0), micro.PhysFloat(1)}

const spillSlotSize = 8

// RegisterAllocationPass replaces virtual registers with physical ones per
// the configured call convention, spilling overflow virtuals to stack
// slots (§4.8 step 1). Grounded on the teacher's regalloc.Allocator
// assign-by-first-appearance strategy (backend/regalloc/regalloc.go),
// simplified from its live-range-graph coloring down to a single linear
// pass appropriate for straight-line micro IR that has not yet been
// scheduled into basic blocks. A spilled virtual never occupies a
// register across more than one instruction: every reference is reloaded
// from its stack slot right before the instruction runs and stored back
// right after, via LoadRegMem/LoadMemReg (EncodeFloatLoadRegMem/
// EncodeFloatLoadMemReg for the float class, per internal/encoder/x64's
// class-dispatched encoding of those two opcodes).
type RegisterAllocationPass struct{}

func (p *RegisterAllocationPass) Name() string { return "register-allocation" }

func (p *RegisterAllocationPass) Run(ctx *Context) (bool, error) {
	assignInt := map[micro.MicroReg]micro.MicroReg{}
	assignFloat := map[micro.MicroReg]micro.MicroReg{}
	spillOffset := map[micro.MicroReg]int32{}
	nextInt, nextFloat := 0, 0
	var nextSpillBytes uint32
	clobbered := map[micro.MicroReg]bool{}
	changed := false

	// classify resolves r to either an already- or newly-assigned physical
	// register, or records (on first sight) the stack slot a virtual that
	// overflowed its class's pool spills to.
	classify := func(r micro.MicroReg) (phys micro.MicroReg, spilled bool) {
		if r.Class() == micro.RegClassVirtFloat {
			if phys, ok := assignFloat[r]; ok {
				return phys, false
			}
			if nextFloat < len(allocatableFloat) {
				phys := allocatableFloat[nextFloat]
				nextFloat++
				assignFloat[r] = phys
				if micro.CalleeSaved[phys] {
					clobbered[phys] = true
				}
				return phys, false
			}
			if _, ok := spillOffset[r]; !ok {
				nextSpillBytes += spillSlotSize
				spillOffset[r] = -(int32(ctx.LocalsFrameSize) + int32(nextSpillBytes))
			}
			return micro.Invalid, true
		}
		if phys, ok := assignInt[r]; ok {
			return phys, false
		}
		if nextInt < len(allocatableInt) {
			phys := allocatableInt[nextInt]
			nextInt++
			assignInt[r] = phys
			if micro.CalleeSaved[phys] {
				clobbered[phys] = true
			}
			return phys, false
		}
		if _, ok := spillOffset[r]; !ok {
			nextSpillBytes += spillSlotSize
			spillOffset[r] = -(int32(ctx.LocalsFrameSize) + int32(nextSpillBytes))
		}
		return micro.Invalid, true
	}

	v := micro.NewView(ctx.Builder)
	for it := v.Begin(); it.Valid(); it = it.Next() {
		ref := it.Current()
		ops := ctx.Builder.Ops(ref)

		scratchFor := map[micro.MicroReg]micro.MicroReg{}
		intUsed, floatUsed := 0, 0
		var reloads, stores []micro.Ref

		for i, op := range ops {
			if op.Kind != micro.SlotReg || !op.Reg.IsVirtual() {
				continue
			}
			phys, spilled := classify(op.Reg)
			if !spilled {
				v.PatchOperand(ref, i, micro.MicroInstrOperand{Kind: micro.SlotReg, Reg: phys})
				changed = true
				continue
			}

			scratch, seen := scratchFor[op.Reg]
			if !seen {
				isFloat := op.Reg.Class() == micro.RegClassVirtFloat
				pool := intSpillScratch
				idx := &intUsed
				if isFloat {
					pool = floatSpillScratch
					idx = &floatUsed
				}
				if *idx >= len(pool) && ctx.Log != nil {
					ctx.Log.WithField("virtual", op.Reg.String()).
						Warn("register-allocation: more than two distinct spilled virtuals of one class referenced by a single instruction; reusing a scratch register")
				}
				scratch = pool[*idx%len(pool)]
				*idx++
				scratchFor[op.Reg] = scratch

				offset := spillOffset[op.Reg]
				reloads = append(reloads, ctx.Builder.LoadRegMem(scratch, micro.Rbp, micro.B64, offset))
				stores = append(stores, ctx.Builder.LoadMemReg(micro.Rbp, scratch, micro.B64, offset))
			}
			v.PatchOperand(ref, i, micro.MicroInstrOperand{Kind: micro.SlotReg, Reg: scratch})
			changed = true
		}

		if len(reloads) > 0 {
			ctx.Builder.SpliceBefore(ref, reloads)
		}
		if len(stores) > 0 {
			spliceAfter(ctx.Builder, ref, stores)
		}
	}

	for r := range clobbered {
		ctx.ClobberedCalleeSaved = append(ctx.ClobberedCalleeSaved, r)
	}
	ctx.FrameSize = alignUp(nextSpillBytes, 16)
	return changed, nil
}

// spliceAfter inserts seq (already appended to the builder's arena, hence
// already at the tail of its emission order) immediately after ref. If ref
// is currently the last live instruction, seq is already in the right
// place and nothing further is needed.
func spliceAfter(b *micro.Builder, ref micro.Ref, seq []micro.Ref) {
	if len(seq) == 0 {
		return
	}
	order := b.Order()
	for i, r := range order {
		if r != ref {
			continue
		}
		if i+1 < len(order) {
			b.SpliceBefore(order[i+1], seq)
		}
		return
	}
}

func alignUp(n uint32, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}
