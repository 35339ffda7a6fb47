package peephole

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// regUses reports the register slots an instruction reads and writes,
// enough for the local liveness analyses below. It is intentionally
// conservative: memory-bearing opcodes' base/index registers count as
// uses, and any opcode this table doesn't recognise is treated as using
// every register slot it carries (safe default — it just suppresses a
// fold rather than risk one).
func regUses(inst *micro.MicroInstr, ops []micro.MicroInstrOperand, reg micro.MicroReg) (used, defined bool) {
	has := func(i int) bool { return i < len(ops) && ops[i].Reg == reg }
	switch inst.Opcode {
	case micro.OpcodeLoadRegReg:
		return has(1), has(0)
	case micro.OpcodeLoadRegImm:
		return false, has(0)
	case micro.OpcodeLoadRegMem:
		return has(1), has(0)
	case micro.OpcodeLoadMemReg:
		return has(0) || has(1), false
	case micro.OpcodeLoadAddrRegMem:
		return has(1), has(0)
	case micro.OpcodeOpBinaryRegReg:
		return has(0) || has(1), has(0)
	case micro.OpcodeOpBinaryRegImm:
		return has(0), has(0)
	case micro.OpcodeCmpRegReg:
		return has(0) || has(1), false
	case micro.OpcodeCmpRegImm:
		return has(0), false
	case micro.OpcodeSetCondReg:
		return false, has(0)
	default:
		for _, op := range ops {
			if op.Reg == reg {
				return true, true
			}
		}
		return false, false
	}
}

// isCopyDeadAfterInstruction implements §4.4's is_copy_dead_after_instruction:
// scanning forward from (and excluding) ref, true if the next reference to
// reg is a definition, or the function ends, before any use.
func isCopyDeadAfterInstruction(ctx *Context, ref micro.Ref, reg micro.MicroReg) bool {
	for it := ctx.View.From(ref).Next(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := it.Ops()
		if isBarrier(inst) {
			return false
		}
		used, defined := regUses(inst, ops, reg)
		if used {
			return false
		}
		if defined {
			return true
		}
	}
	return true
}

// isTempDeadForAddressFold implements is_temp_dead_for_address_fold: like
// isCopyDeadAfterInstruction, but a call across which reg is not
// callee-saved also counts as dead (the call's own epilogue convention
// makes the value unobservable afterward).
func isTempDeadForAddressFold(ctx *Context, ref micro.Ref, reg micro.MicroReg) bool {
	for it := ctx.View.From(ref).Next(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := it.Ops()
		if inst.Opcode.IsCall() && !micro.CalleeSaved[reg] {
			return true
		}
		if isBarrier(inst) {
			return false
		}
		used, defined := regUses(inst, ops, reg)
		if used {
			return false
		}
		if defined {
			return true
		}
	}
	return true
}

// areFlagsDeadAfterInstruction implements are_flags_dead_after_instruction:
// true if the next flag-sensitive consumer is itself a flag-defining
// instruction (so it clobbers before reading) or a barrier.
func areFlagsDeadAfterInstruction(ctx *Context, ref micro.Ref) bool {
	for it := ctx.View.From(ref).Next(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		if isBarrier(inst) {
			return true
		}
		switch inst.Opcode {
		case micro.OpcodeJumpCond, micro.OpcodeSetCondReg, micro.OpcodeLoadCondRegReg:
			return false
		case micro.OpcodeCmpRegReg, micro.OpcodeCmpRegImm, micro.OpcodeCmpMemReg, micro.OpcodeCmpMemImm,
			micro.OpcodeOpBinaryRegReg, micro.OpcodeOpBinaryRegImm, micro.OpcodeOpBinaryMemReg, micro.OpcodeOpBinaryMemImm:
			return true
		}
	}
	return true
}

func isBarrier(inst *micro.MicroInstr) bool {
	return inst.Opcode == micro.OpcodeLabel || inst.Opcode.IsCall() || inst.Opcode.IsTerminator()
}

// useSlotIndices returns the operand slot indices at which reg is read by
// inst, mirroring regUses' per-opcode positional table but at slot
// granularity — needed by coalesce_copy_instruction to know exactly which
// slots to repoint at a forwarded source without touching a pure
// destination slot.
func useSlotIndices(inst *micro.MicroInstr, ops []micro.MicroInstrOperand, reg micro.MicroReg) []int {
	has := func(i int) bool { return i < len(ops) && ops[i].Reg == reg }
	var idxs []int
	add := func(i int) {
		if has(i) {
			idxs = append(idxs, i)
		}
	}
	switch inst.Opcode {
	case micro.OpcodeLoadRegReg, micro.OpcodeLoadRegMem, micro.OpcodeLoadAddrRegMem:
		add(1)
	case micro.OpcodeLoadMemReg:
		add(0)
		add(1)
	case micro.OpcodeOpBinaryRegReg:
		add(0)
		add(1)
	case micro.OpcodeOpBinaryRegImm:
		add(0)
	case micro.OpcodeCmpRegReg:
		add(0)
		add(1)
	case micro.OpcodeCmpRegImm:
		add(0)
	default:
		for i, op := range ops {
			if op.Reg == reg {
				idxs = append(idxs, i)
			}
		}
	}
	return idxs
}

// collectForwardableUses scans forward from ref looking for every
// instruction that reads dst before dst is redefined, for
// coalesce_copy_instruction. It fails closed: a barrier, or a redefinition
// of src anywhere in the window, aborts the whole scan since src's value
// can no longer stand in for dst beyond that point.
func collectForwardableUses(ctx *Context, ref micro.Ref, dst, src micro.MicroReg) ([]micro.Ref, bool) {
	var uses []micro.Ref
	for it := ctx.View.From(ref).Next(); it.Valid(); it = it.Next() {
		inst := it.Instr()
		ops := it.Ops()
		if isBarrier(inst) {
			return nil, false
		}
		if _, srcDefined := regUses(inst, ops, src); srcDefined {
			return nil, false
		}
		dstUsed, dstDefined := regUses(inst, ops, dst)
		if dstUsed {
			uses = append(uses, it.Current())
		}
		if dstDefined {
			return uses, true
		}
	}
	return nil, false
}

// getMemBaseOffsetOperandIndices implements get_mem_base_offset_operand_indices:
// maps each memory-bearing opcode to the slot indices of its base register
// and displacement, per the positional layout fixed by §4.2.
func getMemBaseOffsetOperandIndices(op micro.Opcode) (baseIdx, offsetIdx int, ok bool) {
	switch op {
	case micro.OpcodeLoadRegMem, micro.OpcodeLoadAddrRegMem:
		return 1, 3, true
	case micro.OpcodeOpBinaryRegMem:
		return 1, 4, true
	case micro.OpcodeOpBinaryMemReg:
		return 0, 4, true
	case micro.OpcodeLoadMemReg:
		return 0, 3, true
	case micro.OpcodeLoadMemImm, micro.OpcodeCmpMemImm:
		return 0, 2, true
	case micro.OpcodeOpBinaryMemImm:
		return 0, 3, true
	case micro.OpcodeCmpMemReg:
		return 0, 3, true
	default:
		return 0, 0, false
	}
}
