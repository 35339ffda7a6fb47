// Package optimize implements the Optimization Oracle (§4.5): a pure,
// stateless set of queries the peephole pass and legalizer both consult.
// Grounded on the teacher's wazevoapi query helpers (no mutable state,
// plain functions over the instruction/operand view) generalized to this
// backend's micro IR.
package optimize

import (
	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// IsNoOpEncoderInstruction reports whether inst is a semantic no-op that
// can be dropped outright once legalization has run (§4.5).
func IsNoOpEncoderInstruction(inst *micro.MicroInstr, ops []micro.MicroInstrOperand) bool {
	switch inst.Opcode {
	case micro.OpcodeNop:
		return true
	case micro.OpcodeLoadRegReg:
		return ops[0].Reg == ops[1].Reg
	case micro.OpcodeLoadAddrRegMem:
		return ops[0].Reg == ops[1].Reg && ops[3].Offset == 0 && ops[1].Reg != micro.InstructionPointer
	case micro.OpcodeLoadCondRegReg:
		return ops[0].Reg == ops[1].Reg && ops[3].Width == micro.B64
	case micro.OpcodeOpBinaryRegReg:
		if ops[2].Op == micro.OpExchange && ops[0].Reg == ops[1].Reg {
			return true
		}
		return false
	case micro.OpcodeOpBinaryRegImm:
		return micro.IsIdentityImmediate(ops[1].Op, ops[3].ImmU64, ops[2].Width)
	default:
		return false
	}
}

// ViolatesEncoderConformance queries the encoder through CanEncode — the
// narrow query_conformance_issue interface named in §4.5 — without
// emitting any bytes.
func ViolatesEncoderConformance(enc *x64.Encoder, inst *micro.MicroInstr, ops []micro.MicroInstrOperand) bool {
	res := enc.CanEncode(inst.Opcode, inst.Flags, ops)
	return res != x64.Zero
}

// IsLocalDataflowBarrier reports whether inst blocks local dataflow
// analysis: a label, a call, or a terminator (§4.4 "Barriers are...").
func IsLocalDataflowBarrier(inst *micro.MicroInstr) bool {
	return inst.Opcode == micro.OpcodeLabel || inst.Opcode.IsCall() || inst.Opcode.IsTerminator()
}

// IsSameRegisterClass re-exports micro.IsSameRegisterClass under the
// Oracle's naming (§4.5 "is_same_register_class").
func IsSameRegisterClass(a, b micro.MicroReg) bool {
	return micro.IsSameRegisterClass(a, b)
}
