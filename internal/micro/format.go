package micro

import (
	"fmt"
	"strings"
)

// RegPrintMode selects FormatInstructions' layout: RegPrintModeVerbose
// prefixes each line with the instruction's arena Ref. Registers are
// rendered the same way in both modes.
type RegPrintMode uint8

const (
	RegPrintModeNative RegPrintMode = iota
	RegPrintModeVerbose
)

// FormatInstructions returns a human-readable dump of every live
// instruction in b, in emission order (§6: "the builder exposes
// format_instructions(reg_print_mode, encoder)").
func FormatInstructions(b *Builder, mode RegPrintMode) string {
	var sb strings.Builder
	for _, ref := range b.Order() {
		inst := b.Instr(ref)
		ops := b.Ops(ref)
		sb.WriteString(formatOne(ref, inst, ops, mode))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatOne(ref Ref, inst *MicroInstr, ops []MicroInstrOperand, mode RegPrintMode) string {
	var sb strings.Builder
	if mode == RegPrintModeVerbose {
		fmt.Fprintf(&sb, "[%06d] ", ref)
	}
	sb.WriteString(inst.Opcode.String())
	for i, op := range ops {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(formatSlot(op))
	}
	if inst.Opcode == OpcodeJumpTable && len(inst.Targets) > 0 {
		parts := make([]string, len(inst.Targets))
		for i, t := range inst.Targets {
			parts[i] = fmt.Sprintf("L%d", t)
		}
		fmt.Fprintf(&sb, " [%s]", strings.Join(parts, ", "))
	}
	return sb.String()
}

func formatSlot(op MicroInstrOperand) string {
	switch op.Kind {
	case SlotReg:
		return op.Reg.String()
	case SlotImm:
		return fmt.Sprintf("$%d", int64(op.ImmU64))
	case SlotWidth:
		return op.Width.String()
	case SlotCond:
		return op.Cond.String()
	case SlotOp:
		return op.Op.String()
	case SlotCallConv:
		if op.CallConv == CallConvSystemVX64 {
			return "sysv64"
		}
		return "win64"
	case SlotIdentifier:
		return fmt.Sprintf("ident#%d", op.IdentRef)
	case SlotSymbolIndex:
		return fmt.Sprintf("sym#%d", op.SymIndex)
	case SlotOffset:
		return fmt.Sprintf("%+d", op.Offset)
	case SlotLabel:
		return fmt.Sprintf("L%d", op.Label)
	case SlotAmcScale:
		return fmt.Sprintf("*%d", op.Scale)
	default:
		return "_"
	}
}
