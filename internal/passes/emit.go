package passes

import (
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// EmitPass encodes every instruction, resolves label references recorded
// by the encoder's pending-jump list, and leaves relocations for the
// façade to finalize against the function's text-section offset (§4.8
// step 5).
type EmitPass struct{}

func (p *EmitPass) Name() string { return "emit" }

func (p *EmitPass) Run(ctx *Context) (bool, error) {
	if err := ctx.Builder.CheckAllLabelsPlaced(); err != nil {
		return false, errors.Wrap(err, "emit: unplaced label")
	}

	labelOffsets := make(map[micro.Label]uint32)
	order := ctx.Builder.Order()

	for _, ref := range order {
		inst := ctx.Builder.Instr(ref)
		ops := ctx.Builder.Ops(ref)
		if inst.Opcode == micro.OpcodeLabel {
			labelOffsets[ops[0].Label] = ctx.Encoder.Buf.Len()
			continue
		}
		res := ctx.Encoder.Encode(inst.Opcode, inst.Flags, ops)
		if res != x64.Zero {
			return false, errors.Errorf("emit: instruction %s failed to encode (%s) after legalization", inst.Opcode, res)
		}
	}

	ctx.LabelOffsets = labelOffsets

	for _, j := range ctx.Encoder.PendingJumps() {
		target, ok := labelOffsets[j.Label]
		if !ok {
			return false, errors.Errorf("emit: jump to label %d has no recorded offset", j.Label)
		}
		disp := int64(target) - int64(j.InstrEndOffset)
		switch j.Width {
		case micro.B8:
			if disp < -128 || disp > 127 {
				return false, errors.Errorf("emit: rel8 jump to label %d out of range (%d)", j.Label, disp)
			}
			ctx.Encoder.Buf.PatchByte(j.DispFieldOffset, byte(int8(disp)))
		default:
			ctx.Encoder.Buf.PatchInt32(j.DispFieldOffset, int32(disp))
		}
	}

	return true, nil
}
