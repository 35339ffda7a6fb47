package passes

import (
	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// LegalizationPass walks every instruction, probes it with
// EMIT_CAN_ENCODE, and inserts the materializing copy — or rewrites the
// instruction with an encodable sequence — that the encoder's result code
// names (§4.8 step 3). Grounded on the teacher's machine.lowerToVReg
// legalize-then-retry loop (backend/isa/amd64/lower.go), generalized from
// its SSA-value-to-vreg materialization down to this backend's
// register-and-immediate materialization.
type LegalizationPass struct{}

func (p *LegalizationPass) Name() string { return "legalization" }

func (p *LegalizationPass) Run(ctx *Context) (bool, error) {
	changed := false
	v := micro.NewView(ctx.Builder)
	for it := v.Begin(); it.Valid(); it = it.Next() {
		ref := it.Current()
		inst := ctx.Builder.Instr(ref)
		ops := ctx.Builder.Ops(ref)
		res := ctx.Encoder.CanEncode(inst.Opcode, inst.Flags, ops)
		if res == x64.Zero {
			continue
		}
		if materialize(ctx, v, ref, res) {
			changed = true
		}
	}
	return changed, nil
}
