// Package peephole implements the rule-based local rewriter of §4.4,
// grounded on the teacher's lower.go "match -> rewrite -> verify" pattern
// (wazevo's backend lowering switch) generalized into a standalone rule
// table driven off a micro.View instead of an SSA builder.
package peephole

import (
	"github.com/sirupsen/logrus"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/metrics"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
	"github.com/xlang-toolchain/x64codegen/internal/optimize"
)

// Any matches every opcode; rules targeting a specific opcode are tried
// only when the current instruction's opcode equals Target.
var Any = micro.Opcode(0xffff)

// Rule is {name, target opcode or Any, match predicate, rewrite action}
// per §4.4. Both callbacks receive the live ref of the instruction under
// consideration; Rewrite is only called after Match returns true. Rewrites
// that patch operands apply and probe them through commit or commitOpcode;
// erase-only rewrites call neither.
type Rule struct {
	Name    string
	Target  micro.Opcode
	Match   func(ctx *Context, ref micro.Ref) bool
	Rewrite func(ctx *Context, ref micro.Ref) bool
}

// Context bundles the shared state a rule needs: the builder (for operand
// patching), the view (for forward/backward liveness scans and erasure),
// the encoder (for the conformance probe), and a logger.
type Context struct {
	Builder *micro.Builder
	View    *micro.View
	Encoder *x64.Encoder
	Log     *logrus.Entry
}

// Rules is the standard rule set, grouped by family per §4.4. Order
// matters: within one instruction the first rule whose Match returns true
// is the only one tried (its Rewrite result, success or failure, ends the
// attempt for that instruction).
var Rules = []Rule{
	ruleRemoveOverwrittenCopy,
	ruleFoldCopyAddIntoLoadAddress,
	ruleFoldLoadAddrIntoNextMemOffset,
	ruleFoldLoadImmIntoNextBinary,
	ruleFoldLoadImmIntoNextCopy,
	ruleFoldLoadImmIntoNextCompare,
	ruleFoldLoadImmIntoNextMemStore,
	ruleFoldAdjacentMemImm32Stores,
	ruleMergeRspAdjustmentsAtStart,
	ruleFoldCopyOpCopyBack,
	ruleFoldCopyUnaryCopyBack,
	ruleFoldCopyBackWithPreviousOp,
	ruleForwardCopyIntoNextBinarySource,
	ruleForwardCopyIntoNextCompareSource,
	ruleCoalesceCopyInstruction,
	ruleCleanupNoOp,
}

// Run iterates the view once, applying the first matching rule to each
// instruction; returns whether any rewrite was applied.
func Run(ctx *Context) bool {
	changed := false
	for it := ctx.View.Begin(); it.Valid(); it = it.Next() {
		ref := it.Current()
		for _, r := range Rules {
			if r.Target != Any && r.Target != ctx.Builder.Instr(ref).Opcode {
				continue
			}
			if !r.Match(ctx, ref) {
				continue
			}
			if r.Rewrite(ctx, ref) {
				changed = true
				metrics.PeepholeRewritesApplied.WithLabelValues(r.Name).Inc()
			} else {
				metrics.PeepholeRewritesReverted.WithLabelValues(r.Name).Inc()
			}
			break
		}
	}
	return changed
}

// RunToFixedPoint re-acquires a fresh View and calls Run up to cap times or
// until a pass reports no change, matching §4.8's "iterate Peephole until
// fixed-point (bounded by a small iteration cap)".
func RunToFixedPoint(b *micro.Builder, enc *x64.Encoder, log *logrus.Entry, cap int) bool {
	any := false
	for i := 0; i < cap; i++ {
		ctx := &Context{Builder: b, View: micro.NewView(b), Encoder: enc, Log: log}
		if !Run(ctx) {
			break
		}
		any = true
	}
	return any
}

// commit applies newOps to ref, probes the resulting instruction through
// the encoder's conformance check, and reverts byte-for-byte if the
// encoder would reject the new form — the commit protocol every §4.4
// rewrite action follows ("calls the encoder's conformance check after the
// proposed mutation and before committing").
func commit(ctx *Context, ref micro.Ref, newOps []micro.MicroInstrOperand) bool {
	saved := append([]micro.MicroInstrOperand(nil), ctx.Builder.Ops(ref)...)
	for i, op := range newOps {
		ctx.View.PatchOperand(ref, i, op)
	}
	inst := ctx.Builder.Instr(ref)
	if optimize.ViolatesEncoderConformance(ctx.Encoder, inst, ctx.Builder.Ops(ref)) {
		for i, op := range saved {
			ctx.View.PatchOperand(ref, i, op)
		}
		return false
	}
	return true
}

// commitOpcode is commit's counterpart for rewrites that change an
// instruction's opcode along with its operands (e.g. folding a copy into a
// lea changes OpcodeLoadRegReg into OpcodeLoadAddrRegMem). The opcode must
// already reflect the new form before the conformance probe runs — probing
// under the stale opcode would dispatch the new operand layout through the
// old opcode's slot interpretation — so both opcode and operands are
// snapshotted together and rolled back together on rejection.
func commitOpcode(ctx *Context, ref micro.Ref, newOpcode micro.Opcode, newOps []micro.MicroInstrOperand) bool {
	inst := ctx.Builder.Instr(ref)
	savedOpcode := inst.Opcode
	saved := append([]micro.MicroInstrOperand(nil), ctx.Builder.Ops(ref)...)
	inst.Opcode = newOpcode
	for i, op := range newOps {
		ctx.View.PatchOperand(ref, i, op)
	}
	if optimize.ViolatesEncoderConformance(ctx.Encoder, inst, ctx.Builder.Ops(ref)) {
		inst.Opcode = savedOpcode
		for i, op := range saved {
			ctx.View.PatchOperand(ref, i, op)
		}
		return false
	}
	return true
}
