// Package passes implements the Pass Manager & Pipeline of §4.8: an
// ordered sequence of passes sharing one PassContext, run over a function's
// builder until the standard pipeline (regalloc, prolog/epilog,
// legalization, peephole, emit) completes. Grounded on the teacher's
// backend.Compiler pipeline (wazevo/backend/compiler.go), which runs the
// same shape of ordered lowering/optimization passes over one function at
// a time.
package passes

import (
	"github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/metrics"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// Context owns references to the instruction arena, operand arena,
// encoder, call-convention kind, and builder — everything a pass needs,
// per §4.8 ("the shared PassContext which owns references to...").
type Context struct {
	Builder  *micro.Builder
	Encoder  *x64.Encoder
	CallConv micro.CallConv
	Log      *logrus.Entry

	// ClobberedCalleeSaved is populated by RegisterAllocation and consumed
	// by PrologEpilog.
	ClobberedCalleeSaved []micro.MicroReg
	// FrameSize is the stack-slot byte count RegisterAllocation decided to
	// reserve for spills; PrologEpilog folds it into the SP adjustment.
	FrameSize uint32
	// LocalsFrameSize is the stack space internal/lower's frame reserved
	// for source-level locals addressed off Rbp, set by the caller
	// (internal/backend.Facade) from lower.Frame.LocalsFrameSize before the
	// pipeline runs. PrologEpilog folds it into the same SP adjustment as
	// FrameSize.
	LocalsFrameSize uint32

	PeepholeIterationCap int

	// LabelOffsets is populated by EmitPass: each placed label's final byte
	// offset within this function's own code, before any relocation to a
	// whole-module text-section offset. The backend façade uses it to
	// materialize jump-table rodata (§4.8 step 5, §5).
	LabelOffsets map[micro.Label]uint32
}

// Pass is one stage of the pipeline. Run reports whether it mutated the
// instruction stream ("changed"), per §4.8.
type Pass interface {
	Name() string
	Run(ctx *Context) (changed bool, err error)
}

// Manager holds an ordered sequence of passes and runs them one by one.
type Manager struct {
	passes []Pass
}

// NewManager builds the standard pipeline: Register Allocation ->
// Prolog/Epilog -> Legalization -> Peephole -> Emit (§4.8, steps 1-5).
func NewManager() *Manager {
	return &Manager{passes: []Pass{
		&RegisterAllocationPass{},
		&PrologEpilogPass{},
		&LegalizationPass{},
		&PeepholePass{},
		&EmitPass{},
	}}
}

// Run invokes every pass in order against ctx, stopping at the first
// error. Each pass's changed/skip status is logged and counted.
func (m *Manager) Run(ctx *Context) error {
	for _, p := range m.passes {
		changed, err := p.Run(ctx)
		if err != nil {
			return errors.Wrapf(err, "pass %s failed", p.Name())
		}
		metrics.PassesRun.WithLabelValues(p.Name()).Inc()
		if ctx.Log != nil {
			ctx.Log.WithFields(logrus.Fields{"pass": p.Name(), "changed": changed}).Debug("pass complete")
		}
	}
	return nil
}
