package passes

import "github.com/xlang-toolchain/x64codegen/internal/peephole"

// defaultPeepholeIterationCap bounds the fixed-point loop (§4.8: "bounded
// by a small iteration cap") when a Context doesn't set one explicitly.
const defaultPeepholeIterationCap = 8

// PeepholePass drives internal/peephole.RunToFixedPoint (§4.8 step 4).
type PeepholePass struct{}

func (p *PeepholePass) Name() string { return "peephole" }

func (p *PeepholePass) Run(ctx *Context) (bool, error) {
	cap := ctx.PeepholeIterationCap
	if cap <= 0 {
		cap = defaultPeepholeIterationCap
	}
	changed := peephole.RunToFixedPoint(ctx.Builder, ctx.Encoder, ctx.Log, cap)
	return changed, nil
}
