package lower

import (
	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// Param describes one incoming function parameter: the local slot lowered
// references to it resolve to (LocalIndex/Offset, bound the same way
// Frame.BindLocal binds any other local) and its Type.
type Param struct {
	LocalIndex uint32
	Offset     int32
	Type       frontend.Type
}

// Function lowers one complete function body into b: binds parameters,
// spills the configured ABI's argument registers into their stack slots
// (the prolog/epilog pass has already reserved the frame these offsets
// are relative to — passes.RegisterAllocationPass runs after lowering and
// only ever sees physical-or-virtual registers, never raw stack math), and
// then lowers body, appending an implicit Ret if body falls off the end.
func Function(b *micro.Builder, cc micro.CallConv, log Logger, params []Param, body []*frontend.Node) *Frame {
	f := NewFrame(b, cc, log)

	var nextInt, nextFloat int
	for _, p := range params {
		f.BindLocal(p.LocalIndex, p.Offset)
		var src micro.MicroReg
		if p.Type.Float {
			src = micro.ArgFloatRegs[nextFloat]
			nextFloat++
		} else {
			src = micro.ArgIntRegs[nextInt]
			nextInt++
		}
		f.B.LoadMemReg(micro.Rbp, src, p.Type.Width, p.Offset)
	}

	f.pushScope()
	for _, s := range body {
		f.Stmt(s)
	}
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	f.popScope()

	if !fallsThroughToRet(body) {
		f.B.Ret()
	}
	return f
}

func fallsThroughToRet(body []*frontend.Node) bool {
	if len(body) == 0 {
		return false
	}
	last := body[len(body)-1]
	return last.Kind == frontend.NodeReturn
}
