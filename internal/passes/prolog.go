package passes

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// PrologEpilogPass inserts the function prolog (establish Rbp as the frame
// pointer, push clobbered callee-saved registers, reserve the stack frame)
// and mirrors it in reverse before every return (§4.8 step 2). Grounded on
// the teacher's machine.SetupPrologue/SetupEpilogue
// (backend/isa/amd64/abi.go), generalized to always establish a frame
// pointer since internal/lower addresses source-level locals off Rbp.
type PrologEpilogPass struct{}

func (p *PrologEpilogPass) Name() string { return "prolog-epilog" }

func (p *PrologEpilogPass) Run(ctx *Context) (bool, error) {
	b := ctx.Builder
	order := b.Order()
	if len(order) == 0 {
		return false, nil
	}

	frame := alignUp(ctx.FrameSize+ctx.LocalsFrameSize, 16)

	entry := order[0]
	prolog := buildPrologSequence(b, ctx.ClobberedCalleeSaved, frame)
	insertBefore(b, entry, prolog)

	v := micro.NewView(b)
	changed := len(prolog) > 0
	for it := v.Begin(); it.Valid(); it = it.Next() {
		if it.Instr().Opcode != micro.OpcodeRet {
			continue
		}
		epilog := buildEpilogSequence(b, ctx.ClobberedCalleeSaved, frame)
		insertBefore(b, it.Current(), epilog)
		changed = changed || len(epilog) > 0
	}
	return changed, nil
}

func buildPrologSequence(b *micro.Builder, clobbered []micro.MicroReg, frame uint32) []micro.Ref {
	seq := []micro.Ref{b.Push(micro.Rbp), b.LoadRegReg(micro.Rbp, micro.Rsp, micro.B64)}
	for _, r := range clobbered {
		seq = append(seq, b.Push(r))
	}
	if frame > 0 {
		seq = append(seq, b.OpBinaryRegImm(micro.OpSub, micro.Rsp, micro.B64, uint64(frame)))
	}
	return seq
}

func buildEpilogSequence(b *micro.Builder, clobbered []micro.MicroReg, frame uint32) []micro.Ref {
	var seq []micro.Ref
	if frame > 0 {
		seq = append(seq, b.OpBinaryRegImm(micro.OpAdd, micro.Rsp, micro.B64, uint64(frame)))
	}
	for i := len(clobbered) - 1; i >= 0; i-- {
		seq = append(seq, b.Pop(clobbered[i]))
	}
	seq = append(seq, b.Pop(micro.Rbp))
	return seq
}

// insertBefore splices seq (newly-built instructions, appended to the end
// of the arena by the Builder calls above) into program order immediately
// before target, by rewriting the builder's emission order slice.
func insertBefore(b *micro.Builder, target micro.Ref, seq []micro.Ref) {
	if len(seq) == 0 {
		return
	}
	b.SpliceBefore(target, seq)
}
