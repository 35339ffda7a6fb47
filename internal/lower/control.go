package lower

import (
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// Stmt lowers a statement-position node, emitting its side effects
// directly into the builder and returning nothing. Expression nodes
// reachable from statement position (a bare call, say) are lowered for
// effect only; their result register is simply discarded.
func (f *Frame) Stmt(n *frontend.Node) {
	switch n.Kind {
	case frontend.NodeIf:
		f.lowerIf(n)
	case frontend.NodeWhile:
		f.lowerWhile(n)
	case frontend.NodeLoop:
		f.lowerLoop(n)
	case frontend.NodeBreak:
		f.lowerBreak(n)
	case frontend.NodeContinue:
		f.lowerContinue(n)
	case frontend.NodeSwitch:
		f.lowerSwitch(n)
	case frontend.NodeRange:
		f.lowerRange(n)
	case frontend.NodeReturn:
		f.lowerReturn(n)
	case frontend.NodeBlock:
		f.lowerBlock(n)
	case frontend.NodeDefer:
		f.addDefer(n.Action)
	case frontend.NodeAssign:
		f.lowerAssign(n)
	default:
		// A bare expression used for its side effects (call, pre/post inc
		// lowered as Binary+Assign upstream, etc).
		f.Expr(n)
	}
}

func (f *Frame) lowerBlock(n *frontend.Node) {
	f.pushScope()
	for _, s := range n.Body {
		f.Stmt(s)
	}
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	f.popScope()
}

func (f *Frame) lowerAssign(n *frontend.Node) {
	v := f.Expr(n.Value)
	switch n.Target.Kind {
	case frontend.NodeLocalRef:
		off := f.localOffset(n.Target.LocalIndex)
		f.B.LoadMemReg(micro.Rbp, v, n.Target.Type.Width, off)
	case frontend.NodeMember:
		base := n.Target.Children[0]
		field, ok := base.Type.StructFields[n.Target.FieldName]
		if !ok {
			panic(errors.Errorf("lower: unknown field %q in assignment", n.Target.FieldName))
		}
		baseReg := f.Expr(base)
		f.B.LoadMemReg(baseReg, v, field.Type.Width, field.Offset)
	default:
		panic(errors.Errorf("lower: %v is not an assignable target", n.Target.Kind))
	}
}

// lowerIf implements If/else with constant-condition elision, mirroring
// the Conditional expression's rule (§4.7).
func (f *Frame) lowerIf(n *frontend.Node) {
	if n.Cond_.Kind == frontend.NodeLiteral {
		if n.Cond_.Const.IntValue != 0 {
			f.lowerBlockBody(n.Then.Body)
		} else if n.Else != nil {
			f.lowerBlockBody(n.Else.Body)
		}
		return
	}

	elseLabel := f.B.CreateLabel()
	condReg := f.Expr(n.Cond_)
	f.B.CmpRegImm(condReg, micro.B32, 0)
	f.B.JumpToLabel(micro.CondEq, micro.B32, elseLabel)

	f.lowerBlockBody(n.Then.Body)

	if n.Else != nil {
		doneLabel := f.B.CreateLabel()
		f.B.JumpToLabel(micro.CondAlways, micro.B32, doneLabel)
		f.B.PlaceLabel(elseLabel)
		f.lowerBlockBody(n.Else.Body)
		f.B.PlaceLabel(doneLabel)
	} else {
		f.B.PlaceLabel(elseLabel)
	}
}

func (f *Frame) lowerBlockBody(body []*frontend.Node) {
	f.pushScope()
	for _, s := range body {
		f.Stmt(s)
	}
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	f.popScope()
}

// lowerWhile lowers a pre-tested loop as a back-edge test at the bottom,
// the usual "test at top via an initial jump into the test" shape so the
// common loop-runs case only pays for one unconditional jump.
func (f *Frame) lowerWhile(n *frontend.Node) {
	testLabel := f.B.CreateLabel()
	bodyLabel := f.B.CreateLabel()
	doneLabel := f.B.CreateLabel()

	f.B.JumpToLabel(micro.CondAlways, micro.B32, testLabel)

	f.B.PlaceLabel(bodyLabel)
	f.pushBreakContext(BreakContext{BreakLabel: doneLabel, ContinueLabel: testLabel})
	f.lowerBlockBody(n.Body)
	f.popBreakContext()

	f.B.PlaceLabel(testLabel)
	condReg := f.Expr(n.Cond_)
	f.B.CmpRegImm(condReg, micro.B32, 0)
	f.B.JumpToLabel(micro.CondNE, micro.B32, bodyLabel)

	f.B.PlaceLabel(doneLabel)
}

// lowerLoop lowers an infinite loop, exited only via break/return (§4.7).
func (f *Frame) lowerLoop(n *frontend.Node) {
	bodyLabel := f.B.CreateLabel()
	continueLabel := f.B.CreateLabel()
	doneLabel := f.B.CreateLabel()

	f.B.PlaceLabel(bodyLabel)
	f.pushBreakContext(BreakContext{BreakLabel: doneLabel, ContinueLabel: continueLabel})
	f.lowerBlockBody(n.Body)
	f.popBreakContext()

	f.B.PlaceLabel(continueLabel)
	f.B.JumpToLabel(micro.CondAlways, micro.B32, bodyLabel)
	f.B.PlaceLabel(doneLabel)
}

func (f *Frame) lowerBreak(n *frontend.Node) {
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	f.B.JumpToLabel(micro.CondAlways, micro.B32, f.currentBreakContext().BreakLabel)
}

func (f *Frame) lowerContinue(n *frontend.Node) {
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	f.B.JumpToLabel(micro.CondAlways, micro.B32, f.currentBreakContext().ContinueLabel)
}

// lowerReturn runs every still-open scope's deferred actions in reverse
// before the actual return, matching normal scope-exit order (§4.7).
func (f *Frame) lowerReturn(n *frontend.Node) {
	var retReg micro.MicroReg
	hasValue := len(n.Body) == 1
	if hasValue {
		retReg = f.Expr(n.Body[0])
	}
	f.runDefersReverse(func(a *frontend.Node) *micro.MicroReg { f.Stmt(a); return nil })
	if hasValue {
		dst := micro.RetIntReg
		if n.Body[0].Type.Float {
			dst = micro.RetFloatReg
		}
		f.B.LoadRegReg(dst, retReg, n.Body[0].Type.Width)
	}
	f.B.Ret()
}

// lowerRange lowers a for-each over [LowerBound, UpperBound) as a
// while-loop over an induction variable held in a fresh virtual register
// and mirrored into the bound InductionLocal's stack slot on every
// iteration (§4.7 "Range/iterate/for-each").
func (f *Frame) lowerRange(n *frontend.Node) {
	lower := f.Expr(n.LowerBound)
	upper := f.Expr(n.UpperBound)
	ind := f.freshInt()
	f.B.LoadRegReg(ind, lower, micro.B64)

	testLabel := f.B.CreateLabel()
	bodyLabel := f.B.CreateLabel()
	continueLabel := f.B.CreateLabel()
	doneLabel := f.B.CreateLabel()

	f.B.JumpToLabel(micro.CondAlways, micro.B32, testLabel)

	f.B.PlaceLabel(bodyLabel)
	f.B.LoadMemReg(micro.Rbp, ind, micro.B64, f.localOffset(n.InductionLocal))
	f.pushBreakContext(BreakContext{BreakLabel: doneLabel, ContinueLabel: continueLabel})
	f.lowerBlockBody(n.Body)
	f.popBreakContext()

	f.B.PlaceLabel(continueLabel)
	f.B.OpBinaryRegImm(micro.OpAdd, ind, micro.B64, 1)

	f.B.PlaceLabel(testLabel)
	f.B.CmpRegReg(ind, upper, micro.B64)
	f.B.JumpToLabel(micro.CondL, micro.B32, bodyLabel)

	f.B.PlaceLabel(doneLabel)
}

// lowerSwitch picks between a dense jump table (when the frontend marked
// the switch Complete and dense enough) and a compare-and-branch ladder
// (§4.7 "Switch"). The selector expression is Children[0].
func (f *Frame) lowerSwitch(n *frontend.Node) {
	if n.Complete && n.TableSymbol != 0 && len(n.Cases) <= f.maxJumpTableCases && isDense(n.Cases) {
		f.lowerSwitchJumpTable(n)
		return
	}
	f.lowerSwitchLadder(n)
}

func isDense(cases []frontend.SwitchCase) bool {
	if len(cases) == 0 {
		return false
	}
	min, max := cases[0].ConstValue, cases[0].ConstValue
	for _, c := range cases {
		if c.ConstValue < min {
			min = c.ConstValue
		}
		if c.ConstValue > max {
			max = c.ConstValue
		}
	}
	return uint64(len(cases)) == max-min+1
}

func (f *Frame) lowerSwitchLadder(n *frontend.Node) {
	sel := f.Expr(n.Children[0])
	w := n.Children[0].Type.Width

	caseLabels := make([]micro.Label, len(n.Cases))
	doneLabel := f.B.CreateLabel()
	defaultLabel := doneLabel
	if n.Default != nil {
		defaultLabel = f.B.CreateLabel()
	}

	for i, c := range n.Cases {
		caseLabels[i] = f.B.CreateLabel()
		f.B.CmpRegImm(sel, w, c.ConstValue)
		f.B.JumpToLabel(micro.CondEq, micro.B32, caseLabels[i])
	}
	f.B.JumpToLabel(micro.CondAlways, micro.B32, defaultLabel)

	bc := BreakContext{BreakLabel: doneLabel}
	f.pushBreakContext(bc)
	for i, c := range n.Cases {
		f.B.PlaceLabel(caseLabels[i])
		f.lowerBlockBody(c.Body)
		f.B.JumpToLabel(micro.CondAlways, micro.B32, doneLabel)
	}
	if n.Default != nil {
		f.B.PlaceLabel(defaultLabel)
		f.lowerBlockBody(n.Default)
	}
	f.popBreakContext()

	f.B.PlaceLabel(doneLabel)
}

func (f *Frame) lowerSwitchJumpTable(n *frontend.Node) {
	sel := f.Expr(n.Children[0])
	w := n.Children[0].Type.Width

	min := n.Cases[0].ConstValue
	for _, c := range n.Cases {
		if c.ConstValue < min {
			min = c.ConstValue
		}
	}

	index := f.freshInt()
	f.B.LoadRegReg(index, sel, w)
	if min != 0 {
		f.B.OpBinaryRegImm(micro.OpSub, index, w, min)
	}

	entries := make([]micro.Label, len(n.Cases))
	caseLabels := make([]micro.Label, len(n.Cases))
	for i, c := range n.Cases {
		caseLabels[i] = f.B.CreateLabel()
		entries[int(c.ConstValue-min)] = caseLabels[i]
	}

	scratch := f.freshInt()
	disp32 := f.freshInt()
	f.B.JumpTable(index, scratch, disp32, n.TableSymbol, entries)
	f.jumpTables = append(f.jumpTables, JumpTableRequest{
		TableSym: n.TableSymbol,
		Min:      int64(min),
		Entries:  entries,
	})

	doneLabel := f.B.CreateLabel()
	bc := BreakContext{BreakLabel: doneLabel}
	f.pushBreakContext(bc)
	for i, c := range n.Cases {
		f.B.PlaceLabel(caseLabels[i])
		f.lowerBlockBody(c.Body)
		f.B.JumpToLabel(micro.CondAlways, micro.B32, doneLabel)
	}
	f.popBreakContext()
	f.B.PlaceLabel(doneLabel)
}
