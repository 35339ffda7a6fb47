package lower

import (
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// Expr lowers n to a register holding its value, per §4.7's per-node
// lowering rules. Control-flow and statement nodes are handled by Stmt
// instead and panic here.
func (f *Frame) Expr(n *frontend.Node) micro.MicroReg {
	switch n.Kind {
	case frontend.NodeLiteral:
		return f.lowerLiteral(n)
	case frontend.NodeConstRef:
		return f.lowerLiteral(n)
	case frontend.NodeLocalRef:
		return f.lowerLocalRef(n)
	case frontend.NodeBinary:
		return f.lowerBinary(n)
	case frontend.NodeCompare:
		return f.lowerCompare(n)
	case frontend.NodeThreeWayCompare:
		return f.lowerThreeWayCompare(n)
	case frontend.NodeConditional:
		return f.lowerConditional(n)
	case frontend.NodeCall:
		return f.lowerCall(n)
	case frontend.NodeMember:
		return f.lowerMember(n)
	default:
		panic(errors.Errorf("lower: %v is not an expression node", n.Kind))
	}
}

// lowerLiteral implements the constant-manager short-circuit: a folded
// constant is always materialized directly as an immediate load, never
// by re-deriving it through the operations that produced it.
func (f *Frame) lowerLiteral(n *frontend.Node) micro.MicroReg {
	dst := f.freshFor(n.Type)
	f.B.LoadRegImm(dst, n.Type.Width, n.Const.IntValue)
	return dst
}

func (f *Frame) lowerLocalRef(n *frontend.Node) micro.MicroReg {
	dst := f.freshFor(n.Type)
	off := f.localOffset(n.LocalIndex)
	if n.Type.Float {
		// Float locals still live on the integer-addressed stack frame;
		// the memory op here is width-tagged, not class-tagged.
		f.B.LoadRegMem(dst, micro.Rbp, n.Type.Width, off)
	} else {
		f.B.LoadRegMem(dst, micro.Rbp, n.Type.Width, off)
	}
	return dst
}

// lowerBinary materializes both operands then emits a single
// OpBinaryRegReg, threading EmitOverflowChecked per §4.7's wrap/promote
// modifier when the AST marks the binary as overflow-checked (the node's
// OverflowChecked field).
func (f *Frame) lowerBinary(n *frontend.Node) micro.MicroReg {
	l, r := n.Children[0], n.Children[1]
	if l.Kind == frontend.NodeLiteral && r.Kind == frontend.NodeLiteral {
		if folded, ok := foldConstBinary(n.Op, l.Const, r.Const, n.Type); ok {
			dst := f.freshFor(n.Type)
			f.B.LoadRegImm(dst, n.Type.Width, folded.IntValue)
			return dst
		}
	}

	lhs := f.Expr(l)
	rhs := f.Expr(r)
	flags := micro.EmitNone
	if n.OverflowChecked {
		flags = micro.EmitOverflowChecked
	}
	dst := lhs
	f.B.OpBinaryRegReg(n.Op, dst, rhs, n.Type.Width, flags)
	return dst
}

// lowerCompare lowers a boolean comparison to {cmp; setcc}, the
// general-purpose form any consumer (branch or value context) can use.
func (f *Frame) lowerCompare(n *frontend.Node) micro.MicroReg {
	lhs := f.Expr(n.Children[0])
	rhs := f.Expr(n.Children[1])
	f.B.CmpRegReg(lhs, rhs, n.Children[0].Type.Width)
	dst := f.freshInt()
	f.B.SetCondReg(dst, n.Cond)
	return dst
}

// lowerThreeWayCompare lowers `<=>` branchlessly as (lhs>rhs) - (lhs<rhs),
// yielding -1/0/1 without any conditional jump (SPEC_FULL.md supplemented
// feature, decided in DESIGN.md's Open Questions section). SETcc writes
// only the low byte, so each result register is cleared before its compare
// (the xor clobbers flags, hence the second compare).
func (f *Frame) lowerThreeWayCompare(n *frontend.Node) micro.MicroReg {
	lhs := f.Expr(n.Children[0])
	rhs := f.Expr(n.Children[1])
	w := n.Children[0].Type.Width

	gt := f.freshInt()
	f.B.ClearReg(gt, micro.B32)
	f.B.CmpRegReg(lhs, rhs, w)
	f.B.SetCondReg(gt, micro.CondG)

	lt := f.freshInt()
	f.B.ClearReg(lt, micro.B32)
	f.B.CmpRegReg(lhs, rhs, w)
	f.B.SetCondReg(lt, micro.CondL)

	f.B.OpBinaryRegReg(micro.OpSub, gt, lt, micro.B32, micro.EmitNone)
	return gt
}

// lowerConditional lowers `cond ? then : else`, eliding the branch
// entirely when cond folds to a literal (§4.7 "constant-branch elision").
func (f *Frame) lowerConditional(n *frontend.Node) micro.MicroReg {
	if n.Cond_.Kind == frontend.NodeLiteral {
		if n.Cond_.Const.IntValue != 0 {
			return f.Expr(n.Then)
		}
		return f.Expr(n.Else)
	}

	elseLabel := f.B.CreateLabel()
	doneLabel := f.B.CreateLabel()

	condReg := f.Expr(n.Cond_)
	f.B.CmpRegImm(condReg, micro.B32, 0)
	f.B.JumpToLabel(micro.CondEq, micro.B32, elseLabel)

	dst := f.freshFor(n.Type)
	thenReg := f.Expr(n.Then)
	f.B.LoadRegReg(dst, thenReg, n.Type.Width)
	f.B.JumpToLabel(micro.CondAlways, micro.B32, doneLabel)

	f.B.PlaceLabel(elseLabel)
	elseReg := f.Expr(n.Else)
	f.B.LoadRegReg(dst, elseReg, n.Type.Width)

	f.B.PlaceLabel(doneLabel)
	return dst
}

// lowerCall materializes every argument into the configured ABI's
// argument registers in order (splitting by register class), emits the
// appropriate Call* opcode, and reads the return value out of the
// configured ABI's return register.
func (f *Frame) lowerCall(n *frontend.Node) micro.MicroReg {
	var nextInt, nextFloat int
	for _, arg := range n.Args {
		v := f.Expr(arg)
		if arg.Type.Float {
			if nextFloat >= len(micro.ArgFloatRegs) {
				panic(errors.Errorf("lower: call argument spilling to the stack is not supported"))
			}
			f.B.LoadRegReg(micro.ArgFloatRegs[nextFloat], v, arg.Type.Width)
			nextFloat++
		} else {
			if nextInt >= len(micro.ArgIntRegs) {
				panic(errors.Errorf("lower: call argument spilling to the stack is not supported"))
			}
			f.B.LoadRegReg(micro.ArgIntRegs[nextInt], v, arg.Type.Width)
			nextInt++
		}
	}

	switch n.CalleeKind {
	case frontend.CallLocalKind:
		f.B.CallLocal(n.CalleeName, f.CC, n.CalleeSymbol)
	case frontend.CallExternKind:
		f.B.CallExtern(n.CalleeName, f.CC, n.CalleeSymbol)
	case frontend.CallIndirectKind:
		target := f.Expr(n.Args[len(n.Args)-1])
		f.B.CallIndirect(target, f.CC)
	}

	if n.Type.Width == micro.Zero {
		return micro.Invalid
	}
	dst := f.freshFor(n.Type)
	ret := micro.RetIntReg
	if n.Type.Float {
		ret = micro.RetFloatReg
	}
	f.B.LoadRegReg(dst, ret, n.Type.Width)
	return dst
}

// lowerMember handles member access. A constant struct short-circuits
// entirely (§4.7 "Member access on a constant struct") — no code is
// emitted, the field value is read straight out of the folded constant.
// Otherwise the field's recorded byte offset becomes a memory load off
// the base expression's address.
func (f *Frame) lowerMember(n *frontend.Node) micro.MicroReg {
	base := n.Children[0]
	if base.Kind == frontend.NodeLiteral && base.Const.IsStruct {
		fv := base.Const.StructVal[n.FieldName]
		dst := f.freshFor(fv.Type)
		f.B.LoadRegImm(dst, fv.Type.Width, fv.IntValue)
		return dst
	}

	field, ok := base.Type.StructFields[n.FieldName]
	if !ok {
		panic(errors.Errorf("lower: unknown field %q", n.FieldName))
	}
	baseReg := f.Expr(base)
	dst := f.freshFor(field.Type)
	f.B.LoadRegMem(dst, baseReg, field.Type.Width, field.Offset)
	return dst
}
