// Package lower implements AST-to-micro-IR lowering (§4.7), grounded on
// the teacher's frontend/wasm-to-ssa builder shape (wazevo/frontend) —
// one lowering frame per function, walking the AST once and emitting
// through a micro.Builder instead of building SSA values.
package lower

import (
	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// BreakContext binds break/continue targets for the innermost enclosing
// loop or switch, per §4.7 ("break/continue bind to the nearest
// BreakContext maintained by the lowering frame").
type BreakContext struct {
	BreakLabel    micro.Label
	ContinueLabel micro.Label
}

// deferredAction is one entry of a scope's ordered cleanup list (§4.7
// "Defer/scoped cleanup").
type deferredAction struct {
	node *frontend.Node
}

// Frame is the per-function lowering state: the builder being emitted
// into, a monotonic virtual-register counter split by class, the local
// variable -> stack offset map, and the break/defer stacks.
type Frame struct {
	B   *micro.Builder
	CC  micro.CallConv
	Log Logger

	nextVirtInt, nextVirtFloat uint32

	locals         map[uint32]int32 // local index -> frame-pointer-relative offset
	minLocalOffset int32            // most negative offset bound so far

	breakStack []BreakContext
	deferStack [][]deferredAction // one slice per open scope

	maxJumpTableCases int

	jumpTables []JumpTableRequest
}

// JumpTableRequest records one dense-switch lowering's table shape so the
// backend façade can materialize the rodata bytes and bind tableSym once
// every label in the function has a final code offset (§4.8 step 5, §5
// shared symbol table). Entries are in selector order starting at Min.
type JumpTableRequest struct {
	TableSym uint32
	Min      int64
	Entries  []micro.Label
}

// JumpTables returns every dense-switch table this frame's lowering
// requested, for the backend to resolve after the emit pass runs.
func (f *Frame) JumpTables() []JumpTableRequest { return f.jumpTables }

// Logger is the narrow logging surface lower needs, satisfied by a
// *logrus.Entry without importing logrus into every lowering file.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// NewFrame returns a fresh lowering frame over b, for call convention cc.
func NewFrame(b *micro.Builder, cc micro.CallConv, log Logger) *Frame {
	return &Frame{B: b, CC: cc, Log: log, locals: map[uint32]int32{}, maxJumpTableCases: 64}
}

func (f *Frame) freshInt() micro.MicroReg {
	r := micro.VirtInt(f.nextVirtInt)
	f.nextVirtInt++
	return r
}

func (f *Frame) freshFloat() micro.MicroReg {
	r := micro.VirtFloat(f.nextVirtFloat)
	f.nextVirtFloat++
	return r
}

func (f *Frame) freshFor(t frontend.Type) micro.MicroReg {
	if t.Float {
		return f.freshFloat()
	}
	return f.freshInt()
}

// BindLocal records the frame-pointer-relative stack offset a local
// variable lives at. Negative offsets (locals below the frame pointer,
// the usual convention) grow Frame's reported LocalsFrameSize, which the
// caller folds into the prolog/epilog pass's stack reservation alongside
// register-allocation spill space.
func (f *Frame) BindLocal(index uint32, offset int32) {
	f.locals[index] = offset
	if offset < f.minLocalOffset {
		f.minLocalOffset = offset
	}
}

func (f *Frame) localOffset(index uint32) int32 { return f.locals[index] }

// LocalsFrameSize returns the 16-byte-aligned stack space every bound
// local with a negative offset requires, for the prolog's `sub rsp` (§4.7
// ambient frame layout).
func (f *Frame) LocalsFrameSize() uint32 {
	if f.minLocalOffset >= 0 {
		return 0
	}
	return alignUp16(uint32(-f.minLocalOffset))
}

func alignUp16(n uint32) uint32 { return (n + 15) &^ 15 }

func (f *Frame) pushBreakContext(bc BreakContext) { f.breakStack = append(f.breakStack, bc) }
func (f *Frame) popBreakContext()                 { f.breakStack = f.breakStack[:len(f.breakStack)-1] }
func (f *Frame) currentBreakContext() BreakContext {
	return f.breakStack[len(f.breakStack)-1]
}

func (f *Frame) pushScope()  { f.deferStack = append(f.deferStack, nil) }
func (f *Frame) popScope() []deferredAction {
	n := len(f.deferStack) - 1
	top := f.deferStack[n]
	f.deferStack = f.deferStack[:n]
	return top
}
func (f *Frame) addDefer(n *frontend.Node) {
	top := len(f.deferStack) - 1
	f.deferStack[top] = append(f.deferStack[top], deferredAction{node: n})
}

// runDefersReverse walks every open scope's deferred actions in reverse,
// innermost scope first — the sequence used at normal scope exit and at
// each break/continue/return (§4.7).
func (f *Frame) runDefersReverse(lower func(*frontend.Node) *micro.MicroReg) {
	for s := len(f.deferStack) - 1; s >= 0; s-- {
		scope := f.deferStack[s]
		for i := len(scope) - 1; i >= 0; i-- {
			lower(scope[i].node)
		}
	}
}
