// Package frontend defines the minimal typed-AST surface
// internal/lower consumes. Semantic analysis, the type manager, the
// constant manager, and identifier interning are external collaborators
// in the full toolchain; this package stands in for exactly the interface
// internal/lower needs to drive end-to-end, not a real analyzer.
package frontend

import "github.com/xlang-toolchain/x64codegen/internal/micro"

// Type is the minimal value-shape information lowering needs: its width
// and whether it is a float.
type Type struct {
	Width MicroOpBits
	Float bool
	// StructFields is non-nil for struct types; Member access indexes into
	// it by name to find a byte offset and a field Type.
	StructFields map[string]StructField
}

type StructField struct {
	Offset int32
	Type   Type
}

// MicroOpBits mirrors micro.MicroOpBits so this package does not need to
// import micro for every trivial field — kept as a type alias so values
// interop without conversion.
type MicroOpBits = micro.MicroOpBits

// Const is a folded constant the constant manager would otherwise own.
// IsStruct constants short-circuit member access at lowering time without
// emitting any code (§4.7 "Member access on a constant struct").
type Const struct {
	Type      Type
	IntValue  uint64
	IsStruct  bool
	StructVal map[string]Const
}

// NodeKind tags which lowering rule in §4.7 applies.
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeConstRef
	NodeLocalRef
	NodeBinary
	NodeCompare
	NodeThreeWayCompare
	NodeConditional
	NodeIf
	NodeWhile
	NodeLoop
	NodeBreak
	NodeContinue
	NodeSwitch
	NodeCall
	NodeMember
	NodeRange
	NodeReturn
	NodeBlock
	NodeDefer
	NodeAssign
)

// Node is a tagged union over every AST shape internal/lower handles. Not
// every field is meaningful for every Kind — see internal/lower's
// per-kind lowering function for which fields it reads, mirroring the
// positional-meaning convention micro.MicroInstrOperand already uses.
type Node struct {
	Kind NodeKind
	Type Type

	// Literal / ConstRef
	Const Const

	// LocalRef: a stack-slot-resident local identified by a stable index.
	LocalIndex uint32

	// Binary / Compare / ThreeWayCompare
	Op              micro.MicroOp
	Cond            micro.MicroCond
	Children        []*Node
	OverflowChecked bool // Binary: wrap/promote modifier requests trap-on-overflow

	// Conditional / If
	Cond_, Then, Else *Node

	// While/Loop/Switch/Block body
	Body []*Node

	// Switch
	Cases       []SwitchCase
	Default     []*Node
	Complete    bool   // every possible selector value is covered (enables jump-table lowering)
	TableSymbol uint32 // rodata symbol handle for the jump table, pre-resolved upstream, valid only when Complete

	// Call
	CalleeName   uint32
	CalleeKind   CallKind
	CalleeSymbol uint32
	Args         []*Node

	// Member
	FieldName string

	// Range
	LowerBound, UpperBound *Node
	InductionLocal         uint32

	// Assign
	Target *Node
	Value  *Node

	// Defer
	Action *Node
}

type CallKind int

const (
	CallLocalKind CallKind = iota
	CallExternKind
	CallIndirectKind
)

type SwitchCase struct {
	ConstValue uint64
	Body       []*Node
}
