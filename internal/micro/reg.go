// Package micro implements the virtual three-address instruction stream
// (the "micro IR") that sits between the typed AST and the x86-64 encoder.
//
// A MicroReg is a packed identifier carrying a register class and an index.
// Physical integer indices map 1:1 onto the x86-64 general-purpose registers
// (Rax=0 .. R15=15); physical float indices map onto XMM0..XMM15. Virtual
// registers are allocated by the lowering layer before register allocation
// runs and must not survive to the emit pass.
package micro

import "fmt"

// RegClass is the class half of a packed MicroReg.
type RegClass uint8

const (
	// RegClassInvalid marks an uninitialized register; sentinel registers
	// use RegClassSentinel.
	RegClassInvalid RegClass = iota
	// RegClassPhysInt is a physical general-purpose register (Rax..R15).
	RegClassPhysInt
	// RegClassPhysFloat is a physical XMM register.
	RegClassPhysFloat
	// RegClassVirtInt is a virtual integer register, pre-allocation.
	RegClassVirtInt
	// RegClassVirtFloat is a virtual float register, pre-allocation.
	RegClassVirtFloat
	// RegClassSentinel groups non-allocatable pseudo-registers.
	RegClassSentinel
)

func (c RegClass) String() string {
	switch c {
	case RegClassPhysInt:
		return "phys-int"
	case RegClassPhysFloat:
		return "phys-float"
	case RegClassVirtInt:
		return "virt-int"
	case RegClassVirtFloat:
		return "virt-float"
	case RegClassSentinel:
		return "sentinel"
	default:
		return "invalid"
	}
}

// IsPhysical reports whether c denotes a physical (post-regalloc) register.
func (c RegClass) IsPhysical() bool { return c == RegClassPhysInt || c == RegClassPhysFloat }

// IsVirtual reports whether c denotes a pre-regalloc virtual register.
func (c RegClass) IsVirtual() bool { return c == RegClassVirtInt || c == RegClassVirtFloat }

// IsFloat reports whether c denotes the float/XMM side of the register file.
func (c RegClass) IsFloat() bool { return c == RegClassPhysFloat || c == RegClassVirtFloat }

// Sentinel indices, packed as RegClassSentinel registers so they compare
// unequal to any real register yet remain ordinary MicroReg values.
const (
	sentinelInvalid = iota
	sentinelInstructionPointer
	sentinelNoBase
)

// MicroReg is a packed (class, index) pair. Equality is bitwise on the
// packed uint32, matching the source's packed-register invariant.
type MicroReg uint32

const regIndexBits = 24

func packReg(class RegClass, index uint32) MicroReg {
	return MicroReg(uint32(class)<<regIndexBits | (index & (1<<regIndexBits - 1)))
}

// Class extracts the register class.
func (r MicroReg) Class() RegClass { return RegClass(uint32(r) >> regIndexBits) }

// Index extracts the class-relative index.
func (r MicroReg) Index() uint32 { return uint32(r) & (1<<regIndexBits - 1) }

// Valid reports whether r is anything other than the Invalid sentinel.
func (r MicroReg) Valid() bool { return r != Invalid }

// IsVirtual reports whether r must be replaced before encoding.
func (r MicroReg) IsVirtual() bool { return r.Class().IsVirtual() }

// IsPhysical reports whether r is directly encodable.
func (r MicroReg) IsPhysical() bool { return r.Class().IsPhysical() }

func (r MicroReg) String() string {
	switch r.Class() {
	case RegClassSentinel:
		switch r.Index() {
		case sentinelInvalid:
			return "<invalid-reg>"
		case sentinelInstructionPointer:
			return "rip"
		case sentinelNoBase:
			return "<no-base>"
		}
		return "<sentinel>"
	case RegClassPhysInt:
		if n, ok := physIntNames[r.Index()]; ok {
			return n
		}
	case RegClassPhysFloat:
		return fmt.Sprintf("xmm%d", r.Index())
	case RegClassVirtInt:
		return fmt.Sprintf("v%d(int)", r.Index())
	case RegClassVirtFloat:
		return fmt.Sprintf("v%d(float)", r.Index())
	}
	return fmt.Sprintf("<reg %d:%d>", r.Class(), r.Index())
}

var physIntNames = map[uint32]string{
	0: "rax", 1: "rcx", 2: "rdx", 3: "rbx", 4: "rsp", 5: "rbp", 6: "rsi", 7: "rdi",
	8: "r8", 9: "r9", 10: "r10", 11: "r11", 12: "r12", 13: "r13", 14: "r14", 15: "r15",
}

// Sentinels.
var (
	Invalid            = packReg(RegClassSentinel, sentinelInvalid)
	InstructionPointer = packReg(RegClassSentinel, sentinelInstructionPointer)
	NoBase             = packReg(RegClassSentinel, sentinelNoBase)
)

// Physical general-purpose registers, Rax=0..R15=15, matching the x86-64
// ModR/M/REX encoding order used throughout internal/encoder/x64.
var (
	Rax = PhysInt(0)
	Rcx = PhysInt(1)
	Rdx = PhysInt(2)
	Rbx = PhysInt(3)
	Rsp = PhysInt(4)
	Rbp = PhysInt(5)
	Rsi = PhysInt(6)
	Rdi = PhysInt(7)
	R8  = PhysInt(8)
	R9  = PhysInt(9)
	R10 = PhysInt(10)
	R11 = PhysInt(11)
	R12 = PhysInt(12)
	R13 = PhysInt(13)
	R14 = PhysInt(14)
	R15 = PhysInt(15)
)

// PhysInt builds the physical integer register with the given x86-64 index.
func PhysInt(index uint32) MicroReg { return packReg(RegClassPhysInt, index) }

// PhysFloat builds the physical XMM register with the given index.
func PhysFloat(index uint32) MicroReg { return packReg(RegClassPhysFloat, index) }

// VirtInt builds a fresh virtual integer register from a monotonically
// increasing per-function counter.
func VirtInt(index uint32) MicroReg { return packReg(RegClassVirtInt, index) }

// VirtFloat builds a fresh virtual float register from a monotonically
// increasing per-function counter.
func VirtFloat(index uint32) MicroReg { return packReg(RegClassVirtFloat, index) }

// IsSameRegisterClass implements the Optimization Oracle's
// is_same_register_class: both integer or both float, independent of
// physical/virtual.
func IsSameRegisterClass(a, b MicroReg) bool {
	return a.Class().IsFloat() == b.Class().IsFloat() &&
		(a.Class().IsPhysical() || a.Class().IsVirtual()) &&
		(b.Class().IsPhysical() || b.Class().IsVirtual())
}

// CalleeSaved is the host-ABI (Windows x64, per spec §4.7) set of
// registers the callee must preserve across a call. The prolog/epilog
// pass spills exactly the subset of this set that the function clobbers.
var CalleeSaved = map[MicroReg]bool{
	Rbx: true, Rbp: true, Rdi: true, Rsi: true, Rsp: true,
	R12: true, R13: true, R14: true, R15: true,
	PhysFloat(6): true, PhysFloat(7): true, PhysFloat(8): true, PhysFloat(9): true,
	PhysFloat(10): true, PhysFloat(11): true, PhysFloat(12): true, PhysFloat(13): true,
	PhysFloat(14): true, PhysFloat(15): true,
}

// ArgIntRegs and ArgFloatRegs give the Windows x64 calling-convention
// parameter registers the lowering layer's call sites materialise
// arguments into, in order. A "configured ABI" per spec §4.7.
var (
	ArgIntRegs   = []MicroReg{Rcx, Rdx, R8, R9}
	ArgFloatRegs = []MicroReg{PhysFloat(0), PhysFloat(1), PhysFloat(2), PhysFloat(3)}
)

// RetIntReg and RetFloatReg are the return-value registers of the
// configured ABI.
var (
	RetIntReg   = Rax
	RetFloatReg = PhysFloat(0)
)
