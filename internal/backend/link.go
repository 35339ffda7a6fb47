package backend

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

// FunctionLayout locates one function's final code within a LinkedModule's
// combined image.
type FunctionLayout struct {
	Offset uint32
	Size   uint32
}

// LinkedModule is the fully resolved output (§6's output contract): one
// contiguous image (functions' code followed by jump-table rodata) with
// every relocation already patched in place. There is no loader here —
// Image offsets stand in for final virtual addresses; a real loader would
// add its base address to every patched site, which this façade cannot
// know in advance.
type LinkedModule struct {
	Image     []byte
	Functions map[uint32]FunctionLayout
}

// Link concatenates every compiled function's code, appends a rodata
// island holding the dense-switch jump tables they raised, resolves every
// symbol to its final image offset, and patches every recorded relocation
// (§4.8 step 5, §3 Relocation kinds).
func (f *Facade) Link(funcs []*CompiledFunction) (*LinkedModule, error) {
	// CompileFunction callers may compile concurrently and collect results
	// in whatever order goroutines finish; sort by symbol first so the
	// image layout is reproducible across runs regardless of scheduling.
	sorted := append([]*CompiledFunction(nil), funcs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })
	funcs = sorted

	var text []byte
	layouts := make(map[uint32]FunctionLayout, len(funcs))
	for _, fn := range funcs {
		fn.offset = uint32(len(text))
		layouts[fn.Symbol] = FunctionLayout{Offset: fn.offset, Size: uint32(len(fn.Code))}
		text = append(text, fn.Code...)
		f.setSymbolValue(fn.Symbol, int64(fn.offset))
	}

	rodata, err := f.buildJumpTables(funcs, uint32(len(text)))
	if err != nil {
		return nil, err
	}
	image := append(text, rodata...)

	for _, fn := range funcs {
		for _, reloc := range fn.Relocations {
			if err := f.patchRelocation(image, fn.offset, reloc); err != nil {
				return nil, errors.Wrapf(err, "linking function symbol %d", fn.Symbol)
			}
		}
	}

	return &LinkedModule{Image: image, Functions: layouts}, nil
}

func (f *Facade) buildJumpTables(funcs []*CompiledFunction, textLen uint32) ([]byte, error) {
	var rodata []byte
	for _, fn := range funcs {
		for _, jt := range fn.JumpTables {
			base := int64(textLen) + int64(len(rodata))
			f.setSymbolValue(jt.TableSym, base)
			for _, label := range jt.Entries {
				off, ok := fn.LabelOffsets[label]
				if !ok {
					return nil, errors.Errorf("jump table for symbol %d references unplaced label %d", jt.TableSym, label)
				}
				target := int64(fn.offset) + int64(off)
				delta := target - base
				if delta < -(1<<31) || delta >= 1<<31 {
					return nil, errors.Errorf("jump table entry for symbol %d out of rel32 range", jt.TableSym)
				}
				var buf [4]byte
				binary.LittleEndian.PutUint32(buf[:], uint32(int32(delta)))
				rodata = append(rodata, buf[:]...)
			}
		}
	}
	return rodata, nil
}

// patchRelocation writes the final displacement or address for one
// relocation site directly into image, in place.
func (f *Facade) patchRelocation(image []byte, fnOffset uint32, reloc micro.Relocation) error {
	site := fnOffset + reloc.SiteOffset
	target := f.symbolValue(reloc.SymbolIdx)

	switch reloc.Kind {
	case micro.RelocAMD64REL32:
		if int(site)+4 > len(image) {
			return errors.Errorf("relocation site %d out of bounds", site)
		}
		disp := target - int64(site+4)
		if disp < -(1<<31) || disp >= 1<<31 {
			return errors.Errorf("relocation at %d out of rel32 range (%d)", site, disp)
		}
		binary.LittleEndian.PutUint32(image[site:site+4], uint32(int32(disp)))
	case micro.RelocAMD64ADDR64:
		if int(site)+8 > len(image) {
			return errors.Errorf("relocation site %d out of bounds", site)
		}
		binary.LittleEndian.PutUint64(image[site:site+8], uint64(target))
	default:
		return errors.Errorf("unknown relocation kind %v at site %d", reloc.Kind, site)
	}
	return nil
}
