// Package backend is the machine-code façade (§6): it owns the
// reader-writer-locked shared resources compiling many functions
// concurrently needs (the identifier interner and symbol table, §5),
// drives internal/passes.Manager per function, and links the resulting
// per-function code into one text section with a resolved relocation
// table and jump-table rodata. Grounded on the teacher's
// backend.Compiler/Machine split (wazevo/backend), generalized from
// "one Wasm module, many functions" to "one compiled unit, many
// functions" here.
package backend

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/frontend"
	"github.com/xlang-toolchain/x64codegen/internal/lower"
	"github.com/xlang-toolchain/x64codegen/internal/metrics"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
	"github.com/xlang-toolchain/x64codegen/internal/passes"
)

// Symbol is one module-wide symbol-table entry (§5), keyed by its
// source-level name rather than the interned uint32 handle
// x64.Encoder.InternSymbol tracks per function.
type Symbol struct {
	Name  string
	Kind  x64.SymbolKind
	Value int64
	Index uint32
}

// Facade is the entry point external callers drive: DefineSymbol as
// functions/externs/data are discovered, then CompileFunction (safe to
// call from multiple goroutines at once — each call owns its own
// micro.Builder and x64.Encoder, touching shared state only through the
// mutex-guarded symbol table), then Link once every function is compiled.
type Facade struct {
	log *logrus.Entry

	mu      sync.RWMutex
	symbols []Symbol
	byName  map[string]uint32
}

// NewFacade returns an empty façade. A nil logger falls back to the
// standard logrus logger, matching the encoder/builder convention.
func NewFacade(log *logrus.Entry) *Facade {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Facade{log: log, byName: map[string]uint32{}}
}

// DefineSymbol interns name under kind and returns its stable, module-wide
// symbol index — the handle lower.Function's Call nodes and dense
// switches carry as CalleeSymbol/TableSymbol. Safe for concurrent use.
func (f *Facade) DefineSymbol(name string, kind x64.SymbolKind) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx, ok := f.byName[name]; ok {
		return idx
	}
	idx := uint32(len(f.symbols))
	f.symbols = append(f.symbols, Symbol{Name: name, Kind: kind, Index: idx})
	f.byName[name] = idx
	return idx
}

// Symbols returns a snapshot of every defined symbol, sorted by name for
// reproducible diagnostic output (logging, the demo command's dump) rather
// than definition order, which depends on which concurrent caller won the
// race to DefineSymbol first.
func (f *Facade) Symbols() []Symbol {
	f.mu.RLock()
	snapshot := append([]Symbol(nil), f.symbols...)
	f.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
	return snapshot
}

func (f *Facade) symbolValue(idx uint32) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.symbols[idx].Value
}

func (f *Facade) setSymbolValue(idx uint32, value int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols[idx].Value = value
}

// FunctionConfig is everything CompileFunction needs to lower and emit one
// function body.
type FunctionConfig struct {
	Symbol    uint32
	CC        micro.CallConv
	Params    []lower.Param
	Body      []*frontend.Node
	DebugInfo bool
}

// CompiledFunction is one function's output before linking: code relative
// to its own start, relocations with in-function site offsets, and the
// jump-table requests its switches raised.
type CompiledFunction struct {
	Symbol       uint32
	Code         []byte
	Relocations  []micro.Relocation
	JumpTables   []lower.JumpTableRequest
	LabelOffsets map[micro.Label]uint32

	offset uint32 // assigned by Link
}

// CompileFunction runs the standard pass pipeline (§4.8) over cfg's body
// and returns its packaged, not-yet-linked output. Multiple goroutines may
// call this concurrently against the same Facade.
func (f *Facade) CompileFunction(cfg FunctionConfig) (*CompiledFunction, error) {
	b := micro.NewBuilder(micro.Config{DebugInfo: cfg.DebugInfo})
	frame := lower.Function(b, cfg.CC, f.log, cfg.Params, cfg.Body)
	return f.runPipeline(cfg.Symbol, cfg.CC, b, frame.JumpTables(), frame.LocalsFrameSize(), f.log)
}

// CompileFunctionFromBuilder runs the standard pass pipeline over an
// already-built micro IR, skipping internal/lower entirely. Used by
// callers (and the demo command) that construct micro IR directly rather
// than lowering from internal/frontend's AST.
func (f *Facade) CompileFunctionFromBuilder(symbol uint32, cc micro.CallConv, b *micro.Builder, log *logrus.Entry) (*CompiledFunction, error) {
	if log == nil {
		log = f.log
	}
	return f.runPipeline(symbol, cc, b, nil, 0, log)
}

func (f *Facade) runPipeline(symbol uint32, cc micro.CallConv, b *micro.Builder, jumpTables []lower.JumpTableRequest, localsFrameSize uint32, log *logrus.Entry) (*CompiledFunction, error) {
	enc := x64.NewEncoder(0, log)
	ctx := &passes.Context{Builder: b, Encoder: enc, CallConv: cc, Log: log, LocalsFrameSize: localsFrameSize}
	if err := passes.NewManager().Run(ctx); err != nil {
		return nil, errors.Wrapf(err, "compiling function symbol %d", symbol)
	}

	metrics.FunctionsCompiled.Inc()

	return &CompiledFunction{
		Symbol:       symbol,
		Code:         append([]byte(nil), enc.Buf.Bytes()...),
		Relocations:  enc.Relocations(),
		JumpTables:   jumpTables,
		LabelOffsets: ctx.LabelOffsets,
	}, nil
}
