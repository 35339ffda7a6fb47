// Command x64codegendemo is a tiny, non-product driver that builds one
// hand-written function through the micro IR, runs it through the full
// pass pipeline, and prints the resulting disassembly-adjacent diagnostics
// and linked machine code. It exists to exercise internal/micro's
// FormatInstructions and internal/backend's Facade end to end, the way the
// teacher's cmd/wazero exercises wazero's own compile/run paths.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/xlang-toolchain/x64codegen/internal/backend"
	"github.com/xlang-toolchain/x64codegen/internal/encoder/x64"
	"github.com/xlang-toolchain/x64codegen/internal/micro"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)
	verbose := flag.Bool("v", false, "print the micro IR before encoding")
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())
	logrus.SetOutput(stdErr)

	b := buildAddFunction()

	if *verbose {
		fmt.Fprint(stdOut, micro.FormatInstructions(b, micro.RegPrintModeVerbose))
	}

	facade := backend.NewFacade(log)
	sym := facade.DefineSymbol("add", x64.SymbolFunction)

	compiled, err := facade.CompileFunctionFromBuilder(sym, micro.CallConvWindowsX64, b, log)
	if err != nil {
		fmt.Fprintln(stdErr, "compile failed:", err)
		return 1
	}

	linked, err := facade.Link([]*backend.CompiledFunction{compiled})
	if err != nil {
		fmt.Fprintln(stdErr, "link failed:", err)
		return 1
	}

	fmt.Fprintln(stdOut, hex.EncodeToString(linked.Image))
	return 0
}

// buildAddFunction hand-emits `add(a, b int64) int64 { return a + b }`
// directly against the builder, bypassing internal/lower/internal/frontend
// entirely — this demo exists to exercise the pass pipeline and encoder,
// not the AST lowering path.
func buildAddFunction() *micro.Builder {
	b := micro.NewBuilder(micro.Config{})
	a, c := micro.ArgIntRegs[0], micro.ArgIntRegs[1]
	b.OpBinaryRegReg(micro.OpAdd, a, c, micro.B64, micro.EmitNone)
	b.LoadRegReg(micro.RetIntReg, a, micro.B64)
	b.Ret()
	return b
}
