// Package metrics exposes ambient Prometheus instrumentation for the
// backend pipeline. None of it is part of the spec's external contract
// (§6); it mirrors the kind of per-subsystem counters weiyilai-calico
// wires through its dataplane packages, scoped here to passes, peephole
// rewrites, and the encoder.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PassesRun counts PassManager.Run invocations, labeled by pass name.
	PassesRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "passes",
		Name:      "run_total",
		Help:      "Number of times each backend pass has run.",
	}, []string{"pass"})

	// PeepholeRewritesApplied counts committed peephole rewrites, labeled
	// by rule name.
	PeepholeRewritesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "peephole",
		Name:      "rewrites_applied_total",
		Help:      "Number of peephole rewrites committed, by rule.",
	}, []string{"rule"})

	// PeepholeRewritesReverted counts rewrites rolled back because the
	// proposed mutation failed the encoder's conformance check.
	PeepholeRewritesReverted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "peephole",
		Name:      "rewrites_reverted_total",
		Help:      "Number of peephole rewrites reverted after failing conformance, by rule.",
	}, []string{"rule"})

	// InstructionsEncoded counts instructions successfully committed to
	// the code buffer (non-probe encodes only).
	InstructionsEncoded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "encoder",
		Name:      "instructions_encoded_total",
		Help:      "Number of micro instructions successfully encoded to bytes.",
	})

	// BytesEmitted sums the bytes written to function code buffers.
	BytesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "encoder",
		Name:      "bytes_emitted_total",
		Help:      "Total machine-code bytes emitted.",
	})

	// FunctionsCompiled counts functions compiled successfully by
	// Facade.CompileFunction and Facade.CompileFunctionFromBuilder.
	FunctionsCompiled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "x64codegen",
		Subsystem: "backend",
		Name:      "functions_compiled_total",
		Help:      "Number of function bodies successfully compiled to machine code.",
	})
)

// Registry is a dedicated registry rather than the global default one, so
// embedding applications can mount it under their own namespace without
// colliding with unrelated collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		PassesRun,
		PeepholeRewritesApplied,
		PeepholeRewritesReverted,
		InstructionsEncoded,
		BytesEmitted,
		FunctionsCompiled,
	)
}
