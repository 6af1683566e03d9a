// Package run wires the compiler and the virtual machine together into a
// single interpret entry point (spec.md §6 "Top-level API").
package run

import (
	"github.com/sirupsen/logrus"

	"github.com/mna/bryony/lang/compiler"
	"github.com/mna/bryony/lang/machine"
)

// Options configures a single Interpret call. The zero value runs with no
// diagnostics and a fresh GC.
type Options struct {
	// Log receives GC and collection diagnostics when set (the CLI's
	// --trace flag wires this to a real logrus.Logger).
	Log *logrus.Logger
	// Stress forces a collection before every allocation, exercising GC
	// correctness rather than throughput (spec.md §8 Law 2).
	Stress bool
}

// Interpret compiles source and, if compilation succeeds, runs it to
// completion, writing program output and any error through stdio. The
// returned machine.ObjFunction-less design mirrors the original clox
// interpret() entry point: callers only ever need the InterpretResult.
func Interpret(source string, stdio machine.Stdio, opts Options) machine.InterpretResult {
	gc := machine.NewGC(opts.Log)
	gc.Stress = opts.Stress

	fn, err := compiler.Compile(gc, source)
	if err != nil {
		stdio.Err.Write([]byte(err.Error() + "\n"))
		return machine.InterpretCompileError
	}

	vm := machine.NewVM(gc, stdio)
	defer vm.Close()
	return vm.Run(fn)
}
