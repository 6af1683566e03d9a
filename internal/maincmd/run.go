package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/sirupsen/logrus"

	"github.com/mna/bryony/lang/compiler"
	"github.com/mna/bryony/lang/debug"
	"github.com/mna/bryony/lang/machine"
)

// Run compiles and executes the file at path, returning the exit code that
// reflects how the program finished (spec.md §6 exit codes 0/65/70/74).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, path string, log *logrus.Logger) mainer.ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitIOError
	}

	gc := machine.NewGC(log)
	fn, err := compiler.Compile(gc, string(src))
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitCompileError
	}

	if c.Trace {
		debug.DisassembleChunk(stdio.Stderr, &fn.Chunk, "<script>")
	}

	vm := machine.NewVM(gc, machine.Stdio{Out: stdio.Stdout, Err: stdio.Stderr})
	defer vm.Close()

	switch vm.Run(fn) {
	case machine.InterpretOK:
		return ExitOK
	case machine.InterpretRuntimeError:
		return ExitRuntimeError
	default:
		return ExitCompileError
	}
}
