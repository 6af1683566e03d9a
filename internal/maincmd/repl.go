package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/sirupsen/logrus"

	"github.com/mna/bryony/lang/compiler"
	"github.com/mna/bryony/lang/debug"
	"github.com/mna/bryony/lang/machine"
)

// Repl reads one line at a time from stdio.Stdin and interprets each as its
// own compile unit against a single, long-lived VM, so top-level var/fun/
// class declarations persist across lines (spec.md §6, original clox
// repl() behavior: one VM for the whole session).
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, log *logrus.Logger) mainer.ExitCode {
	gc := machine.NewGC(log)
	vm := machine.NewVM(gc, machine.Stdio{Out: stdio.Stdout, Err: stdio.Stderr})
	defer vm.Close()

	in := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !in.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return ExitOK
		}

		line := in.Text()
		if line == "" {
			continue
		}

		fn, err := compiler.Compile(gc, line)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			continue
		}
		if c.Trace {
			debug.DisassembleChunk(stdio.Stderr, &fn.Chunk, "<script>")
		}
		vm.Run(fn)
	}
}
