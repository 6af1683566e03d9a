package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/sirupsen/logrus"
)

const binName = "bryony"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

A bytecode compiler and virtual machine for a dynamically typed scripting
language.

With a <path> argument, compiles and runs that file. With no arguments,
starts an interactive REPL reading from stdin.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --trace                   Enable GC diagnostics and print a bytecode
                                 disassembly of the script before running.

More information on the %[1]s repository:
       https://github.com/mna/bryony
`, binName)
)

// Exit codes, per spec.md §6 "Top-level API".
const (
	ExitOK           = mainer.ExitCode(0)
	ExitUsage        = mainer.ExitCode(64)
	ExitCompileError = mainer.ExitCode(65)
	ExitRuntimeError = mainer.ExitCode(70)
	ExitIOError      = mainer.ExitCode(74)
)

// Cmd is the bryony command-line entry point: a file runner when given a
// path argument, a REPL otherwise.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Trace   bool `flag:"trace"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("%s: at most one file argument is expected", binName)
	}
	return nil
}

// Main parses flags and dispatches to Run (one file argument) or Repl (no
// arguments), returning the process exit code (spec.md §6).
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return ExitUsage
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return ExitOK
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return ExitOK
	}

	var log *logrus.Logger
	if c.Trace {
		log = logrus.New()
		log.SetLevel(logrus.DebugLevel)
		log.SetOutput(stdio.Stderr)
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if len(c.args) == 1 {
		return c.Run(ctx, stdio, c.args[0], log)
	}
	return c.Repl(ctx, stdio, log)
}
