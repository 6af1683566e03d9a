package run_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/bryony/lang/compiler"
	"github.com/mna/bryony/lang/machine"
	"github.com/mna/bryony/lang/run"
)

func interpret(t *testing.T, source string, opts run.Options) (string, string, machine.InterpretResult) {
	t.Helper()
	var out, errOut bytes.Buffer
	res := run.Interpret(source, machine.Stdio{Out: &out, Err: &errOut}, opts)
	return out.String(), errOut.String(), res
}

func TestArithmetic(t *testing.T) {
	out, _, res := interpret(t, `print 1 + 2 * 3 - 4 / 2;`, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "5\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _, res := interpret(t, `print "foo" + "bar";`, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "foobar\n", out)
}

func TestClosureCapturesAndMutatesUpvalue(t *testing.T) {
	src := `
fun makeCounter() {
  var count = 0;
  fun counter() {
    count = count + 1;
    return count;
  }
  return counter;
}
var c = makeCounter();
print c();
print c();
print c();
`
	out, _, res := interpret(t, src, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClosuresShareTheSameCapturedVariable(t *testing.T) {
	src := `
fun makePair() {
  var value = 0;
  fun set(v) { value = v; }
  fun get() { return value; }
  set(42);
  return get();
}
print makePair();
`
	out, _, res := interpret(t, src, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "42\n", out)
}

func TestClassInheritanceAndSuper(t *testing.T) {
	src := `
class Animal {
  speak() {
    return "...";
  }
  describe() {
    return "An animal says " + this.speak();
  }
}
class Dog < Animal {
  speak() {
    return "Woof, but also: " + super.speak();
  }
}
print Dog().describe();
`
	out, _, res := interpret(t, src, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "An animal says Woof, but also: ...\n", out)
}

func TestInitializerImplicitlyReturnsThis(t *testing.T) {
	src := `
class Box {
  init(v) {
    this.v = v;
  }
}
var b = Box(7);
print b.v;
`
	out, _, res := interpret(t, src, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "7\n", out)
}

func TestRuntimeTypeErrorReportsAndExits(t *testing.T) {
	out, errOut, res := interpret(t, `print "a" - 1;`, run.Options{})
	assert.Equal(t, machine.InterpretRuntimeError, res)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Operands must be numbers.")
}

func TestUndefinedGlobalIsARuntimeError(t *testing.T) {
	_, errOut, res := interpret(t, `print x;`, run.Options{})
	assert.Equal(t, machine.InterpretRuntimeError, res)
	assert.Contains(t, errOut, "Undefined variable 'x'.")
}

func TestAssigningUndefinedGlobalIsARuntimeError(t *testing.T) {
	_, errOut, res := interpret(t, `x = 1;`, run.Options{})
	assert.Equal(t, machine.InterpretRuntimeError, res)
	assert.Contains(t, errOut, "Undefined variable 'x'.")
}

func TestRedeclaringGlobalAfterUseSucceeds(t *testing.T) {
	src := `
var x = 1;
print x;
var x = 2;
print x;
`
	out, _, res := interpret(t, src, run.Options{})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, "1\n2\n", out)
}

func TestSyntaxErrorIsACompileError(t *testing.T) {
	_, errOut, res := interpret(t, `print ;`, run.Options{})
	assert.Equal(t, machine.InterpretCompileError, res)
	assert.True(t, strings.Contains(errOut, "Expect expression."))
}

func TestStressGCDoesNotCorruptLiveState(t *testing.T) {
	src := `
fun build(n) {
  var s = "";
  for (var i = 0; i < n; i = i + 1) {
    s = s + "x";
  }
  return s;
}
print build(50);
`
	out, _, res := interpret(t, src, run.Options{Stress: true})
	assert.Equal(t, machine.InterpretOK, res)
	assert.Equal(t, strings.Repeat("x", 50)+"\n", out)
}

// replSession compiles and runs each source line against the same
// long-lived GC/VM, exactly like internal/maincmd/repl.go does: once a
// line's top-level script function returns, nothing keeps its Chunk (and
// the constants it interned) alive except whatever the line's side effects
// reached into the globals table or a live object graph.
func replSession(t *testing.T, gc *machine.GC, vm *machine.VM, lines ...string) {
	t.Helper()
	for _, line := range lines {
		fn, err := compiler.Compile(gc, line)
		require.NoError(t, err, "line: %s", line)
		vm.Run(fn)
	}
}

// TestGCKeepsTableKeysAliveAcrossCollections reproduces the exact REPL
// scenario spec.md's GC soundness law (§8 Law 2) and interning law (§8 Law
// 1) require: a field name whose only surviving reference, after its
// defining line's script function is swept, is as a key in an
// ObjInstance.Fields table (not as a Value anywhere else). A GC cycle that
// marks only table values and not table keys would intern a fresh, distinct
// *ObjString for "value" the next time that name is seen, and field lookups
// (which compare keys by pointer identity) would then spuriously report
// "Undefined property 'value'." even though the field was legitimately set.
func TestGCKeepsTableKeysAliveAcrossCollections(t *testing.T) {
	var out, errOut bytes.Buffer
	gc := machine.NewGC(nil)
	gc.Stress = true
	vm := machine.NewVM(gc, machine.Stdio{Out: &out, Err: &errOut})
	defer vm.Close()

	replSession(t, gc, vm,
		`class Box {}`,
		`var b = Box();`,
		`b.value = 42;`, // "value" is now live ONLY as a Fields table key
		`print b.value;`,
	)

	assert.Empty(t, errOut.String())
	assert.Equal(t, "42\n", out.String())
}

// TestGCKeepsGlobalNamesAliveAcrossCollections is the same scenario for the
// globals table: a global variable's name must survive collection even
// once the line that declared it is no longer a GC root, since Globals.Each
// must mark keys, not just values (mirrors the Fields-table case above but
// for lang/machine/globals.go instead of table.go).
func TestGCKeepsGlobalNamesAliveAcrossCollections(t *testing.T) {
	var out, errOut bytes.Buffer
	gc := machine.NewGC(nil)
	gc.Stress = true
	vm := machine.NewVM(gc, machine.Stdio{Out: &out, Err: &errOut})
	defer vm.Close()

	replSession(t, gc, vm,
		`var counter = 0;`,
		`counter = counter + 1;`,
		`counter = counter + 1;`,
		`print counter;`,
	)

	assert.Empty(t, errOut.String())
	assert.Equal(t, "2\n", out.String())
}
