package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/bryony/lang/compiler"
	"github.com/mna/bryony/lang/machine"
)

func compile(t *testing.T, src string) (*machine.ObjFunction, error) {
	t.Helper()
	gc := machine.NewGC(nil)
	return compiler.Compile(gc, src)
}

func TestCompileValidProgramProducesAFunction(t *testing.T) {
	fn, err := compile(t, `print 1 + 2;`)
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.Equal(t, "<script>", fn.String())
	assert.Nil(t, fn.Name)
}

func TestInvalidAssignmentTargetIsACompileError(t *testing.T) {
	_, err := compile(t, `a + b = c;`)
	require.Error(t, err)
	// spec.md §6: exactly "[line L] Error[ at end| at 'lex']: message", with
	// no multierror count header or bullet.
	assert.Equal(t, "[line 1] Error at '=': Invalid assignment target.", err.Error())
}

func TestReadingLocalInItsOwnInitializerIsACompileError(t *testing.T) {
	_, err := compile(t, `{ var x = x; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't read local variable in its own initializer.")
}

func TestRedeclaringLocalInSameScopeIsACompileError(t *testing.T) {
	_, err := compile(t, `{ var x = 1; var x = 2; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable with this name in this scope.")
}

func TestReturningAValueFromTopLevelIsACompileError(t *testing.T) {
	_, err := compile(t, `return 1;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't return from top-level code.")
}

func TestReturningAValueFromAnInitializerIsACompileError(t *testing.T) {
	_, err := compile(t, `class C { init() { return 1; } }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't return a value from an initializer.")
}

func TestThisOutsideClassIsACompileError(t *testing.T) {
	_, err := compile(t, `print this;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't use 'this' outside of a class.")
}

func TestSuperOutsideClassIsACompileError(t *testing.T) {
	_, err := compile(t, `fun f() { super.foo(); }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't use 'super' outside of a class.")
}

func TestSuperWithNoSuperclassIsACompileError(t *testing.T) {
	_, err := compile(t, `class C { m() { super.foo(); } }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't use 'super' in a class with no superclass.")
}

func TestClassInheritingFromItselfIsACompileError(t *testing.T) {
	_, err := compile(t, `class C < C {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A class can't inherit from itself.")
}

func TestMultipleCompileErrorsAreAccumulatedViaSynchronize(t *testing.T) {
	_, err := compile(t, `
print ;
print ;
`)
	require.Error(t, err)
	// Each error stands on its own line, no count header, no bullets.
	assert.Equal(t,
		"[line 2] Error at ';': Expect expression.\n[line 3] Error at ';': Expect expression.",
		err.Error(),
	)
}

func TestTooManyConstantsIsACompileError(t *testing.T) {
	src := "var x = 0;\n"
	for i := 0; i < 300; i++ {
		src += "print \"s" + itoa(i) + "\";\n"
	}
	_, err := compile(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too many constants in one chunk.")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
