package machine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/bryony/lang/machine"
)

func TestTableSetGetDelete(t *testing.T) {
	tbl := machine.NewTable()
	gc := machine.NewGC(nil)

	foo := gc.NewString("foo")
	bar := gc.NewString("bar")

	assert.True(t, tbl.Set(foo, machine.Number(1)))
	assert.False(t, tbl.Set(foo, machine.Number(2)), "re-setting an existing key is not a new key")

	v, ok := tbl.Get(foo)
	assert.True(t, ok)
	assert.Equal(t, machine.Number(2), v)

	_, ok = tbl.Get(bar)
	assert.False(t, ok)

	assert.True(t, tbl.Delete(foo))
	_, ok = tbl.Get(foo)
	assert.False(t, ok, "deleted key must not be found")

	assert.False(t, tbl.Delete(foo), "deleting twice reports false the second time")
}

func TestTableDeleteDoesNotBlockRedeclaration(t *testing.T) {
	// spec.md §9 open question: Set after a Delete of the same key must
	// succeed exactly like inserting a brand new key, never blocked by a
	// leftover tombstone.
	tbl := machine.NewTable()
	gc := machine.NewGC(nil)
	name := gc.NewString("x")

	tbl.Set(name, machine.Number(1))
	tbl.Delete(name)

	isNew := tbl.Set(name, machine.Number(2))
	assert.True(t, isNew)

	v, ok := tbl.Get(name)
	assert.True(t, ok)
	assert.Equal(t, machine.Number(2), v)
}

func TestTableAddAllCopiesLiveEntriesOnly(t *testing.T) {
	src := machine.NewTable()
	dst := machine.NewTable()
	gc := machine.NewGC(nil)

	a := gc.NewString("a")
	b := gc.NewString("b")
	src.Set(a, machine.Number(1))
	src.Set(b, machine.Number(2))
	src.Delete(b)

	src.AddAll(dst)

	_, ok := dst.Get(a)
	assert.True(t, ok)
	_, ok = dst.Get(b)
	assert.False(t, ok)
}

func TestTableGrowsPastInitialCapacity(t *testing.T) {
	tbl := machine.NewTable()
	gc := machine.NewGC(nil)

	for i := 0; i < 200; i++ {
		name := gc.NewString(string(rune('a')) + string(rune(i)))
		tbl.Set(name, machine.Number(float64(i)))
	}
	assert.Equal(t, 200, tbl.Len())
}

func TestFindStringDeduplicatesByContent(t *testing.T) {
	gc := machine.NewGC(nil)
	s1 := gc.NewString("hello")
	s2 := gc.NewString("hello")
	assert.Same(t, s1, s2, "interning: byte-equal strings are the same object")
	assert.True(t, machine.Equal(s1, s2))
}
