package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Globals is the VM's global variable table. It is backed by a swiss-table
// map rather than the hand-written Table type: globals have no tombstone
// requirement (Lox has no "undefine a global" operation), so the only
// behavior that matters is the define/set asymmetry described in spec.md §9
// — DefineGlobal always succeeds, SetGlobal on an undefined name is a
// runtime error — which this wrapper enforces with a plain presence check
// rather than probe-chain bookkeeping.
type Globals struct {
	m *swiss.Map[*ObjString, Value]
}

// NewGlobals returns an empty Globals table.
func NewGlobals() *Globals {
	return &Globals{m: swiss.NewMap[*ObjString, Value](32)}
}

// Define installs value for name, overwriting any previous value. Always
// succeeds.
func (g *Globals) Define(name *ObjString, value Value) {
	g.m.Put(name, value)
}

// Get returns the value bound to name.
func (g *Globals) Get(name *ObjString) (Value, bool) {
	return g.m.Get(name)
}

// Set overwrites the value bound to name. It returns an error without
// modifying the table if name has never been defined.
func (g *Globals) Set(name *ObjString, value Value) error {
	if _, ok := g.m.Get(name); !ok {
		return fmt.Errorf("Undefined variable '%s'.", name.Chars)
	}
	g.m.Put(name, value)
	return nil
}

// Each calls fn for every global, for the GC's root-marking pass.
func (g *Globals) Each(fn func(key *ObjString, value Value)) {
	g.m.Iter(func(k *ObjString, v Value) (stop bool) {
		fn(k, v)
		return false
	})
}
