package machine

import "fmt"

// Value is the tagged union manipulated by the compiler and VM (spec.md
// §3): Nil, Bool, Number or Obj (a heap reference). Concrete Go types
// implement it directly rather than through a boxed union, which is the
// idiomatic Go rendition of the same tag dispatch.
type Value interface {
	isValue()
	String() string
}

// NilValue is the single value of the Nil variant.
type NilValue struct{}

func (NilValue) isValue()        {}
func (NilValue) String() string  { return "nil" }

// Nil is the canonical Nil value.
var Nil = NilValue{}

// Bool is the Bool(bool) variant.
type Bool bool

func (Bool) isValue() {}
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Number is the Number(f64) variant.
type Number float64

func (Number) isValue() {}
func (n Number) String() string { return formatNumber(float64(n)) }

func formatNumber(f float64) string {
	return fmt.Sprintf("%v", f)
}

// Obj is implemented by every heap-allocated value (spec.md §3 "Heap
// object"). Each concrete Obj type embeds Header, which the GC uses to walk
// the allocation list and track mark state.
type Obj interface {
	Value
	header() *Header
}

// Truth reports whether v is "truthy". Falsey is exactly Nil and Bool(false)
// (spec.md §3); everything else, including Number(0), is truthy.
func Truth(v Value) bool {
	switch v := v.(type) {
	case NilValue:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Equal implements Value equality (spec.md §3): Nil==Nil; booleans and
// numbers compare by content; objects compare by identity except strings,
// which are identity-equal because they are interned (Invariant 1), so
// pointer identity alone is sufficient and correct for them too.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case NilValue:
		_, ok := b.(NilValue)
		return ok
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Number:
		bn, ok := b.(Number)
		return ok && a == bn
	case Obj:
		bo, ok := b.(Obj)
		return ok && a == bo
	default:
		return false
	}
}
