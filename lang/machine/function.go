package machine

// ObjFunction is a compiled function: its arity, the number of upvalues its
// closures must allocate, its own Chunk, and an optional name (nil for the
// implicit top-level script function). Produced once by the compiler and
// never mutated afterwards (spec.md §3).
type ObjFunction struct {
	Header
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString // nil for <script>
}

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

// NewFunction allocates a fresh, empty ObjFunction.
func (gc *GC) NewFunction() *ObjFunction {
	f := &ObjFunction{}
	f.Type = ObjTypeFunction
	gc.track(f, 64)
	return f
}

// NativeFn is a host function bound into globals (spec.md §3 "Native").
type NativeFn func(argc int, args []Value) Value

// ObjNative wraps a host function so it can be called like any other
// Callable Value.
type ObjNative struct {
	Header
	Name string
	Fn   NativeFn
}

func (n *ObjNative) String() string { return "<native fn>" }

// NewNative allocates an ObjNative wrapping fn.
func (gc *GC) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.Type = ObjTypeNative
	gc.track(n, 32)
	return n
}
