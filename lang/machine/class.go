package machine

// ObjClass is a class: its name and its method table (spec.md §3 "Class").
type ObjClass struct {
	Header
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) String() string { return c.Name.Chars }

// NewClass allocates an empty class (OpClass pushes one of these).
func (gc *GC) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: NewTable()}
	c.Type = ObjTypeClass
	gc.track(c, 48)
	return c
}

// ObjInstance is an instance of a class: a back-reference to its class plus
// its own field table (spec.md §3 "Instance").
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) String() string { return i.Class.Name.Chars + " instance" }

// NewInstance allocates a fresh instance with an empty field table.
func (gc *GC) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: NewTable()}
	i.Type = ObjTypeInstance
	gc.track(i, 32)
	return i
}

// ObjBoundMethod pairs a receiver with one of its class's closures (spec.md
// §3 "BoundMethod"), produced when a method is read as a value rather than
// called immediately via OpInvoke.
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

func (b *ObjBoundMethod) String() string { return b.Method.String() }

// NewBoundMethod allocates a bound method.
func (gc *GC) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Type = ObjTypeBoundMethod
	gc.track(b, 32)
	return b
}
