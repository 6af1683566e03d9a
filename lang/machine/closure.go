package machine

// ObjUpvalue is a captured stack slot (spec.md §3 "Upvalue"). While Open, it
// points directly into the owning frame's stack window; Location is
// repointed at Closed the moment it is closed, so callers never need to
// branch on state — Get/Set always go through Location. The transition is
// one-way (spec.md Invariant 4).
type ObjUpvalue struct {
	Header
	Location *Value
	Closed   Value
	Next     *ObjUpvalue // next entry in the VM's open-upvalue list; nil once closed
}

func (u *ObjUpvalue) String() string { return "upvalue" }

// NewUpvalue allocates an Upvalue referencing the given stack slot.
func (gc *GC) NewUpvalue(slot *Value) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot}
	u.Type = ObjTypeUpvalue
	gc.track(u, 24)
	return u
}

// Get reads the upvalue's current value, open or closed.
func (u *ObjUpvalue) Get() Value { return *u.Location }

// Set writes the upvalue's current value, open or closed.
func (u *ObjUpvalue) Set(v Value) { *u.Location = v }

// IsOpen reports whether this upvalue still references a live stack slot.
func (u *ObjUpvalue) IsOpen() bool { return u.Location != &u.Closed }

// close transitions the upvalue from Open to Closed: it copies the current
// referent into Closed and repoints Location at its own storage, then
// clears its Next link. The caller removes it from the open list first.
func (u *ObjUpvalue) close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
	u.Next = nil
}

// ObjClosure pairs a Function with its resolved upvalues (spec.md §3
// "Closure"). The Upvalues slice is sized to Function.UpvalueCount and must
// be fully populated (Invariant 5) before the closure becomes reachable
// from user code — OpClosure does so in one step, synchronously.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) String() string { return c.Function.String() }

// NewClosure allocates a closure over fn with upvalueCount empty upvalue
// slots, ready for the VM to wire per the OpClosure operand list.
func (gc *GC) NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.Type = ObjTypeClosure
	gc.track(c, uint64(32+8*fn.UpvalueCount))
	return c
}
