package machine

// ObjType tags the variant of a heap object (spec.md §3).
type ObjType uint8

//nolint:revive
const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

// Header is embedded in every heap object. It links the object into the
// GC's global allocation list and records whether the last mark phase
// reached it (spec.md §3 "Every object carries a header").
type Header struct {
	Type     ObjType
	IsMarked bool
	Next     Obj
}

func (h *Header) header() *Header { return h }

// isValue makes every type that embeds Header satisfy Value; each concrete
// type still supplies its own String().
func (h *Header) isValue() {}
