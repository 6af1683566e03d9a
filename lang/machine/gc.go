package machine

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// DefaultGrowFactor is the factor nextGC grows by after a cycle (spec.md
// §4.5).
const DefaultGrowFactor = 2

// DefaultGCThreshold is the initial bytesAllocated threshold (in bytes of
// notional object size) that triggers the first collection.
const DefaultGCThreshold = 1 << 20

// RootWalker is called during mark-roots with a mark function; it should
// call mark(v) for every Value it directly holds that must survive a GC
// cycle. Compiler-in-progress state and the VM both register a RootWalker
// (spec.md §4.5 "Roots").
type RootWalker func(mark func(Value))

// GCStats are diagnostic counters surfaced through the --trace CLI flag and
// exercised directly by tests; they are bookkeeping only; they never
// influence collection decisions.
type GCStats struct {
	Cycles       int
	ObjectsFreed int
	BytesFreed   uint64
}

// GC implements the tracing mark-sweep collector described in spec.md §4.5.
// It is shared by the compiler and the VM (for one interpret() call, or for
// a whole REPL session); the compiler allocates through it (string
// interning, Function objects) whether or not a VM exists yet, which is why
// roots are contributed via RootWalker registration rather than read
// directly off a VM singleton.
type GC struct {
	objects Obj // head of the global allocation linked list

	bytesAllocated uint64
	nextGC         uint64
	growFactor     uint64

	strings *Table // weak intern table, deduplicates by content (Invariant 2)

	gray []Obj // worklist; grown with the system allocator, not track

	Stress bool // run a cycle before every allocation (spec.md §8 Law 2)
	Stats  GCStats

	walkers []RootWalker
	log     *logrus.Logger
}

// NewGC returns a ready-to-use GC. log may be nil, in which case GC
// diagnostics are discarded (the --trace flag supplies a real logger).
func NewGC(log *logrus.Logger) *GC {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel) // effectively silent by default
	}
	return &GC{
		nextGC:     DefaultGCThreshold,
		growFactor: DefaultGrowFactor,
		strings:    NewTable(),
		log:        log,
	}
}

// AddRoot registers a RootWalker and returns a function that unregisters
// it. The compiler calls this once per Compile() invocation (for its
// in-progress function chain); the VM calls it once in NewVM and
// unregisters it in Close.
func (gc *GC) AddRoot(w RootWalker) (remove func()) {
	gc.walkers = append(gc.walkers, w)
	idx := len(gc.walkers) - 1
	return func() {
		gc.walkers[idx] = nil
	}
}

// track registers a freshly allocated object at the head of the allocation
// list and accounts for its notional size, running a collection first if
// the growth threshold (or stress mode) demands it.
func (gc *GC) track(o Obj, size uint64) {
	gc.bytesAllocated += size
	if gc.Stress || gc.bytesAllocated > gc.nextGC {
		gc.Collect()
	}
	o.header().Next = gc.objects
	gc.objects = o
}

// Collect runs one full mark-sweep cycle.
func (gc *GC) Collect() {
	before := gc.bytesAllocated
	gc.markRoots()
	gc.trace()
	gc.strings.RemoveUnmarked()
	freedObjs, freedBytes := gc.sweep()

	gc.nextGC = gc.bytesAllocated * gc.growFactor
	if gc.nextGC < DefaultGCThreshold {
		gc.nextGC = DefaultGCThreshold
	}

	gc.Stats.Cycles++
	gc.Stats.ObjectsFreed += freedObjs
	gc.Stats.BytesFreed += freedBytes
	gc.log.WithFields(logrus.Fields{
		"before":    before,
		"after":     gc.bytesAllocated,
		"nextGC":    gc.nextGC,
		"freed":     freedObjs,
		"freedSize": freedBytes,
	}).Debug("gc cycle complete")
}

func (gc *GC) markRoots() {
	for _, w := range gc.walkers {
		if w == nil {
			continue
		}
		w(gc.markValue)
	}
}

func (gc *GC) markValue(v Value) {
	o, ok := v.(Obj)
	if !ok || v == nil {
		return
	}
	gc.markObject(o)
}

func (gc *GC) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.IsMarked {
		return
	}
	h.IsMarked = true
	gc.gray = append(gc.gray, o) // system allocator growth, not gc.track
}

func (gc *GC) trace() {
	for len(gc.gray) > 0 {
		n := len(gc.gray) - 1
		o := gc.gray[n]
		gc.gray = gc.gray[:n]
		gc.blacken(o)
	}
	gc.gray = slices.Clip(gc.gray[:0])
}

// blacken marks every outgoing reference of o, per the per-type rules in
// spec.md §4.5 phase 2.
func (gc *GC) blacken(o Obj) {
	switch v := o.(type) {
	case *ObjBoundMethod:
		gc.markValue(v.Receiver)
		gc.markObject(v.Method)
	case *ObjClass:
		gc.markObject(v.Name)
		v.Methods.Each(func(key *ObjString, val Value) {
			gc.markObject(key)
			gc.markValue(val)
		})
	case *ObjClosure:
		gc.markObject(v.Function)
		for _, uv := range v.Upvalues {
			gc.markObject(uv)
		}
	case *ObjFunction:
		gc.markObject(v.Name)
		for _, c := range v.Chunk.Constants {
			gc.markValue(c)
		}
	case *ObjInstance:
		gc.markObject(v.Class)
		v.Fields.Each(func(key *ObjString, val Value) {
			gc.markObject(key)
			gc.markValue(val)
		})
	case *ObjUpvalue:
		if v.Closed != nil {
			gc.markValue(v.Closed)
		}
	case *ObjString, *ObjNative:
		// no outgoing references
	}
}

func (gc *GC) sweep() (freedObjs int, freedBytes uint64) {
	var prev Obj
	obj := gc.objects
	for obj != nil {
		h := obj.header()
		if h.IsMarked {
			h.IsMarked = false
			prev = obj
			obj = h.Next
			continue
		}

		unreached := obj
		obj = h.Next
		if prev != nil {
			prev.header().Next = obj
		} else {
			gc.objects = obj
		}
		freedObjs++
		freedBytes += objSize(unreached)
	}
	gc.bytesAllocated -= freedBytes
	return freedObjs, freedBytes
}

func objSize(o Obj) uint64 {
	switch v := o.(type) {
	case *ObjString:
		return uint64(24 + len(v.Chars))
	case *ObjFunction:
		return 64
	case *ObjNative:
		return 32
	case *ObjClosure:
		return uint64(32 + 8*len(v.Upvalues))
	case *ObjUpvalue:
		return 24
	case *ObjClass:
		return 48
	case *ObjInstance:
		return 32
	case *ObjBoundMethod:
		return 32
	default:
		return 16
	}
}
