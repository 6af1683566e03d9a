package machine

// ObjString is an immutable, interned UTF-8 string (spec.md §3). Its Hash
// is computed once at allocation time with FNV-1a, matching the original
// design (original_source/src/object.c hashString).
type ObjString struct {
	Header
	Chars string
	Hash  uint32
}

func (s *ObjString) String() string { return s.Chars }

// hashFNV1a computes the 32-bit FNV-1a hash of s.
func hashFNV1a(s string) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// NewString returns the unique *ObjString for chars, allocating and
// interning it if this is the first time these exact bytes have been seen
// (spec.md §3 invariant 2, Invariant 1 "Interning"). Every string the
// compiler or VM produces — literals, identifiers, concatenation results —
// must go through here.
func (gc *GC) NewString(chars string) *ObjString {
	hash := hashFNV1a(chars)
	if s := gc.strings.FindString(chars, hash); s != nil {
		return s
	}

	s := &ObjString{Chars: chars, Hash: hash}
	s.Type = ObjTypeString
	gc.track(s, uint64(24+len(chars)))
	gc.strings.Set(s, Nil) // value is unused; the table doubles as a set
	return s
}
