package machine

// maxLoad is the load factor at which the table grows (spec.md §3 "Hash
// table"). Matches the classic open-addressing tuning of the design this is
// ported from (original_source/src/table.c).
const maxLoad = 0.75

// tombstone marks a deleted entry: the slot is unusable for a fresh
// insertion-stops-probing decision but must not break the probe chain for
// later keys that hashed to the same bucket (see the Tombstone glossary
// entry). An entry is a tombstone when key == nil and value is this
// sentinel; it is genuinely empty when key == nil and value == nil.
var tombstone Value = Bool(true)

type tableEntry struct {
	key   *ObjString
	value Value
}

// Table is an open-addressed hash map keyed by interned strings (spec.md
// §3/§4.5). It backs the string intern table (as a weak map), instance
// field tables, and class method tables — the same structure serving three
// roles, exactly as in the design it implements.
type Table struct {
	count   int // active entries + tombstones
	entries []tableEntry
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{} }

// Len returns the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.key != nil {
			n++
		}
	}
	return n
}

// Get returns the value associated with key, if any.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return nil, false
	}
	return e.value, true
}

// Set installs value for key, growing the table first if needed. It reports
// true if this inserted a brand new key (including one that reused a
// tombstone slot).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}

	idx := t.findEntryIndex(t.entries, key)
	entry := &t.entries[idx]
	isNewKey := entry.key == nil
	if isNewKey && entry.value == nil {
		// only a genuinely empty slot grows count; reusing a tombstone does not.
		t.count++
	}
	entry.key = key
	entry.value = value
	return isNewKey
}

// Delete removes key, leaving a tombstone so later probes for keys that
// collided with it still find them. It reports whether key was present.
//
// This never resurrects or blocks a later Set of the same key: Set treats a
// tombstone slot exactly like an empty one for the purpose of accepting a
// fresh key (spec.md §9 open question).
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntryIndex(t.entries, key)
	entry := &t.entries[e]
	if entry.key == nil {
		return false
	}
	entry.key = nil
	entry.value = tombstone
	return true
}

// AddAll copies every live entry of t into dst (used by OpInherit to copy a
// superclass's methods into a subclass).
func (t *Table) AddAll(dst *Table) {
	for _, e := range t.entries {
		if e.key != nil {
			dst.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by content rather than by pointer,
// which is how the intern table deduplicates at allocation time (spec.md
// §3 invariant 2) before an *ObjString even exists for the candidate bytes.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		switch {
		case e.key == nil:
			if e.value == nil {
				// genuinely empty: not found
				return nil
			}
			// tombstone: keep probing
		case e.key.Hash == hash && e.key.Chars == chars:
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

// Each calls fn for every live entry, in unspecified order. Used by the GC
// to blacken a class's method table or an instance's field table.
func (t *Table) Each(fn func(key *ObjString, value Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// RemoveUnmarked deletes every entry whose key is not marked, leaving a
// tombstone in its slot so probe chains of surviving keys stay intact. This
// is the GC's "remove weak refs" phase on the intern table (spec.md §4.5
// phase 3): an unreachable interned string must stop being found by
// FindString so it can be swept, and re-interning the same bytes afterwards
// must succeed exactly like inserting a brand new string.
func (t *Table) RemoveUnmarked() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.IsMarked {
			e.key = nil
			e.value = tombstone
		}
	}
}

func (t *Table) findEntryIndex(entries []tableEntry, key *ObjString) int {
	mask := uint32(len(entries) - 1)
	idx := key.Hash & mask
	var tombstoneIdx = -1
	for {
		e := &entries[idx]
		switch {
		case e.key == nil:
			if e.value == nil {
				if tombstoneIdx != -1 {
					return tombstoneIdx
				}
				return int(idx)
			}
			if tombstoneIdx == -1 {
				tombstoneIdx = int(idx)
			}
		case e.key == key:
			return int(idx)
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) findEntry(entries []tableEntry, key *ObjString) *tableEntry {
	return &entries[t.findEntryIndex(entries, key)]
}

func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

func (t *Table) adjustCapacity(capacity int) {
	fresh := make([]tableEntry, capacity)
	t.count = 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		idx := t.findEntryIndex(fresh, e.key)
		fresh[idx].key = e.key
		fresh[idx].value = e.value
		t.count++
	}
	t.entries = fresh
}
