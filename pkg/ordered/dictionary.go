// Package ordered provides the insertion-ordered and unordered keyed
// container primitives the replica builds every projected collection on:
// Dictionary for chats, per-chat messages, and label associations, and
// Repository for labels.
package ordered

// InsertMode controls which end of the sequence Dictionary.Upsert inserts
// a new entry at. It has no effect when the entry already exists.
type InsertMode int

const (
	// Append inserts new entries at the tail of the sequence.
	Append InsertMode = iota
	// Prepend inserts new entries at the head of the sequence.
	Prepend
)

// Dictionary is an insertion-ordered, keyed sequence of values. It gives
// O(1) keyed lookup via an index alongside an array that preserves
// insertion order, so both "find by id" and "iterate in order" are cheap.
//
// Dictionary is not safe for concurrent use; callers serialize access
// (the replica does this via its single-writer discipline and a
// read-write lock around queries).
type Dictionary[V any] struct {
	idOf  func(V) string
	items []V
	index map[string]int // id -> position in items
}

// NewDictionary constructs an empty Dictionary. idOf must return a stable,
// non-empty id for any value the Dictionary will ever hold.
func NewDictionary[V any](idOf func(V) string) *Dictionary[V] {
	return &Dictionary[V]{
		idOf:  idOf,
		items: nil,
		index: make(map[string]int),
	}
}

// Len returns the number of entries.
func (d *Dictionary[V]) Len() int {
	return len(d.items)
}

// Upsert inserts v if idOf(v) is new, at the end chosen by mode, or
// replaces the stored value in place (preserving its position) if
// idOf(v) already exists.
func (d *Dictionary[V]) Upsert(v V, mode InsertMode) {
	id := d.idOf(v)
	if pos, ok := d.index[id]; ok {
		d.items[pos] = v
		return
	}

	switch mode {
	case Prepend:
		d.items = append([]V{v}, d.items...)
		d.reindex()
	default:
		d.items = append(d.items, v)
		d.index[id] = len(d.items) - 1
	}
}

// Get returns the stored value for id, or the zero value and false if
// absent.
func (d *Dictionary[V]) Get(id string) (V, bool) {
	var zero V
	pos, ok := d.index[id]
	if !ok {
		return zero, false
	}
	return d.items[pos], true
}

// Update replaces the stored value for idOf(v) in place. It returns false
// without modifying anything if no entry with that id exists.
func (d *Dictionary[V]) Update(v V) bool {
	pos, ok := d.index[d.idOf(v)]
	if !ok {
		return false
	}
	d.items[pos] = v
	return true
}

// UpdateFunc locates the entry by id and replaces it with merge(existing).
// It returns false without calling merge if no entry with that id exists.
// This is the primitive updateAssign is built from: merge is expected to
// copy forward any field the caller doesn't want to touch.
func (d *Dictionary[V]) UpdateFunc(id string, merge func(V) V) bool {
	pos, ok := d.index[id]
	if !ok {
		return false
	}
	d.items[pos] = merge(d.items[pos])
	return true
}

// Remove deletes the entry with idOf(v) == id. It returns whether an
// entry existed.
func (d *Dictionary[V]) Remove(id string) bool {
	pos, ok := d.index[id]
	if !ok {
		return false
	}
	d.items = append(d.items[:pos], d.items[pos+1:]...)
	d.reindex()
	return true
}

// Clear empties the sequence and the index.
func (d *Dictionary[V]) Clear() {
	d.items = nil
	d.index = make(map[string]int)
}

// Filter retains only entries for which keep returns true, preserving the
// relative order of the surviving entries.
func (d *Dictionary[V]) Filter(keep func(V) bool) {
	kept := d.items[:0:0]
	for _, v := range d.items {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	d.items = kept
	d.reindex()
}

// Values returns the entries in insertion order. The returned slice is
// owned by the caller; mutating it does not affect the Dictionary, but
// mutating pointer-typed elements does.
func (d *Dictionary[V]) Values() []V {
	out := make([]V, len(d.items))
	copy(out, d.items)
	return out
}

// ToJSON returns the array-serialization form: the entries in order.
// Marshal the result with encoding/json to obtain the wire form described
// in the snapshot format.
func (d *Dictionary[V]) ToJSON() []V {
	return d.Values()
}

// FromJSON clears the Dictionary and reinserts arr in the given order.
func (d *Dictionary[V]) FromJSON(arr []V) {
	d.Clear()
	for _, v := range arr {
		d.Upsert(v, Append)
	}
}

// IndexOf returns the position of id in insertion order, or -1 if absent.
func (d *Dictionary[V]) IndexOf(id string) int {
	pos, ok := d.index[id]
	if !ok {
		return -1
	}
	return pos
}

// Prefix returns up to limit entries from the head of the sequence.
func (d *Dictionary[V]) Prefix(limit int) []V {
	if limit > len(d.items) {
		limit = len(d.items)
	}
	out := make([]V, limit)
	copy(out, d.items[:limit])
	return out
}

// Before returns up to limit entries strictly preceding id, in order. It
// returns an empty slice if id is absent.
func (d *Dictionary[V]) Before(id string, limit int) []V {
	pos := d.IndexOf(id)
	if pos < 0 {
		return []V{}
	}
	start := 0
	if pos > limit {
		start = pos - limit
	}
	out := make([]V, pos-start)
	copy(out, d.items[start:pos])
	return out
}

// After returns up to limit entries strictly following id, in order. It
// returns an empty slice if id is absent.
func (d *Dictionary[V]) After(id string, limit int) []V {
	pos := d.IndexOf(id)
	if pos < 0 {
		return []V{}
	}
	start := pos + 1
	end := start + limit
	if end > len(d.items) {
		end = len(d.items)
	}
	if start >= end {
		return []V{}
	}
	out := make([]V, end-start)
	copy(out, d.items[start:end])
	return out
}

// Last returns the final entry in insertion order, or the zero value and
// false if the Dictionary is empty.
func (d *Dictionary[V]) Last() (V, bool) {
	var zero V
	if len(d.items) == 0 {
		return zero, false
	}
	return d.items[len(d.items)-1], true
}

// reindex rebuilds the index from scratch after a structural change
// (removal, filter, prepend) that shifts positions.
func (d *Dictionary[V]) reindex() {
	d.index = make(map[string]int, len(d.items))
	for i, v := range d.items {
		d.index[d.idOf(v)] = i
	}
}
