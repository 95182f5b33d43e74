// Package table implements the open-addressed hash table used both to
// intern strings and to hold a VM's global variables.
package table

import "loxvm/internal/value"

const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
	maxLoadFactor          = 0.75
	initialCapacity        = 8
)

// HashString computes the FNV-1a hash of a string's raw bytes.
func HashString(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// entry is one slot. An empty slot has Key == nil, Value == value.Nil.
// A tombstone (deleted) slot has Key == nil, Value == value.NewBool(true) —
// distinguished from empty by the payload, exactly as clox does it, so
// no extra flag byte is needed.
type entry struct {
	Key   *value.Str
	Value value.Value
}

func (e entry) isEmpty() bool     { return e.Key == nil && e.Value.Type == value.TypeNil }
func (e entry) isTombstone() bool { return e.Key == nil && e.Value.Type == value.TypeBool && e.Value.Bool }

// Table is a linear-probed hash table keyed by interned string
// records. Growth doubles capacity and rehashes, dropping tombstones.
type Table struct {
	count   int // live entries + tombstones
	entries []entry
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Set inserts or overwrites key -> v. Returns true if key was not
// already present, including when it is stored in a reused tombstone
// slot; only a never-used slot adds to count.
func (t *Table) Set(key *value.Str, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoadFactor {
		t.grow()
	}

	e := t.findEntry(t.entries, key)
	wasNew := e.Key == nil
	if wasNew && e.isEmpty() {
		t.count++
	}
	e.Key = key
	e.Value = v
	return wasNew
}

// Get looks up key. ok is false if key is absent.
func (t *Table) Get(key *value.Str) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return value.Nil, false
	}
	return e.Value, true
}

// Delete removes key, leaving a tombstone so later probes that passed
// through this slot still find their target. Returns whether key was
// present.
func (t *Table) Delete(key *value.Str) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = value.NewBool(true) // tombstone sentinel
	return true
}

// FindString looks up a key by content rather than by an already-
// interned pointer; this is what interning uses to decide whether text
// has already been seen.
func (t *Table) FindString(text string, hash uint32) *value.Str {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.Key == nil {
			if e.isEmpty() {
				return nil
			}
			// tombstone: keep probing
		} else if e.Key.Hash == hash && e.Key.Text == text {
			return e.Key
		}
		index = (index + 1) & mask
	}
}

// findEntry returns the slot where key lives, or the first
// empty-or-tombstone slot on the probe chain if it isn't present
// (preferring the earliest tombstone seen, so deletions get reused).
func (t *Table) findEntry(entries []entry, key *value.Str) *entry {
	mask := uint32(len(entries) - 1)
	index := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[index]
		if e.Key == nil {
			if e.isEmpty() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.Key == key {
			return e
		}
		index = (index + 1) & mask
	}
}

func (t *Table) grow() {
	capacity := initialCapacity
	if len(t.entries) > 0 {
		capacity = len(t.entries) * 2
	}
	newEntries := make([]entry, capacity)
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key == nil {
			continue // skip empty slots and tombstones
		}
		dest := t.findEntry(newEntries, e.Key)
		dest.Key = e.Key
		dest.Value = e.Value
		t.count++
	}
	t.entries = newEntries
}
