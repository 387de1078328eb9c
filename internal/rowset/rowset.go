// Package rowset describes which rows a read should return: explicit row keys plus
// ranges over row keys whose boundaries are independently open or closed.
//
// All values in this package are immutable. Every operation returns a new value and
// never mutates its receiver, so a RowSet can be handed to a retry and narrowed
// without affecting the request it was built from.
package rowset

import (
	"bytes"
	"fmt"
	"strings"
)

// Key is a row key. Keys are ordered by unsigned lexicographic byte comparison.
type Key []byte

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to or after o.
func (k Key) Compare(o Key) int {
	return bytes.Compare(k, o)
}

func (k Key) String() string {
	return fmt.Sprintf("%q", []byte(k))
}

// Boundary is one end of a Range. A nil *Boundary is unbounded.
type Boundary struct {
	Key       Key
	Inclusive bool
}

// Closed returns an inclusive boundary at key.
func Closed(key Key) *Boundary {
	return &Boundary{Key: bytes.Clone(key), Inclusive: true}
}

// Open returns an exclusive boundary at key.
func Open(key Key) *Boundary {
	return &Boundary{Key: bytes.Clone(key), Inclusive: false}
}

// Range is an interval over row keys. A nil Start or End leaves that side unbounded.
type Range struct {
	Start *Boundary
	End   *Boundary
}

// NewRange returns the range between start and end; either may be nil.
func NewRange(start, end *Boundary) Range {
	return Range{Start: start, End: end}
}

// InfiniteRange returns [start, +inf).
func InfiniteRange(start Key) Range {
	return Range{Start: Closed(start)}
}

// PrefixRange returns the range covering every key that begins with prefix.
func PrefixRange(prefix Key) Range {
	if len(prefix) == 0 {
		return Range{}
	}
	r := Range{Start: Closed(prefix)}
	if end := prefixSuccessor(prefix); end != nil {
		r.End = Open(end)
	}
	return r
}

// prefixSuccessor returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (the prefix is all 0xff bytes).
func prefixSuccessor(prefix Key) Key {
	end := bytes.Clone(prefix)
	for len(end) > 0 {
		last := len(end) - 1
		if end[last] != 0xff {
			end[last]++
			return end
		}
		end = end[:last]
	}
	return nil
}

// Contains reports whether key falls inside r.
func (r Range) Contains(key Key) bool {
	if r.Start != nil {
		c := key.Compare(r.Start.Key)
		if c < 0 || (c == 0 && !r.Start.Inclusive) {
			return false
		}
	}
	if r.End != nil {
		c := key.Compare(r.End.Key)
		if c > 0 || (c == 0 && !r.End.Inclusive) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no key can satisfy r.
func (r Range) IsEmpty() bool {
	if r.Start == nil || r.End == nil {
		return false
	}
	c := r.Start.Key.Compare(r.End.Key)
	return c > 0 || (c == 0 && !(r.Start.Inclusive && r.End.Inclusive))
}

// AdvancePast narrows r so that it only covers keys strictly greater than key.
// The start moves to (key, exclusive) when key is at or past the current start;
// otherwise r is returned unchanged. The boolean is false when the narrowed range
// is empty and must be dropped.
func (r Range) AdvancePast(key Key) (Range, bool) {
	if r.Start == nil || key.Compare(r.Start.Key) >= 0 {
		r = Range{Start: Open(key), End: r.End}
	}
	if r.IsEmpty() {
		return Range{}, false
	}
	return r, true
}

func (r Range) String() string {
	var b strings.Builder
	if r.Start == nil {
		b.WriteString("(-inf")
	} else {
		if r.Start.Inclusive {
			b.WriteByte('[')
		} else {
			b.WriteByte('(')
		}
		b.WriteString(r.Start.Key.String())
	}
	b.WriteByte(',')
	if r.End == nil {
		b.WriteString("+inf)")
	} else {
		b.WriteString(r.End.Key.String())
		if r.End.Inclusive {
			b.WriteByte(']')
		} else {
			b.WriteByte(')')
		}
	}
	return b.String()
}

// RowSet is the unit of "what to read": explicit row keys plus ranges.
//
// The zero RowSet, with neither keys nor ranges, selects the whole table. A RowSet
// whose every key and range has been consumed by AdvancePast is exhausted: it
// selects nothing and a read over it must not be issued.
type RowSet struct {
	Keys   []Key
	Ranges []Range

	exhausted bool
}

// FullTable returns the RowSet that selects every row.
func FullTable() RowSet {
	return RowSet{}
}

// Of returns a RowSet over the given keys and ranges. With no arguments it is the
// full table.
func Of(keys []Key, ranges ...Range) RowSet {
	s := RowSet{}
	for _, k := range keys {
		s.Keys = append(s.Keys, bytes.Clone(k))
	}
	s.Ranges = append(s.Ranges, ranges...)
	return s
}

// SingleRow returns the RowSet selecting exactly one key.
func SingleRow(key Key) RowSet {
	return Of([]Key{key})
}

// IsFullTable reports whether s carries no constraints and so selects every row.
func (s RowSet) IsFullTable() bool {
	return !s.exhausted && len(s.Keys) == 0 && len(s.Ranges) == 0
}

// IsExhausted reports whether every constraint of s has been consumed.
func (s RowSet) IsExhausted() bool {
	return s.exhausted
}

// Contains reports whether key is selected by s.
func (s RowSet) Contains(key Key) bool {
	if s.exhausted {
		return false
	}
	if s.IsFullTable() {
		return true
	}
	for _, k := range s.Keys {
		if k.Compare(key) == 0 {
			return true
		}
	}
	for _, r := range s.Ranges {
		if r.Contains(key) {
			return true
		}
	}
	return false
}

// AdvancePast returns the RowSet of rows still unread once every row up to and
// including key has been delivered. Keys at or before key are dropped, ranges are
// narrowed and dropped once empty, and the full table becomes (key, +inf).
func (s RowSet) AdvancePast(key Key) RowSet {
	if s.exhausted {
		return s
	}
	if s.IsFullTable() {
		return RowSet{Ranges: []Range{{Start: Open(key)}}}
	}

	out := RowSet{}
	for _, k := range s.Keys {
		if k.Compare(key) > 0 {
			out.Keys = append(out.Keys, k)
		}
	}
	for _, r := range s.Ranges {
		if narrowed, ok := r.AdvancePast(key); ok {
			out.Ranges = append(out.Ranges, narrowed)
		}
	}
	if len(out.Keys) == 0 && len(out.Ranges) == 0 {
		out.exhausted = true
	}
	return out
}

func (s RowSet) String() string {
	switch {
	case s.exhausted:
		return "<exhausted>"
	case s.IsFullTable():
		return "<full table>"
	}
	keys := make([]string, 0, len(s.Keys))
	for _, k := range s.Keys {
		keys = append(keys, k.String())
	}
	ranges := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		ranges = append(ranges, r.String())
	}
	return fmt.Sprintf("keys=[%s] ranges=[%s]", strings.Join(keys, " "), strings.Join(ranges, " "))
}
