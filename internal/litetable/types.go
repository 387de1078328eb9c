package litetable

import (
	"bytes"
)

// TimestampedValue is one version of a cell.
type TimestampedValue struct {
	Value     []byte   `json:"value"`
	Timestamp int64    `json:"timestamp"` // microseconds since the epoch, as sent by the service
	Labels    []string `json:"labels,omitempty"`
}

// Qualifier holds every version of one column, newest first as sent by the service.
type Qualifier struct {
	Name   []byte             `json:"name"`
	Values []TimestampedValue `json:"values"`
}

// Family groups the qualifiers of one column family in arrival order.
type Family struct {
	Name       string      `json:"name"`
	Qualifiers []Qualifier `json:"qualifiers"`
}

// VersionedQualifier maps qualifiers to their timestamped values
type VersionedQualifier map[string][]TimestampedValue

// Row defines a fully assembled row:
//
// Example:
//
//	Row{
//	  Key: []byte("row1"),
//	  Families: []Family{
//	    {Name: "family1", Qualifiers: []Qualifier{
//	      {Name: []byte("qualifier1"), Values: []TimestampedValue{{Value: []byte("v2"), Timestamp: 2000}}},
//	    }},
//	  },
//	}
//
// Families, qualifiers and values keep the order in which the service sent them, so a
// Row is safe to compare and to print deterministically.
type Row struct {
	Key      []byte   `json:"key"`
	Families []Family `json:"families"`
}

// Family returns the named column family.
func (r Row) Family(name string) (Family, bool) {
	for _, f := range r.Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// Latest returns the newest value of family:qualifier.
func (r Row) Latest(family string, qualifier []byte) ([]byte, bool) {
	f, ok := r.Family(family)
	if !ok {
		return nil, false
	}
	for _, q := range f.Qualifiers {
		if bytes.Equal(q.Name, qualifier) && len(q.Values) > 0 {
			return q.Values[0].Value, true
		}
	}
	return nil, false
}

// Columns returns the row as family → qualifier → values.
func (r Row) Columns() map[string]VersionedQualifier {
	cols := make(map[string]VersionedQualifier, len(r.Families))
	for _, f := range r.Families {
		vq, ok := cols[f.Name]
		if !ok {
			vq = make(VersionedQualifier, len(f.Qualifiers))
			cols[f.Name] = vq
		}
		for _, q := range f.Qualifiers {
			vq[string(q.Name)] = append(vq[string(q.Name)], q.Values...)
		}
	}
	return cols
}

// CellCount returns the number of values in the row.
func (r Row) CellCount() int {
	n := 0
	for _, f := range r.Families {
		for _, q := range f.Qualifiers {
			n += len(q.Values)
		}
	}
	return n
}
