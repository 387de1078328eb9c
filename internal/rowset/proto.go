package rowset

import (
	"bytes"
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
)

// Proto converts s to its wire form. The full table is sent as an absent row set,
// which the service reads as "every row".
func (s RowSet) Proto() *bigtablepb.RowSet {
	if s.IsFullTable() {
		return nil
	}
	out := &bigtablepb.RowSet{}
	for _, k := range s.Keys {
		out.RowKeys = append(out.RowKeys, bytes.Clone(k))
	}
	for _, r := range s.Ranges {
		out.RowRanges = append(out.RowRanges, r.Proto())
	}
	return out
}

// Proto converts r to its wire form.
func (r Range) Proto() *bigtablepb.RowRange {
	out := &bigtablepb.RowRange{}
	if r.Start != nil {
		if r.Start.Inclusive {
			out.StartKey = &bigtablepb.RowRange_StartKeyClosed{StartKeyClosed: bytes.Clone(r.Start.Key)}
		} else {
			out.StartKey = &bigtablepb.RowRange_StartKeyOpen{StartKeyOpen: bytes.Clone(r.Start.Key)}
		}
	}
	if r.End != nil {
		if r.End.Inclusive {
			out.EndKey = &bigtablepb.RowRange_EndKeyClosed{EndKeyClosed: bytes.Clone(r.End.Key)}
		} else {
			out.EndKey = &bigtablepb.RowRange_EndKeyOpen{EndKeyOpen: bytes.Clone(r.End.Key)}
		}
	}
	return out
}

// FromProto converts a wire row set. A nil or empty row set selects the full table,
// and an empty boundary key means that side is unbounded.
func FromProto(p *bigtablepb.RowSet) RowSet {
	if p == nil || (len(p.GetRowKeys()) == 0 && len(p.GetRowRanges()) == 0) {
		return FullTable()
	}
	s := RowSet{}
	for _, k := range p.GetRowKeys() {
		s.Keys = append(s.Keys, bytes.Clone(k))
	}
	for _, r := range p.GetRowRanges() {
		s.Ranges = append(s.Ranges, rangeFromProto(r))
	}
	return s
}

func rangeFromProto(p *bigtablepb.RowRange) Range {
	r := Range{}
	switch start := p.GetStartKey().(type) {
	case *bigtablepb.RowRange_StartKeyClosed:
		if len(start.StartKeyClosed) > 0 {
			r.Start = Closed(start.StartKeyClosed)
		}
	case *bigtablepb.RowRange_StartKeyOpen:
		if len(start.StartKeyOpen) > 0 {
			r.Start = Open(start.StartKeyOpen)
		}
	}
	switch end := p.GetEndKey().(type) {
	case *bigtablepb.RowRange_EndKeyClosed:
		if len(end.EndKeyClosed) > 0 {
			r.End = Closed(end.EndKeyClosed)
		}
	case *bigtablepb.RowRange_EndKeyOpen:
		if len(end.EndKeyOpen) > 0 {
			r.End = Open(end.EndKeyOpen)
		}
	}
	return r
}
