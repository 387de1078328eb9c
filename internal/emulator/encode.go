package emulator

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/litetable/litetable-reader/internal/litetable"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// encodeRow renders row as cell chunks the way the service does: the row key only
// on the first chunk, family and qualifier only when they change, values longer
// than splitSize spread over several chunks, and a commit on the last chunk.
// A splitSize of zero never splits.
func encodeRow(row litetable.Row, splitSize int) []*bigtablepb.ReadRowsResponse_CellChunk {
	var chunks []*bigtablepb.ReadRowsResponse_CellChunk
	for _, fam := range row.Families {
		for qi, q := range fam.Qualifiers {
			for vi, v := range q.Values {
				first := &bigtablepb.ReadRowsResponse_CellChunk{
					TimestampMicros: v.Timestamp,
					Labels:          v.Labels,
				}
				if len(chunks) == 0 {
					first.RowKey = row.Key
				}
				if qi == 0 && vi == 0 {
					first.FamilyName = wrapperspb.String(fam.Name)
				}
				if vi == 0 {
					first.Qualifier = wrapperspb.Bytes(q.Name)
				}
				chunks = append(chunks, splitValue(first, v.Value, splitSize)...)
			}
		}
	}
	if len(chunks) > 0 {
		chunks[len(chunks)-1].RowStatus = &bigtablepb.ReadRowsResponse_CellChunk_CommitRow{CommitRow: true}
	}
	return chunks
}

// splitValue fills first with value, or with the first piece of it followed by
// continuation chunks.
func splitValue(first *bigtablepb.ReadRowsResponse_CellChunk, value []byte, splitSize int) []*bigtablepb.ReadRowsResponse_CellChunk {
	if splitSize <= 0 || len(value) <= splitSize {
		first.Value = value
		return []*bigtablepb.ReadRowsResponse_CellChunk{first}
	}

	total := int32(len(value))
	first.Value = value[:splitSize]
	first.ValueSize = total
	out := []*bigtablepb.ReadRowsResponse_CellChunk{first}

	for off := splitSize; off < len(value); off += splitSize {
		end := min(off+splitSize, len(value))
		c := &bigtablepb.ReadRowsResponse_CellChunk{Value: value[off:end]}
		if end < len(value) {
			c.ValueSize = total
		}
		out = append(out, c)
	}
	return out
}
