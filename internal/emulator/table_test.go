package emulator

import (
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/stretchr/testify/require"
	"testing"
)

func cellRow(key string, values ...string) litetable.Row {
	q := litetable.Qualifier{Name: []byte("q")}
	for i, v := range values {
		q.Values = append(q.Values, litetable.TimestampedValue{Value: []byte(v), Timestamp: int64(len(values) - i)})
	}
	return litetable.Row{
		Key:      []byte(key),
		Families: []litetable.Family{{Name: "f", Qualifiers: []litetable.Qualifier{q}}},
	}
}

func TestTable_Put(t *testing.T) {
	req := require.New(t)
	tbl := NewTable()

	for _, k := range []string{"m", "a", "z", "c"} {
		req.NoError(tbl.Put(cellRow(k, "v-"+k)))
	}
	req.NoError(tbl.Put(cellRow("c", "replaced")))

	rows := tbl.Rows()
	req.Equal(4, tbl.Len())
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, string(r.Key))
	}
	req.Equal([]string{"a", "c", "m", "z"}, keys)
	req.Equal("replaced", string(rows[1].Families[0].Qualifiers[0].Values[0].Value))
}

func TestTable_PutRejects(t *testing.T) {
	tests := map[string]struct {
		row  litetable.Row
		want string
	}{
		"missing key": {row: cellRow("", "v"), want: "row key required"},
		"no cells":    {row: litetable.Row{Key: []byte("a")}, want: `row "a" has no cells`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := NewTable().Put(tc.row)
			require.EqualError(t, err, tc.want)
		})
	}
}
