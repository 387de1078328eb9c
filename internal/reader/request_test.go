package reader

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/google/go-cmp/cmp"
	"github.com/litetable/litetable-reader/internal/rowset"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/testing/protocmp"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	filter := &bigtablepb.RowFilter{Filter: &bigtablepb.RowFilter_FamilyNameRegexFilter{FamilyNameRegexFilter: "profile"}}

	tests := map[string]struct {
		rows   rowset.RowSet
		filter *bigtablepb.RowFilter
		limit  int64
		want   *bigtablepb.ReadRowsRequest
	}{
		"full table without limit": {
			rows: rowset.FullTable(),
			want: &bigtablepb.ReadRowsRequest{TableName: tableName, AppProfileId: "default"},
		},
		"keys ranges filter and limit": {
			rows:   rowset.Of([]rowset.Key{rowset.Key("k")}, rowset.PrefixRange(rowset.Key("user#"))),
			filter: filter,
			limit:  25,
			want: &bigtablepb.ReadRowsRequest{
				TableName:    tableName,
				AppProfileId: "default",
				Rows: &bigtablepb.RowSet{
					RowKeys: [][]byte{[]byte("k")},
					RowRanges: []*bigtablepb.RowRange{{
						StartKey: &bigtablepb.RowRange_StartKeyClosed{StartKeyClosed: []byte("user#")},
						EndKey:   &bigtablepb.RowRange_EndKeyOpen{EndKeyOpen: []byte("user$")},
					}},
				},
				Filter:    filter,
				RowsLimit: 25,
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := buildRequest(tableName, "default", tc.rows, tc.filter, tc.limit)
			if diff := cmp.Diff(tc.want, got, protocmp.Transform()); diff != "" {
				t.Errorf("buildRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildRequest_ClonesFilter(t *testing.T) {
	filter := &bigtablepb.RowFilter{Filter: &bigtablepb.RowFilter_CellsPerColumnLimitFilter{CellsPerColumnLimitFilter: 1}}

	got := buildRequest(tableName, "", rowset.FullTable(), filter, 0)
	require.NotSame(t, filter, got.GetFilter())
	require.Equal(t, int32(1), got.GetFilter().GetCellsPerColumnLimitFilter())
}

func TestAttemptState_Request(t *testing.T) {
	s := newAttemptState(ReadSpec{Limit: 10}).started().delivered(rowset.Key("b")).delivered(rowset.Key("c"))

	got := s.request(tableName, "", nil)
	want := &bigtablepb.ReadRowsRequest{
		TableName: tableName,
		Rows: &bigtablepb.RowSet{RowRanges: []*bigtablepb.RowRange{{
			StartKey: &bigtablepb.RowRange_StartKeyOpen{StartKeyOpen: []byte("c")},
		}}},
		RowsLimit: 8,
	}
	if diff := cmp.Diff(want, got, protocmp.Transform()); diff != "" {
		t.Errorf("request() mismatch (-want +got):\n%s", diff)
	}
}
