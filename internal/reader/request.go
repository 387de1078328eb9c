package reader

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/litetable/litetable-reader/internal/rowset"
	"google.golang.org/protobuf/proto"
)

// buildRequest returns the wire request for one attempt. It keeps no state; the
// first attempt passes the caller's row set and limit, retries pass what remains.
func buildRequest(table, appProfileID string, rows rowset.RowSet, filter *bigtablepb.RowFilter, limit int64) *bigtablepb.ReadRowsRequest {
	req := &bigtablepb.ReadRowsRequest{
		TableName:    table,
		AppProfileId: appProfileID,
		Rows:         rows.Proto(),
		RowsLimit:    limit,
	}
	if filter != nil {
		req.Filter = proto.Clone(filter).(*bigtablepb.RowFilter)
	}
	return req
}

// request builds the request for the attempt described by s.
func (s attemptState) request(table, appProfileID string, filter *bigtablepb.RowFilter) *bigtablepb.ReadRowsRequest {
	var limit int64
	if s.limited {
		limit = s.limit
	}
	return buildRequest(table, appProfileID, s.remaining, filter, limit)
}
