package reader

import (
	"context"
	"fmt"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/litetable/litetable-reader/internal/emulator"
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/litetable/litetable-reader/internal/retry"
	"github.com/litetable/litetable-reader/internal/transport"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"strings"
	"testing"
	"time"
)

func seededTable(t *testing.T, n int) *emulator.Table {
	t.Helper()

	tbl := emulator.NewTable()
	for i := range n {
		key := fmt.Sprintf("row-%02d", i)
		row := litetable.Row{
			Key: []byte(key),
			Families: []litetable.Family{
				{Name: "profile", Qualifiers: []litetable.Qualifier{
					{Name: []byte("bio"), Values: []litetable.TimestampedValue{
						{Value: []byte(strings.Repeat(key, 6)), Timestamp: 2000, Labels: []string{"v2"}},
						{Value: []byte(key), Timestamp: 1000},
					}},
					{Name: []byte("name"), Values: []litetable.TimestampedValue{{Value: []byte("name-" + key), Timestamp: 1000}}},
				}},
				{Name: "stats", Qualifiers: []litetable.Qualifier{
					{Name: []byte("visits"), Values: []litetable.TimestampedValue{{Value: []byte{byte(i)}, Timestamp: 1000}}},
				}},
			},
		}
		require.NoError(t, tbl.Put(row))
	}
	return tbl
}

// startEmulator serves svc on a loopback port and returns a reader connected to it.
func startEmulator(t *testing.T, svc *emulator.Service) *Reader {
	t.Helper()

	srv, err := emulator.NewServer(&emulator.Config{Address: "127.0.0.1", Port: 0, Service: svc})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	tr, err := transport.New(&transport.Config{Endpoint: srv.Addr(), Insecure: true})
	require.NoError(t, err)
	require.NoError(t, tr.Start())
	t.Cleanup(func() { _ = tr.Stop() })

	r, err := New(&Config{Transport: tr, Table: tableName})
	require.NoError(t, err)
	r.wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func collect(t *testing.T, r *Reader, spec ReadSpec) ([]litetable.Row, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []litetable.Row
	for row, err := range r.Rows(ctx, spec) {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

func requireStrictlyIncreasing(t *testing.T, rows []litetable.Row) {
	t.Helper()
	for i := 1; i < len(rows); i++ {
		require.Less(t, string(rows[i-1].Key), string(rows[i].Key), "row %d", i)
	}
}

func TestEndToEnd_ResumesThroughFaults(t *testing.T) {
	tbl := seededTable(t, 20)
	svc := emulator.NewService(&emulator.ServiceConfig{
		Tables:    map[string]*emulator.Table{tableName: tbl},
		SplitSize: 7,
		Faults: []emulator.Fault{
			{Attempt: 1, AfterRows: 3, Code: codes.Unavailable, Message: "node restarting", PartialRow: true},
			{Attempt: 2, AfterRows: 5, Code: codes.Aborted, Message: "transaction aborted", PartialRow: true},
			{Attempt: 3, AfterRows: 0, Code: codes.ResourceExhausted, Message: "throttled"},
		},
	})
	r := startEmulator(t, svc)

	got, err := collect(t, r, ReadSpec{})

	req := require.New(t)
	req.NoError(err)
	requireStrictlyIncreasing(t, got)
	if diff := cmp.Diff(tbl.Rows(), got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	requests := svc.Requests()
	req.Len(requests, 4)
	req.Nil(requests[0].GetRows())
	req.Equal([]byte("row-02"), requests[1].GetRows().GetRowRanges()[0].GetStartKeyOpen())
	req.Equal([]byte("row-07"), requests[2].GetRows().GetRowRanges()[0].GetStartKeyOpen())
	req.Equal([]byte("row-07"), requests[3].GetRows().GetRowRanges()[0].GetStartKeyOpen())
}

func TestEndToEnd_KeysPrefixAndLimit(t *testing.T) {
	svc := emulator.NewService(&emulator.ServiceConfig{
		Tables:      map[string]*emulator.Table{tableName: seededTable(t, 30)},
		SplitSize:   4,
		ScanMarkers: true,
		Faults: []emulator.Fault{
			{Attempt: 1, AfterRows: 2, Code: codes.Unavailable},
		},
	})
	r := startEmulator(t, svc)

	spec, err := Options{
		Keys:     []string{"row-03", "row-27", "missing"},
		Prefixes: []string{"row-1"},
		Limit:    6,
	}.Spec()
	require.NoError(t, err)

	got, err := collect(t, r, spec)

	req := require.New(t)
	req.NoError(err)
	requireStrictlyIncreasing(t, got)

	var keys []string
	for _, row := range got {
		keys = append(keys, string(row.Key))
	}
	req.Equal([]string{"row-03", "row-10", "row-11", "row-12", "row-13", "row-14"}, keys)

	requests := svc.Requests()
	req.Len(requests, 2)
	req.Equal(int64(6), requests[0].GetRowsLimit())
	req.Equal(int64(4), requests[1].GetRowsLimit())
	req.Equal([][]byte{[]byte("row-27")}, requests[1].GetRows().GetRowKeys())
}

func TestEndToEnd_FatalStatus(t *testing.T) {
	svc := emulator.NewService(&emulator.ServiceConfig{
		Tables: map[string]*emulator.Table{tableName: seededTable(t, 5)},
		Faults: []emulator.Fault{
			{Attempt: 1, AfterRows: 2, Code: codes.PermissionDenied, Message: "no access"},
		},
	})
	r := startEmulator(t, svc)

	got, err := collect(t, r, ReadSpec{})

	require.Len(t, got, 2)
	require.ErrorIs(t, err, retry.ErrFatalTransport)
	require.Equal(t, codes.PermissionDenied, retry.Code(err))
	require.Len(t, svc.Requests(), 1)
}

func TestEndToEnd_UnknownTable(t *testing.T) {
	r := startEmulator(t, emulator.NewService(&emulator.ServiceConfig{}))

	_, err := collect(t, r, ReadSpec{})
	require.ErrorIs(t, err, retry.ErrFatalTransport)
	require.Equal(t, codes.NotFound, retry.Code(err))
}
