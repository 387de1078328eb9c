package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"github.com/litetable/litetable-reader/internal/config"
	"github.com/litetable/litetable-reader/internal/emulator"
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/litetable/litetable-reader/internal/reader"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const scanTable = "projects/p/instances/i/tables/users"

func startEmulator(t *testing.T, faults ...emulator.Fault) string {
	t.Helper()

	tbl := emulator.NewTable()
	for _, k := range []string{"user#1", "user#2", "user#3", "zed"} {
		require.NoError(t, tbl.Put(litetable.Row{
			Key: []byte(k),
			Families: []litetable.Family{{Name: "profile", Qualifiers: []litetable.Qualifier{
				{Name: []byte("name"), Values: []litetable.TimestampedValue{{Value: []byte("name of " + k), Timestamp: 1_700_000_000_000_000}}},
			}}},
		}))
	}

	srv, err := emulator.NewServer(&emulator.Config{
		Address: "127.0.0.1",
		Service: emulator.NewService(&emulator.ServiceConfig{
			Tables:    map[string]*emulator.Table{scanTable: tbl},
			SplitSize: 3,
			Faults:    faults,
		}),
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv.Addr()
}

func decodeLines(t *testing.T, out *bytes.Buffer) []scannedRow {
	t.Helper()

	var rows []scannedRow
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var row scannedRow
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, sc.Err())
	return rows
}

func TestScanRun_Run(t *testing.T) {
	addr := startEmulator(t, emulator.Fault{Attempt: 1, AfterRows: 1, Code: codes.Unavailable, PartialRow: true})

	t.Setenv("HOME", t.TempDir())
	t.Setenv("LITETABLE_ENDPOINT", addr)
	t.Setenv("LITETABLE_INSECURE", "true")
	t.Setenv("LITETABLE_TABLE", scanTable)
	t.Setenv("LITETABLE_BACKOFF_INITIAL", "10ms")

	c := &scanRun{prefix: "user#"}
	out := &bytes.Buffer{}
	require.NoError(t, c.run(context.Background(), out))

	rows := decodeLines(t, out)
	require.Len(t, rows, 3)
	for i, want := range []string{"user#1", "user#2", "user#3"} {
		require.Equal(t, want, rows[i].Key)
		require.Equal(t, "name of "+want, rows[i].Families["profile"]["name"][0].Value)
	}
	want := time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)
	require.True(t, want.Equal(rows[0].Families["profile"]["name"][0].Timestamp))
}

func TestScanRun_RunFailsOnMissingConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LITETABLE_ENDPOINT", "")
	t.Setenv("LITETABLE_TABLE", "")

	c := &scanRun{}
	err := c.run(context.Background(), &bytes.Buffer{})
	require.ErrorContains(t, err, "endpoint is required")
}

func TestScanRun_DebugEnabled(t *testing.T) {
	tests := map[string]struct {
		flag   bool
		config bool
		want   bool
	}{
		"neither":     {},
		"flag only":   {flag: true, want: true},
		"config only": {config: true, want: true},
		"both":        {flag: true, config: true, want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := &scanRun{debug: tc.flag}
			require.Equal(t, tc.want, c.debugEnabled(&config.Config{Debug: tc.config}))
		})
	}
}

func TestScanRun_Options(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: user#\nlimit: 10\nmax_retries: 2\n"), 0o600))
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	tests := map[string]struct {
		run   scanRun
		want  reader.Options
		error string
	}{
		"flags only": {
			run:  scanRun{keys: stringList{"a", "b"}, limit: 5},
			want: reader.Options{Keys: []string{"a", "b"}, Limit: 5},
		},
		"file with flag override": {
			run:  scanRun{optionsPath: path, limit: 3},
			want: reader.Options{Prefix: "user#", Limit: 3, MaxRetries: intPtr(2)},
		},
		"empty file": {
			run:  scanRun{optionsPath: empty},
			want: reader.Options{},
		},
		"missing file": {
			run:   scanRun{optionsPath: filepath.Join(dir, "absent.yaml")},
			error: "failed to open options file",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := tc.run.options()
			if tc.error != "" {
				require.ErrorContains(t, err, tc.error)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNewScannedRow(t *testing.T) {
	row := litetable.Row{
		Key: []byte("k"),
		Families: []litetable.Family{{Name: "f", Qualifiers: []litetable.Qualifier{
			{Name: []byte("q"), Values: []litetable.TimestampedValue{
				{Value: []byte("new"), Timestamp: 2_000_000, Labels: []string{"l"}},
				{Value: []byte("old"), Timestamp: 1_000_000},
			}},
		}}},
	}

	got := newScannedRow(row)
	require.Equal(t, scannedRow{
		Key: "k",
		Families: map[string]map[string][]scannedCell{
			"f": {"q": {
				{Value: "new", Timestamp: time.Unix(2, 0).UTC(), Labels: []string{"l"}},
				{Value: "old", Timestamp: time.Unix(1, 0).UTC()},
			}},
		},
	}, got)
}

func TestStringList(t *testing.T) {
	var l stringList
	require.NoError(t, l.Set("a"))
	require.NoError(t, l.Set("b"))
	require.Equal(t, "[a b]", l.String())
	require.True(t, strings.Contains(cmdScan.LongDesc, "-options"))
}

func intPtr(i int) *int {
	return &i
}
