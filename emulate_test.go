package main

import (
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestEmulateRun_Server(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
table: projects/p/instances/i/tables/users
rows:
  - key: user#1
    cells:
      - {family: profile, qualifier: name, timestamp: 1000, value: Ada}
faults:
  - {attempt: 1, after_rows: 1, code: UNAVAILABLE}
`), 0o600))
	badFault := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badFault, []byte(`
table: t
faults:
  - {attempt: 1, code: NOT_A_CODE}
`), 0o600))

	tests := map[string]struct {
		seedPath string
		error    string
	}{
		"valid seed":    {seedPath: seed},
		"missing seed":  {seedPath: filepath.Join(dir, "absent.yaml"), error: "failed to open seed file"},
		"invalid fault": {seedPath: badFault, error: "fault on attempt 1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := &emulateRun{seedPath: tc.seedPath, address: "127.0.0.1", port: 0}
			srv, err := c.server()
			if tc.error != "" {
				require.ErrorContains(t, err, tc.error)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, srv.Addr())
			require.NoError(t, srv.Stop())
		})
	}
}
