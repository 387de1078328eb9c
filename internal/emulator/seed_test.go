package emulator

import (
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"strings"
	"testing"
)

const seedYAML = `
table: projects/p/instances/i/tables/users
split_size: 4
rows:
  - key: user#2
    cells:
      - {family: profile, qualifier: name, timestamp: 2000, value: Grace}
  - key: user#1
    cells:
      - {family: profile, qualifier: name, timestamp: 2000, value: Ada, labels: [current]}
      - {family: stats, qualifier: visits, timestamp: 1500, value: "7"}
      - {family: profile, qualifier: name, timestamp: 1000, value: A}
faults:
  - {attempt: 1, after_rows: 1, code: UNAVAILABLE, message: flaky, partial_row: true}
`

func TestLoadSeed(t *testing.T) {
	req := require.New(t)

	seed, err := LoadSeed(strings.NewReader(seedYAML))
	req.NoError(err)
	req.Equal("projects/p/instances/i/tables/users", seed.Table)
	req.Len(seed.Rows, 2)

	cfg, err := seed.ServiceConfig()
	req.NoError(err)
	req.Equal(4, cfg.SplitSize)
	req.Equal([]Fault{{Attempt: 1, AfterRows: 1, Code: codes.Unavailable, Message: "flaky", PartialRow: true}}, cfg.Faults)

	rows := cfg.Tables[seed.Table].Rows()
	req.Len(rows, 2)
	req.Equal("user#1", string(rows[0].Key))

	ada := rows[0]
	req.Len(ada.Families, 2)
	req.Equal("profile", ada.Families[0].Name)
	req.Len(ada.Families[0].Qualifiers[0].Values, 2)
	req.Equal([]string{"current"}, ada.Families[0].Qualifiers[0].Values[0].Labels)
	latest, ok := ada.Latest("stats", []byte("visits"))
	req.True(ok)
	req.Equal("7", string(latest))
}

func TestLoadSeed_Errors(t *testing.T) {
	tests := map[string]struct {
		yaml    string
		wantErr string
	}{
		"malformed yaml": {yaml: "table: [", wantErr: "failed to decode seed"},
		"missing table":  {yaml: "rows: []", wantErr: "seed table required"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(tc.yaml))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestSeed_ServiceConfigErrors(t *testing.T) {
	t.Run("unknown fault code", func(t *testing.T) {
		seed := &Seed{Table: "t", Faults: []SeedFault{{Attempt: 1, Code: "NOPE"}}}
		_, err := seed.ServiceConfig()
		require.ErrorContains(t, err, "fault on attempt 1")
	})

	t.Run("row without cells", func(t *testing.T) {
		seed := &Seed{Table: "t", Rows: []SeedRow{{Key: "a"}}}
		_, err := seed.ServiceConfig()
		require.ErrorContains(t, err, "has no cells")
	})
}
