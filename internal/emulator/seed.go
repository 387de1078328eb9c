package emulator

import (
	"errors"
	"fmt"
	"github.com/litetable/litetable-reader/internal/litetable"
	"google.golang.org/grpc/codes"
	"gopkg.in/yaml.v3"
	"io"
)

// Seed is the YAML description of an emulator's contents.
//
// Example:
//
//	table: projects/p/instances/i/tables/users
//	split_size: 4
//	rows:
//	  - key: user#1
//	    cells:
//	      - {family: profile, qualifier: name, timestamp: 1000, value: Ada}
//	faults:
//	  - {attempt: 1, after_rows: 1, code: UNAVAILABLE, message: flaky}
type Seed struct {
	Table       string      `yaml:"table"`
	SplitSize   int         `yaml:"split_size"`
	ScanMarkers bool        `yaml:"scan_markers"`
	Rows        []SeedRow   `yaml:"rows"`
	Faults      []SeedFault `yaml:"faults"`
}

type SeedRow struct {
	Key   string     `yaml:"key"`
	Cells []SeedCell `yaml:"cells"`
}

type SeedCell struct {
	Family    string   `yaml:"family"`
	Qualifier string   `yaml:"qualifier"`
	Timestamp int64    `yaml:"timestamp"`
	Value     string   `yaml:"value"`
	Labels    []string `yaml:"labels"`
}

type SeedFault struct {
	Attempt    int    `yaml:"attempt"`
	AfterRows  int    `yaml:"after_rows"`
	Code       string `yaml:"code"`
	Message    string `yaml:"message"`
	PartialRow bool   `yaml:"partial_row"`
}

// LoadSeed decodes a Seed.
func LoadSeed(r io.Reader) (*Seed, error) {
	seed := &Seed{}
	if err := yaml.NewDecoder(r).Decode(seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if seed.Table == "" {
		return nil, errors.New("seed table required")
	}
	return seed, nil
}

// ServiceConfig builds the configuration of a Service holding the seed.
func (s *Seed) ServiceConfig() (*ServiceConfig, error) {
	table := NewTable()
	for _, r := range s.Rows {
		if err := table.Put(r.row()); err != nil {
			return nil, err
		}
	}

	faults := make([]Fault, 0, len(s.Faults))
	for _, f := range s.Faults {
		var code codes.Code
		if err := code.UnmarshalJSON([]byte(fmt.Sprintf("%q", f.Code))); err != nil {
			return nil, fmt.Errorf("fault on attempt %d: %w", f.Attempt, err)
		}
		faults = append(faults, Fault{
			Attempt:    f.Attempt,
			AfterRows:  f.AfterRows,
			Code:       code,
			Message:    f.Message,
			PartialRow: f.PartialRow,
		})
	}

	return &ServiceConfig{
		Tables:      map[string]*Table{s.Table: table},
		SplitSize:   s.SplitSize,
		ScanMarkers: s.ScanMarkers,
		Faults:      faults,
	}, nil
}

// row groups the cells by family then qualifier, keeping first-seen order.
func (r SeedRow) row() litetable.Row {
	row := litetable.Row{Key: []byte(r.Key)}
	for _, c := range r.Cells {
		fi := -1
		for i, f := range row.Families {
			if f.Name == c.Family {
				fi = i
				break
			}
		}
		if fi < 0 {
			row.Families = append(row.Families, litetable.Family{Name: c.Family})
			fi = len(row.Families) - 1
		}
		fam := &row.Families[fi]

		qi := -1
		for i, q := range fam.Qualifiers {
			if string(q.Name) == c.Qualifier {
				qi = i
				break
			}
		}
		if qi < 0 {
			fam.Qualifiers = append(fam.Qualifiers, litetable.Qualifier{Name: []byte(c.Qualifier)})
			qi = len(fam.Qualifiers) - 1
		}
		fam.Qualifiers[qi].Values = append(fam.Qualifiers[qi].Values, litetable.TimestampedValue{
			Value:     []byte(c.Value),
			Timestamp: c.Timestamp,
			Labels:    c.Labels,
		})
	}
	return row
}
