package reader

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"errors"
	"fmt"
	"github.com/litetable/litetable-reader/internal/rowset"
	"gopkg.in/yaml.v3"
	"time"
)

var errInvalidSpec = errors.New("invalid read spec")

// ReadSpec is a canonical read request.
type ReadSpec struct {
	// RowSet selects the rows to read. Nil reads the full table.
	RowSet *rowset.RowSet
	// Filter is passed to the service untouched.
	Filter *bigtablepb.RowFilter
	// Limit caps the number of rows delivered. Zero is unlimited.
	Limit int64
	// AppProfileID overrides the reader's app profile when set.
	AppProfileID string
	// MaxRetries overrides the reader's attempt ceiling when set. Zero and one both
	// allow a single attempt with no retry.
	MaxRetries *int
	// Timeout bounds the whole operation, across every attempt. Zero is unbounded.
	Timeout time.Duration
}

func (s ReadSpec) validate() error {
	var errGrp []error
	if s.Limit < 0 {
		errGrp = append(errGrp, errors.New("limit cannot be negative"))
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		errGrp = append(errGrp, errors.New("max retries cannot be negative"))
	}
	if s.Timeout < 0 {
		errGrp = append(errGrp, errors.New("timeout cannot be negative"))
	}
	if s.RowSet != nil {
		if s.RowSet.IsExhausted() {
			errGrp = append(errGrp, errors.New("row set selects nothing"))
		}
		for _, r := range s.RowSet.Ranges {
			if r.IsEmpty() {
				errGrp = append(errGrp, fmt.Errorf("range %s selects nothing", r))
			}
		}
	}

	if err := errors.Join(errGrp...); err != nil {
		return errors.Join(errInvalidSpec, err)
	}
	return nil
}

// Bound is one end of a range given as options. It decodes from either a bare
// string or a mapping with value and inclusive.
type Bound struct {
	Value string `yaml:"value"`
	// Inclusive defaults to true.
	Inclusive *bool `yaml:"inclusive"`
}

func (b *Bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Value = node.Value
		return nil
	}
	type plain Bound
	return node.Decode((*plain)(b))
}

func (b *Bound) boundary() *rowset.Boundary {
	if b == nil || b.Value == "" {
		return nil
	}
	if b.Inclusive != nil && !*b.Inclusive {
		return rowset.Open(rowset.Key(b.Value))
	}
	return rowset.Closed(rowset.Key(b.Value))
}

// RangeOption is a range given as options.
type RangeOption struct {
	Start *Bound `yaml:"start"`
	End   *Bound `yaml:"end"`
}

func (r RangeOption) rng() rowset.Range {
	return rowset.NewRange(r.Start.boundary(), r.End.boundary())
}

// Options is the convenient, loosely shaped form of a read, as written in scan
// files or built by callers. Spec normalizes it into a ReadSpec.
type Options struct {
	Keys     []string      `yaml:"keys"`
	Ranges   []RangeOption `yaml:"ranges"`
	Start    *Bound        `yaml:"start"`
	End      *Bound        `yaml:"end"`
	Prefix   string        `yaml:"prefix"`
	Prefixes []string      `yaml:"prefixes"`

	Filter       *bigtablepb.RowFilter `yaml:"-"`
	Limit        int64                 `yaml:"limit"`
	AppProfileID string                `yaml:"app_profile"`
	MaxRetries   *int                  `yaml:"max_retries"`
	Timeout      time.Duration         `yaml:"timeout"`
}

func (o Options) validate() error {
	var errGrp []error
	hasStartEnd := o.Start != nil || o.End != nil
	if hasStartEnd && len(o.Ranges) > 0 {
		errGrp = append(errGrp, errors.New("start/end cannot be combined with ranges"))
	}
	if o.Prefix != "" && len(o.Prefixes) > 0 {
		errGrp = append(errGrp, errors.New("prefix cannot be combined with prefixes"))
	}
	if hasStartEnd && (o.Prefix != "" || len(o.Prefixes) > 0) {
		errGrp = append(errGrp, errors.New("start/end cannot be combined with a prefix"))
	}

	return errors.Join(errGrp...)
}

// Spec normalizes o into a ReadSpec.
func (o Options) Spec() (ReadSpec, error) {
	if err := o.validate(); err != nil {
		return ReadSpec{}, errors.Join(errInvalidSpec, err)
	}

	keys := make([]rowset.Key, 0, len(o.Keys))
	for _, k := range o.Keys {
		keys = append(keys, rowset.Key(k))
	}

	var ranges []rowset.Range
	if o.Start != nil || o.End != nil {
		ranges = append(ranges, RangeOption{Start: o.Start, End: o.End}.rng())
	}
	for _, r := range o.Ranges {
		ranges = append(ranges, r.rng())
	}
	prefixes := o.Prefixes
	if o.Prefix != "" {
		prefixes = []string{o.Prefix}
	}
	for _, p := range prefixes {
		ranges = append(ranges, rowset.PrefixRange(rowset.Key(p)))
	}

	spec := ReadSpec{
		Filter:       o.Filter,
		Limit:        o.Limit,
		AppProfileID: o.AppProfileID,
		MaxRetries:   o.MaxRetries,
		Timeout:      o.Timeout,
	}
	if len(keys) > 0 || len(ranges) > 0 {
		rs := rowset.Of(keys, ranges...)
		spec.RowSet = &rs
	}

	if err := spec.validate(); err != nil {
		return ReadSpec{}, err
	}
	return spec, nil
}
