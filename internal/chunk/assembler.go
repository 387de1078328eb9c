// Package chunk reassembles the cell chunks of a streaming read into whole rows.
package chunk

import (
	"bytes"
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/litetable/litetable-reader/internal/litetable"
	"slices"
)

type state int

const (
	noRowOpen state = iota
	rowOpen
	// cellInProgress is rowOpen with a cell whose value continues in the next chunk.
	cellInProgress
)

func (s state) String() string {
	switch s {
	case noRowOpen:
		return "no row open"
	case rowOpen:
		return "row open"
	case cellInProgress:
		return "cell in progress"
	default:
		return "unknown"
	}
}

// cell is the cell currently being assembled.
type cell struct {
	family    string
	qualifier []byte
	timestamp int64
	labels    []string
	value     []byte
}

// Assembler turns chunks into committed rows. It is not safe for concurrent use; one
// read operation owns one Assembler across all of its attempts.
type Assembler struct {
	state   state
	lastKey []byte

	row  litetable.Row
	cell cell
}

// New returns an Assembler that rejects any row whose key is not strictly greater
// than lastKey. A nil lastKey accepts any first row.
func New(lastKey []byte) *Assembler {
	return &Assembler{lastKey: bytes.Clone(lastKey)}
}

// LastKey returns the key of the last committed row, or the last key passed to
// AdvanceTo, whichever is greater.
func (a *Assembler) LastKey() []byte {
	return a.lastKey
}

// RowOpen reports whether chunks for an uncommitted row have been received.
func (a *Assembler) RowOpen() bool {
	return a.state != noRowOpen
}

// AdvanceTo raises the ordering floor to key without committing a row. It is used
// for the service's last scanned row key.
func (a *Assembler) AdvanceTo(key []byte) {
	if len(key) == 0 || bytes.Compare(key, a.lastKey) <= 0 {
		return
	}
	a.lastKey = bytes.Clone(key)
}

// Reset discards any uncommitted row. The ordering floor is kept.
func (a *Assembler) Reset() {
	a.state = noRowOpen
	a.row = litetable.Row{}
	a.cell = cell{}
}

// Flush reports an error when the stream ended in the middle of a row.
func (a *Assembler) Flush() error {
	if a.state != noRowOpen {
		return newError(a.row.Key, "stream ended with %s", a.state)
	}
	return nil
}

// Process consumes one chunk. It returns the finished row when the chunk commits
// one, and nil otherwise.
func (a *Assembler) Process(c *bigtablepb.ReadRowsResponse_CellChunk) (*litetable.Row, error) {
	if c.GetResetRow() {
		a.Reset()
		return nil, nil
	}

	var err error
	switch a.state {
	case noRowOpen:
		err = a.startRow(c)
	case rowOpen:
		err = a.startCell(c)
	case cellInProgress:
		err = a.continueCell(c)
	}
	if err != nil {
		return nil, err
	}

	if c.GetValueSize() > 0 {
		a.state = cellInProgress
	} else {
		a.finishCell()
		a.state = rowOpen
	}

	if !c.GetCommitRow() {
		return nil, nil
	}
	if a.state == cellInProgress {
		return nil, newError(a.row.Key, "commit while a cell value is still split")
	}
	return a.commit(), nil
}

func (a *Assembler) startRow(c *bigtablepb.ReadRowsResponse_CellChunk) error {
	key := c.GetRowKey()
	switch {
	case len(key) == 0:
		if c.GetCommitRow() {
			return newError(nil, "commit without an open row")
		}
		return newError(nil, "new row is missing a row key")
	case c.GetFamilyName() == nil:
		return newError(key, "new row is missing a family name")
	case c.GetQualifier() == nil:
		return newError(key, "new row is missing a qualifier")
	case a.lastKey != nil && bytes.Compare(key, a.lastKey) <= 0:
		return newError(key, "row key is not greater than previous key %q", a.lastKey)
	}

	a.row = litetable.Row{Key: bytes.Clone(key)}
	return a.startCell(c)
}

func (a *Assembler) startCell(c *bigtablepb.ReadRowsResponse_CellChunk) error {
	if key := c.GetRowKey(); len(key) > 0 && !bytes.Equal(key, a.row.Key) {
		return newError(a.row.Key, "row key changed to %q before commit", key)
	}

	if fam := c.GetFamilyName(); fam != nil {
		if c.GetQualifier() == nil {
			return newError(a.row.Key, "family %q started without a qualifier", fam.GetValue())
		}
		a.cell.family = fam.GetValue()
	}
	if q := c.GetQualifier(); q != nil {
		a.cell.qualifier = bytes.Clone(q.GetValue())
	}

	a.cell.timestamp = c.GetTimestampMicros()
	a.cell.labels = slices.Clone(c.GetLabels())
	a.cell.value = make([]byte, 0, max(int(c.GetValueSize()), len(c.GetValue())))
	a.cell.value = append(a.cell.value, c.GetValue()...)
	return nil
}

func (a *Assembler) continueCell(c *bigtablepb.ReadRowsResponse_CellChunk) error {
	switch {
	case len(c.GetRowKey()) > 0:
		return newError(a.row.Key, "split cell continuation carries a row key")
	case c.GetFamilyName() != nil:
		return newError(a.row.Key, "split cell continuation carries a family name")
	case c.GetQualifier() != nil:
		return newError(a.row.Key, "split cell continuation carries a qualifier")
	case c.GetTimestampMicros() != 0:
		return newError(a.row.Key, "split cell continuation carries a timestamp")
	case len(c.GetLabels()) > 0:
		return newError(a.row.Key, "split cell continuation carries labels")
	}

	a.cell.value = append(a.cell.value, c.GetValue()...)
	return nil
}

// finishCell appends the completed cell to the open row, grouping it under its
// family and qualifier in arrival order.
func (a *Assembler) finishCell() {
	v := litetable.TimestampedValue{
		Value:     a.cell.value,
		Timestamp: a.cell.timestamp,
		Labels:    a.cell.labels,
	}
	a.cell.value = nil
	a.cell.labels = nil

	fi := slices.IndexFunc(a.row.Families, func(f litetable.Family) bool {
		return f.Name == a.cell.family
	})
	if fi < 0 {
		a.row.Families = append(a.row.Families, litetable.Family{Name: a.cell.family})
		fi = len(a.row.Families) - 1
	}
	fam := &a.row.Families[fi]

	qi := slices.IndexFunc(fam.Qualifiers, func(q litetable.Qualifier) bool {
		return bytes.Equal(q.Name, a.cell.qualifier)
	})
	if qi < 0 {
		fam.Qualifiers = append(fam.Qualifiers, litetable.Qualifier{Name: a.cell.qualifier})
		qi = len(fam.Qualifiers) - 1
	}
	fam.Qualifiers[qi].Values = append(fam.Qualifiers[qi].Values, v)
}

func (a *Assembler) commit() *litetable.Row {
	row := a.row
	a.lastKey = row.Key
	a.Reset()
	return &row
}
