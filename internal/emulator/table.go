package emulator

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/litetable/litetable-reader/internal/litetable"
	"slices"
	"sync"
)

// Table is an in-memory table kept in row key order.
type Table struct {
	mu   sync.RWMutex
	rows []litetable.Row
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Put inserts row, replacing any row with the same key.
func (t *Table) Put(row litetable.Row) error {
	if len(row.Key) == 0 {
		return errors.New("row key required")
	}
	if row.CellCount() == 0 {
		return fmt.Errorf("row %q has no cells", row.Key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i, found := slices.BinarySearchFunc(t.rows, row.Key, func(r litetable.Row, key []byte) int {
		return bytes.Compare(r.Key, key)
	})
	if found {
		t.rows[i] = row
		return nil
	}
	t.rows = slices.Insert(t.rows, i, row)
	return nil
}

// Rows returns a snapshot of every row in key order.
func (t *Table) Rows() []litetable.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
