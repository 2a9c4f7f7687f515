package persistence

import (
	"context"
	"errors"
	"sync"
)

// ErrRowNotFound is returned by Save when the addressed row no longer exists.
var ErrRowNotFound = errors.New("sheet row not found")

// Row is one data row of a flat table. Number addresses the row inside its
// backend (sheet row number or primary key) and is opaque to callers.
type Row struct {
	Number int
	Values map[string]string
}

// Get returns the value for column, or "" when absent.
func (r Row) Get(column string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[column]
}

// Clone returns a copy whose Values map can be mutated independently.
func (r Row) Clone() Row {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{Number: r.Number, Values: values}
}

// SheetTable is a header-plus-rows table without indexes or transactions.
// Rows always returns a full scan in storage order. Save replaces the whole
// row, so two concurrent saves of the same row are last-write-wins.
type SheetTable interface {
	Name() string
	Rows(ctx context.Context) ([]Row, error)
	Append(ctx context.Context, values map[string]string) (Row, error)
	Save(ctx context.Context, row Row) error
}

// MemorySheetTable keeps rows in process memory.
type MemorySheetTable struct {
	name    string
	columns []string

	mu   sync.RWMutex
	rows []Row
}

// NewMemorySheetTable returns an empty table with the given header.
func NewMemorySheetTable(name string, columns []string) *MemorySheetTable {
	return &MemorySheetTable{name: name, columns: columns}
}

func (t *MemorySheetTable) Name() string { return t.name }

// Columns returns the header.
func (t *MemorySheetTable) Columns() []string { return t.columns }

func (t *MemorySheetTable) Rows(_ context.Context) ([]Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (t *MemorySheetTable) Append(_ context.Context, values map[string]string) (Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := Row{Number: len(t.rows) + 2, Values: map[string]string{}}
	for _, col := range t.columns {
		row.Values[col] = values[col]
	}
	t.rows = append(t.rows, row)
	return row.Clone(), nil
}

func (t *MemorySheetTable) Save(_ context.Context, row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := row.Number - 2
	if idx < 0 || idx >= len(t.rows) {
		return ErrRowNotFound
	}
	stored := Row{Number: row.Number, Values: map[string]string{}}
	for _, col := range t.columns {
		stored.Values[col] = row.Values[col]
	}
	t.rows[idx] = stored
	return nil
}
