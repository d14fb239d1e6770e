package dataset

import (
	"fmt"
	"sort"
)

// IndexSet is a set of row indices.
type IndexSet map[int]struct{}

// NewIndexSet builds a set from the given indices.
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Add inserts i.
func (s IndexSet) Add(i int) { s[i] = struct{}{} }

// Has reports whether i is in the set.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Union adds every index of o to s.
func (s IndexSet) Union(o IndexSet) {
	for i := range o {
		s[i] = struct{}{}
	}
}

// Sorted returns the indices in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Record is one row: a stable index plus its values keyed by column name.
// Columns absent from Values are null.
type Record struct {
	Index  int              `json:"index"`
	Values map[string]Value `json:"values"`
}

// Get returns the value of col, null when absent.
func (r Record) Get(col string) Value {
	return r.Values[col]
}

type row struct {
	index  int
	values []Value
}

// Dataset is an immutable, ordered table. Every operation that changes rows or
// columns returns a new Dataset; row indices survive filtering unchanged.
type Dataset struct {
	columns []string
	colPos  map[string]int
	rows    []row
	rowPos  map[int]int
}

func newDataset(columns []string) (*Dataset, error) {
	d := &Dataset{
		columns: append([]string(nil), columns...),
		colPos:  make(map[string]int, len(columns)),
		rowPos:  make(map[int]int),
	}
	for i, c := range columns {
		if _, dup := d.colPos[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		d.colPos[c] = i
	}
	return d, nil
}

func (d *Dataset) appendRow(index int, values []Value) error {
	if _, dup := d.rowPos[index]; dup {
		return fmt.Errorf("duplicate row index %d", index)
	}
	d.rowPos[index] = len(d.rows)
	d.rows = append(d.rows, row{index: index, values: values})
	return nil
}

// New builds a dataset from records. Record order is preserved; values for
// unknown columns are rejected.
func New(columns []string, records []Record) (*Dataset, error) {
	d, err := newDataset(columns)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		values := make([]Value, len(columns))
		for col, v := range rec.Values {
			pos, ok := d.colPos[col]
			if !ok {
				return nil, fmt.Errorf("row %d: unknown column %q", rec.Index, col)
			}
			values[pos] = v
		}
		if err := d.appendRow(rec.Index, values); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FromRows builds a dataset from positional rows, indexed 0..n-1.
func FromRows(columns []string, rows [][]Value) (*Dataset, error) {
	d, err := newDataset(columns)
	if err != nil {
		return nil, err
	}
	for i, vals := range rows {
		if len(vals) != len(columns) {
			return nil, fmt.Errorf("row %d: expected %d values, got %d", i, len(columns), len(vals))
		}
		if err := d.appendRow(i, append([]Value(nil), vals...)); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

// HasColumn reports whether col exists.
func (d *Dataset) HasColumn(col string) bool {
	_, ok := d.colPos[col]
	return ok
}

// Has reports whether a row with the given index exists.
func (d *Dataset) Has(index int) bool {
	_, ok := d.rowPos[index]
	return ok
}

// Indices returns the row indices in row order.
func (d *Dataset) Indices() []int {
	out := make([]int, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.index
	}
	return out
}

// Value returns the cell at (index, col). The boolean is false when either
// the row or the column does not exist.
func (d *Dataset) Value(index int, col string) (Value, bool) {
	p, ok := d.rowPos[index]
	if !ok {
		return Null(), false
	}
	c, ok := d.colPos[col]
	if !ok {
		return Null(), false
	}
	return d.rows[p].values[c], true
}

func (d *Dataset) record(r row) Record {
	rec := Record{Index: r.index, Values: make(map[string]Value, len(d.columns))}
	for i, c := range d.columns {
		rec.Values[c] = r.values[i]
	}
	return rec
}

// Record returns the row with the given index.
func (d *Dataset) Record(index int) (Record, bool) {
	p, ok := d.rowPos[index]
	if !ok {
		return Record{}, false
	}
	return d.record(d.rows[p]), true
}

// Records materializes all rows in order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i, r := range d.rows {
		out[i] = d.record(r)
	}
	return out
}

// Row returns the values of the row with the given index, aligned to Columns.
func (d *Dataset) Row(index int) ([]Value, bool) {
	p, ok := d.rowPos[index]
	if !ok {
		return nil, false
	}
	return append([]Value(nil), d.rows[p].values...), true
}

// Column returns every value of col in row order.
func (d *Dataset) Column(col string) ([]Value, error) {
	c, ok := d.colPos[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.values[c]
	}
	return out, nil
}

func (d *Dataset) derive(rows []row) *Dataset {
	out := &Dataset{
		columns: d.columns,
		colPos:  d.colPos,
		rows:    rows,
		rowPos:  make(map[int]int, len(rows)),
	}
	for i, r := range rows {
		out.rowPos[r.index] = i
	}
	return out
}

// Select keeps the rows for which keep returns true.
func (d *Dataset) Select(keep func(Record) bool) *Dataset {
	rows := make([]row, 0, len(d.rows))
	for _, r := range d.rows {
		if keep(d.record(r)) {
			rows = append(rows, r)
		}
	}
	return d.derive(rows)
}

// Drop removes the rows whose index is in remove. Unknown indices are ignored.
func (d *Dataset) Drop(remove IndexSet) *Dataset {
	if len(remove) == 0 {
		return d.derive(d.rows)
	}
	rows := make([]row, 0, len(d.rows))
	for _, r := range d.rows {
		if !remove.Has(r.index) {
			rows = append(rows, r)
		}
	}
	return d.derive(rows)
}

// WithColumn returns a dataset with col set from fn for every row. An existing
// column is replaced in place; a new one is appended.
func (d *Dataset) WithColumn(col string, fn func(Record) Value) *Dataset {
	columns := d.columns
	pos, exists := d.colPos[col]
	if !exists {
		columns = append(append([]string(nil), d.columns...), col)
		pos = len(columns) - 1
	}
	out, _ := newDataset(columns)
	for _, r := range d.rows {
		values := make([]Value, len(columns))
		copy(values, r.values)
		values[pos] = fn(d.record(r))
		_ = out.appendRow(r.index, values)
	}
	return out
}

// FillNull replaces every null cell with v.
func (d *Dataset) FillNull(v Value) *Dataset {
	rows := make([]row, len(d.rows))
	for i, r := range d.rows {
		values := append([]Value(nil), r.values...)
		for j := range values {
			if values[j].IsNull() {
				values[j] = v
			}
		}
		rows[i] = row{index: r.index, values: values}
	}
	return d.derive(rows)
}

// DuplicatedValues returns the distinct non-null values of col that occur more
// than once, ordered by first occurrence.
func (d *Dataset) DuplicatedValues(col string) ([]Value, error) {
	values, err := d.Column(col)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(values))
	var order []Value
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		k := v.Text()
		if counts[k] == 0 {
			order = append(order, v)
		}
		counts[k]++
	}
	var out []Value
	for _, v := range order {
		if counts[v.Text()] > 1 {
			out = append(out, v)
		}
	}
	return out, nil
}

// DuplicatedRows returns every row whose non-null col value occurs more than
// once. All occurrences are included.
func (d *Dataset) DuplicatedRows(col string) (IndexSet, error) {
	c, ok := d.colPos[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	groups := make(map[string][]int)
	for _, r := range d.rows {
		v := r.values[c]
		if v.IsNull() {
			continue
		}
		groups[v.Text()] = append(groups[v.Text()], r.index)
	}
	out := make(IndexSet)
	for _, idx := range groups {
		if len(idx) > 1 {
			for _, i := range idx {
				out.Add(i)
			}
		}
	}
	return out, nil
}

// Equal reports whether both datasets have the same columns and the same rows
// in the same order.
func (d *Dataset) Equal(o *Dataset) bool {
	if d.Len() != o.Len() || len(d.columns) != len(o.columns) {
		return false
	}
	for i, c := range d.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i, r := range d.rows {
		or := o.rows[i]
		if r.index != or.index {
			return false
		}
		for j, v := range r.values {
			if !v.Equal(or.values[j]) {
				return false
			}
		}
	}
	return true
}
