package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVOptions controls how a table is read from and written to CSV.
type CSVOptions struct {
	// IndexColumn, when set, names the column that carries row indices. It is
	// parsed as an integer and not exposed as a data column.
	IndexColumn string
	// NumericColumns are parsed as numbers; unparsable cells become strings.
	NumericColumns []string
}

// ReadCSV reads a headered CSV table. Empty cells become null.
func ReadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: missing header row")
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	indexPos := -1
	var columns []string
	for i, h := range header {
		if opts.IndexColumn != "" && h == opts.IndexColumn {
			indexPos = i
			continue
		}
		columns = append(columns, h)
	}
	if opts.IndexColumn != "" && indexPos < 0 {
		return nil, fmt.Errorf("csv: index column %q not found", opts.IndexColumn)
	}

	numeric := make(map[string]bool, len(opts.NumericColumns))
	for _, c := range opts.NumericColumns {
		numeric[c] = true
	}

	d, err := newDataset(columns)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		index := line - 2
		values := make([]Value, 0, len(columns))
		for i, cell := range rec {
			if i == indexPos {
				n, err := strconv.Atoi(strings.TrimSpace(cell))
				if err != nil {
					return nil, fmt.Errorf("csv line %d: invalid index %q", line, cell)
				}
				index = n
				continue
			}
			values = append(values, parseCell(cell, numeric[header[i]]))
		}
		if err := d.appendRow(index, values); err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
	}
	return d, nil
}

func parseCell(cell string, numeric bool) Value {
	if cell == "" {
		return Null()
	}
	if numeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return Number(f)
		}
	}
	return String(cell)
}

// WriteCSV writes ds with a header row. Nulls become empty cells.
func WriteCSV(w io.Writer, ds *Dataset, opts CSVOptions) error {
	cw := csv.NewWriter(w)

	header := ds.Columns()
	if opts.IndexColumn != "" {
		header = append([]string{opts.IndexColumn}, header...)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}

	for _, r := range ds.rows {
		rec := make([]string, 0, len(header))
		if opts.IndexColumn != "" {
			rec = append(rec, strconv.Itoa(r.index))
		}
		for _, v := range r.values {
			rec = append(rec, v.Text())
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row %d: %w", r.index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// SaveCSV writes ds to path, truncating any existing file.
func SaveCSV(path string, ds *Dataset, opts CSVOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, ds, opts); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
