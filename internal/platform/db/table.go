package db

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/dedup/internal/platform/dataset"
)

// Querier is the subset of pgxpool.Pool and pgx.Conn used to move datasets in
// and out of Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// TableOptions controls how a table maps onto a dataset.
type TableOptions struct {
	// IndexColumn, when set, names an integer column holding the row index.
	// The column is consumed and does not appear in the dataset. Without it
	// rows are numbered 0..n-1 in the order returned by the query.
	IndexColumn string
}

// Identifier splits a possibly schema-qualified table name ("public.patients").
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// LoadTable reads every row of table into a dataset.
func LoadTable(ctx context.Context, q Querier, table string, opts TableOptions) (*dataset.Dataset, error) {
	if table == "" {
		return nil, fmt.Errorf("load table: table name is required")
	}
	sql := "SELECT * FROM " + Identifier(table).Sanitize()
	if opts.IndexColumn != "" {
		sql += " ORDER BY " + pgx.Identifier{opts.IndexColumn}.Sanitize()
	}

	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	indexPos := -1
	var columns []string
	for i, f := range fields {
		if opts.IndexColumn != "" && f.Name == opts.IndexColumn {
			indexPos = i
			continue
		}
		columns = append(columns, f.Name)
	}
	if opts.IndexColumn != "" && indexPos < 0 {
		return nil, fmt.Errorf("load table %s: index column %q not found", table, opts.IndexColumn)
	}

	var records []dataset.Record
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := dataset.Record{Index: len(records), Values: make(map[string]dataset.Value, len(columns))}
		for i, f := range fields {
			if i == indexPos {
				idx, err := toIndex(raw[i])
				if err != nil {
					return nil, fmt.Errorf("load table %s row %d: %w", table, len(records), err)
				}
				rec.Index = idx
				continue
			}
			rec.Values[f.Name] = toValue(raw[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	return dataset.New(columns, records)
}

// WriteTable creates table if needed and copies ds into it. Every dataset
// column is stored as TEXT; when opts.IndexColumn is set the row index is
// written to a BIGINT column of that name. Existing rows are left in place.
func WriteTable(ctx context.Context, q Querier, table string, ds *dataset.Dataset, opts TableOptions) (int64, error) {
	if table == "" {
		return 0, fmt.Errorf("write table: table name is required")
	}

	var columns []string
	var defs []string
	if opts.IndexColumn != "" {
		columns = append(columns, opts.IndexColumn)
		defs = append(defs, pgx.Identifier{opts.IndexColumn}.Sanitize()+" BIGINT")
	}
	for _, c := range ds.Columns() {
		if c == opts.IndexColumn {
			return 0, fmt.Errorf("write table %s: column %q clashes with the index column", table, c)
		}
		columns = append(columns, c)
		defs = append(defs, pgx.Identifier{c}.Sanitize()+" TEXT")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Identifier(table).Sanitize(), strings.Join(defs, ", "))
	if _, err := q.Exec(ctx, ddl); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}

	n, err := q.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(copyRows(ds, opts.IndexColumn != "")))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// copyRows renders ds as COPY input. Nulls stay nil.
func copyRows(ds *dataset.Dataset, withIndex bool) [][]any {
	out := make([][]any, 0, ds.Len())
	for _, rec := range ds.Records() {
		row := make([]any, 0, len(ds.Columns())+1)
		if withIndex {
			row = append(row, int64(rec.Index))
		}
		for _, c := range ds.Columns() {
			v := rec.Get(c)
			if v.IsNull() {
				row = append(row, nil)
				continue
			}
			row = append(row, v.Text())
		}
		out = append(out, row)
	}
	return out
}

// toValue converts a decoded Postgres value into a dataset value.
func toValue(v any) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case string:
		return dataset.String(x)
	case []byte:
		return dataset.String(string(x))
	case bool:
		return dataset.String(strconv.FormatBool(x))
	case int16:
		return dataset.Number(float64(x))
	case int32:
		return dataset.Number(float64(x))
	case int64:
		return dataset.Number(float64(x))
	case float32:
		return dataset.Number(float64(x))
	case float64:
		return dataset.Number(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return dataset.String(x.Format("2006-01-02"))
		}
		return dataset.String(x.Format(time.RFC3339))
	case pgtype.Numeric:
		if !x.Valid || x.NaN {
			return dataset.Null()
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return dataset.Null()
		}
		return dataset.Number(f.Float64)
	case [16]byte:
		return dataset.String(uuid.UUID(x).String())
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return dataset.Number(f)
	default:
		return dataset.String(fmt.Sprint(x))
	}
}

func toIndex(v any) (int, error) {
	switch x := v.(type) {
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("index value %q is not an integer", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("index value of type %T is not an integer", v)
	}
}
