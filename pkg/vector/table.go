// Package vector provides the geometry table value type stored in patch
// vector collections. A table is an ordered set of columns over rows whose
// geometry cells hold GeoJSON-style values, tagged with the CRS the
// coordinates are expressed in.
package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geostack/patchwork/pkg/features"
)

// GeometryColumn is the conventional name of the geometry column.
const GeometryColumn = "geometry"

// Table errors.
var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrColumnMismatch = errors.New("table columns do not match")
	ErrCRSMismatch    = errors.New("table crs does not match")
	ErrNoTimestamps   = errors.New("table has no timestamp column")
	ErrEmptyInput     = errors.New("no tables given")
)

// Geometry is a GeoJSON-style geometry value: a type tag plus coordinates.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// NewPoint creates a Point geometry.
func NewPoint(x, y float64) Geometry {
	return Geometry{Type: "Point", Coordinates: []float64{x, y}}
}

// Row holds one table row, keyed by column name.
type Row map[string]any

// Table is an ordered-column table of geometry rows.
type Table struct {
	crs     string
	columns []string
	colSet  map[string]bool
	rows    []Row
}

// New creates an empty table with the given CRS and column order.
func New(crs string, columns ...string) *Table {
	t := &Table{crs: crs, columns: append([]string(nil), columns...), colSet: map[string]bool{}}
	for _, c := range columns {
		t.colSet[c] = true
	}
	return t
}

// FromGeometries converts a plain geometry sequence into a single-column
// table, the permissive conversion accepted by vector collections.
func FromGeometries(crs string, geoms []Geometry) *Table {
	t := New(crs, GeometryColumn)
	for _, g := range geoms {
		t.rows = append(t.rows, Row{GeometryColumn: g})
	}
	return t
}

// CRS returns the coordinate reference system tag.
func (t *Table) CRS() string { return t.crs }

// Columns returns a copy of the column order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool { return t.colSet[name] }

// Len returns the row count.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row. Callers must not modify it.
func (t *Table) Row(i int) Row { return t.rows[i] }

// AppendRow adds a row. Keys must be known columns; absent columns are left
// nil.
func (t *Table) AppendRow(row Row) error {
	for k := range row {
		if !t.colSet[k] {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, k)
		}
	}
	copied := make(Row, len(row))
	for k, v := range row {
		copied[k] = v
	}
	t.rows = append(t.rows, copied)
	return nil
}

// Clone returns a deep copy of the table. Cell values are copied via their
// canonical JSON form, except timestamps which are preserved as times.
func (t *Table) Clone() *Table {
	c := New(t.crs, t.columns...)
	for _, row := range t.rows {
		copied := make(Row, len(row))
		for k, v := range row {
			copied[k] = copyCell(v)
		}
		c.rows = append(c.rows, copied)
	}
	return c
}

func copyCell(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int, int64, float64, time.Time:
		return val
	case Geometry:
		return Geometry{Type: val.Type, Coordinates: copyCell(val.Coordinates)}
	case []float64:
		return append([]float64(nil), val...)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyCell(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = copyCell(e)
		}
		return out
	default:
		// Round-trip anything else through JSON.
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}

// canonicalCell renders a cell value in a form stable across storage
// round-trips, so that a decoded table compares equal to its source.
func canonicalCell(v any) string {
	if ts, ok := cellTime(v); ok {
		return ts.UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("!%v", v)
	}
	return string(b)
}

// cellTime extracts a timestamp from a cell holding a time or an RFC 3339
// string.
func cellTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		ts, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.Time{}, false
}

// Equal reports whether both tables have the same CRS, column order, and
// row contents. Cells compare by canonical JSON value.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.crs != other.crs || len(t.columns) != len(other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i, c := range t.columns {
		if other.columns[i] != c {
			return false
		}
	}
	for i, row := range t.rows {
		otherRow := other.rows[i]
		for _, c := range t.columns {
			if canonicalCell(row[c]) != canonicalCell(otherRow[c]) {
				return false
			}
		}
	}
	return true
}

// rowKey renders a full row canonically, for duplicate elimination.
func (t *Table) rowKey(row Row) string {
	cells := make([]string, len(t.columns))
	for i, c := range t.columns {
		cells[i] = canonicalCell(row[c])
	}
	b, _ := json.Marshal(cells)
	return string(b)
}

// Concat unions rows of tables sharing CRS and columns. Rows identical in
// every cell appear once, first occurrence wins; otherwise input order is
// preserved.
func Concat(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyInput
	}
	first := tables[0]
	out := New(first.crs, first.columns...)
	seen := map[string]bool{}
	for _, t := range tables {
		if t.crs != first.crs {
			return nil, fmt.Errorf("%w: %q vs %q", ErrCRSMismatch, first.crs, t.crs)
		}
		if len(t.columns) != len(first.columns) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrColumnMismatch, first.columns, t.columns)
		}
		for i, c := range first.columns {
			if t.columns[i] != c {
				return nil, fmt.Errorf("%w: %v vs %v", ErrColumnMismatch, first.columns, t.columns)
			}
		}
		for _, row := range t.rows {
			key := out.rowKey(row)
			if seen[key] {
				continue
			}
			seen[key] = true
			out.rows = append(out.rows, row)
		}
	}
	return out.Clone(), nil
}

// Timestamps returns the timestamp column values, row by row.
// Returns ErrNoTimestamps if the column is absent.
func (t *Table) Timestamps() ([]time.Time, error) {
	if !t.HasColumn(features.TimestampColumn) {
		return nil, ErrNoTimestamps
	}
	out := make([]time.Time, 0, len(t.rows))
	for _, row := range t.rows {
		ts, _ := cellTime(row[features.TimestampColumn])
		out = append(out, ts)
	}
	return out, nil
}

// WithoutTimestamps returns a copy of the table keeping only rows whose
// timestamp is not in the removed set.
func (t *Table) WithoutTimestamps(removed []time.Time) (*Table, error) {
	if !t.HasColumn(features.TimestampColumn) {
		return nil, ErrNoTimestamps
	}
	gone := make(map[int64]bool, len(removed))
	for _, ts := range removed {
		gone[ts.UnixNano()] = true
	}
	out := New(t.crs, t.columns...)
	for _, row := range t.rows {
		if ts, ok := cellTime(row[features.TimestampColumn]); ok && gone[ts.UnixNano()] {
			continue
		}
		out.rows = append(out.rows, row)
	}
	return out.Clone(), nil
}
