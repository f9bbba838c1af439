// Package rowset provides the tabular result type assembled from Data
// Bridges pages, and the normalization of heterogeneous record items into
// flat rows.
package rowset

import "sort"

// Row is one normalized record: a flat mapping of column name to value.
type Row = map[string]any

// Mapper is implemented by record types that can expand themselves into a
// flat row. Transport response types implement this instead of being
// introspected via reflection.
type Mapper interface {
	Row() Row
}

// Normalize flattens a sequence of record items. Items implementing Mapper
// are expanded into their row mapping; plain maps are already flat and pass
// through; anything else (primitives, opaque values) passes through
// unchanged.
func Normalize(items []any) []any {
	if len(items) == 0 {
		return items
	}
	normalized := make([]any, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Mapper:
			normalized[i] = v.Row()
		default:
			normalized[i] = item
		}
	}
	return normalized
}

// RowSet is an ordered sequence of normalized rows. The column set is
// expected to be uniform per endpoint but is not enforced.
type RowSet struct {
	Rows []any
}

// FromItems normalizes the given record items into a RowSet.
func FromItems(items []any) *RowSet {
	return &RowSet{Rows: Normalize(items)}
}

// Empty returns a RowSet with no rows.
func Empty() *RowSet {
	return &RowSet{}
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	return len(rs.Rows)
}

// Columns returns the sorted column names observed across all map-shaped
// rows.
func (rs *RowSet) Columns() []string {
	seen := make(map[string]bool)
	for _, row := range rs.Rows {
		m, ok := row.(Row)
		if !ok {
			continue
		}
		for name := range m {
			seen[name] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}

// Concat concatenates row sets in argument order into a single RowSet.
func Concat(sets ...*RowSet) *RowSet {
	total := 0
	for _, s := range sets {
		total += s.Len()
	}
	rows := make([]any, 0, total)
	for _, s := range sets {
		rows = append(rows, s.Rows...)
	}
	return &RowSet{Rows: rows}
}
