package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// Filter keeps rows whose named columns contain substrings, ignoring case.
// Keys are column names; every value of every entry must match.
type Filter map[string][]string

// ParseFilter reads "column:value" terms. An empty value matches everything.
func ParseFilter(terms []string) (Filter, error) {
	f := Filter{}
	for _, term := range terms {
		column, value, ok := strings.Cut(term, ":")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid filter %q: want column:value", term)
		}
		if value = strings.TrimSpace(value); value == "" {
			continue
		}
		f[column] = append(f[column], strings.ToLower(value))
	}
	return f, nil
}

// Validate rejects columns not in columns
func (f Filter) Validate(columns []string) error {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	var unknown []string
	for c := range f {
		if _, ok := known[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown filter column: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Match reports whether a row with the given columns passes the filter
func (f Filter) Match(columns []string, row []interface{}) bool {
	if len(f) == 0 {
		return true
	}
	matched := 0
	for i, c := range columns {
		wants, ok := f[c]
		if !ok {
			continue
		}
		if i >= len(row) {
			return false
		}
		cell := strings.ToLower(CellText(row[i]))
		for _, want := range wants {
			if !strings.Contains(cell, want) {
				return false
			}
		}
		matched++
	}
	return matched == len(f)
}

// CellText renders a Row value as display text
func CellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(t, ListSeparator)
	default:
		return fmt.Sprint(t)
	}
}

// Tabular is a record with a fixed column layout
type Tabular interface {
	Columns() []string
	Row() []interface{}
}

// Apply returns the records that pass f, keeping order
func Apply[T Tabular](records []T, f Filter) []T {
	if len(f) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if f.Match(rec.Columns(), rec.Row()) {
			out = append(out, rec)
		}
	}
	return out
}
