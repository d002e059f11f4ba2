package address

import (
	"strings"

	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// Row is one spreadsheet record keyed by its raw header text. Column order is
// kept so the fuzzy pass is deterministic.
type Row struct {
	headers []string
	values  map[string]string
}

// NewRow pairs headers with cells. Missing cells read as empty; extra cells
// and repeated headers after the first are ignored.
func NewRow(headers, cells []string) Row {
	r := Row{values: make(map[string]string, len(headers))}
	for i, h := range headers {
		if _, dup := r.values[h]; dup {
			continue
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		r.headers = append(r.headers, h)
		r.values[h] = v
	}
	return r
}

// RowFromMap builds a row from a header->value map with the given column order.
func RowFromMap(order []string, m map[string]string) Row {
	cells := make([]string, len(order))
	for i, h := range order {
		cells[i] = m[h]
	}
	return NewRow(order, cells)
}

// Headers returns the row's headers in column order.
func (r Row) Headers() []string {
	return r.headers
}

// Get returns the trimmed value under an exact header.
func (r Row) Get(header string) (string, bool) {
	v, ok := r.values[header]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, v := range r.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// exact returns the first non-empty value under one of the variants.
func (r Row) exact(variants []string) (string, bool) {
	for _, v := range variants {
		if val, ok := r.Get(v); ok && val != "" {
			return val, true
		}
	}
	return "", false
}

// lookup tries the variants for an exact header hit first, then falls back
// to case-insensitive containment in either direction between each variant
// and each header. The first non-empty value wins.
func (r Row) lookup(variants []string) (string, bool) {
	if val, ok := r.exact(variants); ok {
		return val, true
	}

	for _, v := range variants {
		fv := textnorm.FoldKey(v)
		if fv == "" {
			continue
		}
		for _, h := range r.headers {
			fh := textnorm.FoldKey(h)
			if fh == "" {
				continue
			}
			if !strings.Contains(fv, fh) && !strings.Contains(fh, fv) {
				continue
			}
			if val, _ := r.Get(h); val != "" {
				return val, true
			}
		}
	}
	return "", false
}
