// Package fetcher reads lead spreadsheets (XLSX and CSV) from a directory.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Sheet is one parsed spreadsheet: the header row and the data rows under it.
type Sheet struct {
	Source  string
	Headers []string
	Rows    [][]string
}

// Supported reports whether path has a spreadsheet extension this package reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
		return true
	default:
		return false
	}
}

// ListSpreadsheets returns the readable spreadsheets in dir sorted by name,
// and the names of other regular files it skipped. Lock files Office leaves
// behind ("~$name.xlsx") are skipped.
func ListSpreadsheets(dir string) (files, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "fetcher: read dir %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") || !Supported(name) {
			skipped = append(skipped, name)
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, skipped, nil
}

// ReadSheet parses the file at path by extension. The first non-blank row
// is the header; blank rows are dropped.
func ReadSheet(ctx context.Context, path string) (*Sheet, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = ReadXLSX(path, XLSXOptions{})
	case ".csv":
		rows, err = ReadCSVFile(ctx, path)
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	sheet := &Sheet{Source: filepath.Base(path)}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if sheet.Headers == nil {
			sheet.Headers = row
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
