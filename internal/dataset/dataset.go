// Package dataset parses uploaded tabular files into rows of scalar values.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/accionlabs/intelhub/internal/models"
)

// DefaultMaxBytes is the upload size limit applied when none is configured.
const DefaultMaxBytes = 2 << 20

var (
	ErrTooLarge        = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported file type (use .xlsx, .xlsm, .ods, .csv or .json)")
	ErrEmptyDataset    = errors.New("file is empty or contains no rows")
)

// Supported reports whether name has an extension Parse understands.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".xlsx", ".xlsm", ".ods", ".csv":
		return true
	}
	return false
}

// Parse converts file content into a dataset, dispatching on the extension of name.
// Content larger than maxBytes is rejected before any parsing; maxBytes <= 0 uses DefaultMaxBytes.
func Parse(name string, content []byte, maxBytes int64) (*models.Dataset, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(content), maxBytes)
	}

	var (
		rows []models.Row
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		rows, err = parseJSON(content)
	case ".xlsx", ".xlsm":
		rows, err = parseExcel(content)
	case ".ods":
		rows, err = parseODS(content)
	case ".csv":
		rows, err = parseCSV(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return &models.Dataset{Name: filepath.Base(name), Rows: rows, LoadedAt: time.Now()}, nil
}

// ParseFile reads path and parses it like Parse.
func ParseFile(path string, maxBytes int64) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), maxBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, content, maxBytes)
}

// Sample returns at most max leading rows and whether rows were dropped. max <= 0 keeps all rows.
func Sample(rows []models.Row, max int) ([]models.Row, bool) {
	if max <= 0 || len(rows) <= max {
		return rows, false
	}
	return rows[:max], true
}

// tableRows turns a header row plus string records into rows. Empty cells are omitted and
// rows with no values are skipped.
func tableRows(records [][]string) []models.Row {
	if len(records) == 0 {
		return nil
	}
	header := headerNames(records[0])
	rows := make([]models.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(models.Row)
		for i, cell := range rec {
			if i >= len(header) {
				break
			}
			if v, ok := cellValue(cell); ok {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// headerNames names blank header cells by position and suffixes duplicates.
// A suffixed name never takes a name that appears elsewhere in the header.
func headerNames(cells []string) []string {
	names := make([]string, len(cells))
	given := make(map[string]bool, len(cells))
	for i, c := range cells {
		names[i] = strings.TrimSpace(c)
		if names[i] == "" {
			names[i] = "Column " + strconv.Itoa(i+1)
		}
		given[names[i]] = true
	}
	used := make(map[string]bool, len(cells))
	for i, name := range names {
		if used[name] {
			for n := 2; ; n++ {
				candidate := name + "_" + strconv.Itoa(n)
				if !used[candidate] && !given[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// cellValue converts cell text to a float64, a bool or a trimmed string. Blank cells report false.
func cellValue(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return true, true
	case "FALSE":
		return false, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && looksNumeric(s) {
		return f, true
	}
	return s, true
}

// looksNumeric rejects forms ParseFloat accepts that are not plain numbers in a sheet (Inf, NaN, hex).
func looksNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
