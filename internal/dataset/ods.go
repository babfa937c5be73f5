package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/accionlabs/intelhub/internal/models"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

// odsMaxRepeat caps repeated rows and columns; producers pad sheets with huge repeat counts.
const odsMaxRepeat = 1000

// Limits on the expanded table. Repeat attributes let a small upload describe a huge sheet.
const (
	odsMaxCells     = 1 << 20
	odsMaxCellBytes = 64 << 10
)

// parseODS reads the first table of an OpenDocument spreadsheet; its first row is the header.
func parseODS(content []byte) ([]models.Row, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open ODS: not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open ODS %s: %w", f.Name, err)
		}
		defer rc.Close()
		records, err := odsFirstTable(rc)
		if err != nil {
			return nil, fmt.Errorf("read ODS %s: %w", f.Name, err)
		}
		return tableRows(records), nil
	}
	return nil, fmt.Errorf("open ODS: %s not found", odsContentPath)
}

// odsBudget counts expanded cells across the table.
type odsBudget struct {
	cells int
}

func (b *odsBudget) spend(n int) error {
	b.cells += n
	if b.cells > odsMaxCells {
		return fmt.Errorf("%w: table expands past %d cells", ErrTooLarge, odsMaxCells)
	}
	return nil
}

type odsCell struct {
	text   strings.Builder
	typed  string
	paras  int
	repeat int
}

// odsFirstTable streams content.xml and returns the cell text of the first table:table.
// Typed numeric and boolean cells use their office:value attributes rather than display text.
func odsFirstTable(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)
	var (
		records   [][]string
		inTable   bool
		row       []string
		rowRepeat int
		// blank cells seen since the last value; trailing blanks are never expanded
		pending int
		cell    *odsCell
		budget  odsBudget
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if inTable {
					if err := dec.Skip(); err != nil {
						return nil, err
					}
					continue
				}
				inTable = true
			case "table-row":
				if !inTable {
					continue
				}
				row = row[:0]
				pending = 0
				rowRepeat = repeatAttr(t.Attr, "number-rows-repeated")
			case "table-cell", "covered-table-cell":
				if !inTable {
					continue
				}
				cell = &odsCell{repeat: repeatAttr(t.Attr, "number-columns-repeated"), typed: typedValue(t.Attr)}
			case "p":
				if cell != nil {
					if cell.paras > 0 {
						cell.text.WriteByte('\n')
					}
					cell.paras++
				}
			case "s":
				if cell != nil {
					cell.text.WriteString(strings.Repeat(" ", repeatAttr(t.Attr, "c")))
					if cell.text.Len() > odsMaxCellBytes {
						return nil, fmt.Errorf("%w: cell text exceeds %d bytes", ErrTooLarge, odsMaxCellBytes)
					}
				}
			}
		case xml.CharData:
			if cell != nil {
				cell.text.Write(t)
				if cell.text.Len() > odsMaxCellBytes {
					return nil, fmt.Errorf("%w: cell text exceeds %d bytes", ErrTooLarge, odsMaxCellBytes)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "table":
				if inTable {
					return records, nil
				}
			case "table-cell", "covered-table-cell":
				if cell == nil {
					continue
				}
				v := cell.typed
				if v == "" {
					v = cell.text.String()
				}
				repeat := cell.repeat
				cell = nil
				if strings.TrimSpace(v) == "" {
					pending += repeat
					continue
				}
				if err := budget.spend(pending + repeat); err != nil {
					return nil, err
				}
				for ; pending > 0; pending-- {
					row = append(row, "")
				}
				for i := 0; i < repeat; i++ {
					row = append(row, v)
				}
			case "table-row":
				if !inTable {
					continue
				}
				if len(row) == 0 {
					continue
				}
				if err := budget.spend(len(row) * (rowRepeat - 1)); err != nil {
					return nil, err
				}
				for i := 0; i < rowRepeat; i++ {
					records = append(records, append([]string(nil), row...))
				}
			}
		}
	}
}

func repeatAttr(attrs []xml.Attr, local string) int {
	for _, a := range attrs {
		if a.Name.Local != local {
			continue
		}
		n, err := strconv.Atoi(a.Value)
		if err != nil || n < 1 {
			return 1
		}
		return min(n, odsMaxRepeat)
	}
	return 1
}

func typedValue(attrs []xml.Attr) string {
	var valueType, value, boolValue string
	for _, a := range attrs {
		switch a.Name.Local {
		case "value-type":
			valueType = a.Value
		case "value":
			value = a.Value
		case "boolean-value":
			boolValue = a.Value
		}
	}
	switch valueType {
	case "float", "percentage", "currency":
		return value
	case "boolean":
		return strings.ToUpper(boolValue)
	}
	return ""
}
