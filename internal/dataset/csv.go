package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/accionlabs/intelhub/internal/models"
)

func parseCSV(content []byte) ([]models.Row, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	return tableRows(records), nil
}
