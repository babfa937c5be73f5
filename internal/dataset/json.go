package dataset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/accionlabs/intelhub/internal/models"
)

var errNotArray = errors.New("JSON must be an array of objects")

// parseJSON reads an array of objects. Nested values are kept as compact JSON text and
// nulls are omitted so every row holds scalars only.
func parseJSON(content []byte) ([]models.Row, error) {
	var items []any
	if err := json.Unmarshal(content, &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotArray
		}
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	rows := make([]models.Row, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d", errNotArray, i)
		}
		row := make(models.Row, len(obj))
		for k, v := range obj {
			switch tv := v.(type) {
			case nil:
			case string, float64, bool:
				row[k] = tv
			default:
				b, err := json.Marshal(tv)
				if err != nil {
					return nil, fmt.Errorf("encode nested value %q: %w", k, err)
				}
				row[k] = string(b)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
