// Package input reads the CSV lists and JSON metadata objects given on the
// command line.
package input

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	apperrors "almaconnector/pkg/errors"
)

// Row is one CSV line keyed by header.
type Row map[string]string

// ReadCSV reads a headed CSV document. Every name in required must be a
// column. Blank lines are dropped.
func ReadCSV(r io.Reader, required ...string) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.ErrValidation.WithMessage("csv input is empty")
	}
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessage("malformed csv header").WithCause(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, apperrors.ErrValidation.
			WithMessagef("csv header must contain %s, missing %s", strings.Join(required, ","), strings.Join(missing, ",")).
			WithDetail("header", strings.Join(header, ","))
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.ErrValidation.WithMessagef("malformed csv line %d", line).WithCause(err)
		}
		if isBlank(record) {
			continue
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func ReadCSVFile(path string, required ...string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessagef("cannot open csv file %s", path).WithCause(err)
	}
	defer f.Close()
	return ReadCSV(f, required...)
}

// ParseMetadata decodes a JSON object into string values. Non-string
// scalars are formatted; nested values are rejected.
func ParseMetadata(raw string, required ...string) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, apperrors.ErrValidation.WithMessage("metadata must be a JSON object").WithCause(err)
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			return nil, apperrors.ErrValidation.WithMessagef("metadata value of %q must be a scalar", k)
		}
	}

	var missing []string
	for _, key := range required {
		if _, ok := out[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.ErrValidation.WithMessagef("metadata is missing keys: %s", strings.Join(missing, ","))
	}
	return out, nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
