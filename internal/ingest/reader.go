// Package ingest parses uploaded files into raw payload records.
// Two formats are accepted: delimited tabular text whose first row names
// the fields, and a structured JSON list of records.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

// Parse reads a file into payload records, dispatching on the filename
// extension: .csv is tabular, anything else is treated as JSON.
func Parse(filename string, r io.Reader) ([]model.Payload, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return ParseCSV(r)
	}
	return ParseJSON(r)
}

// ParseCSV reads delimited tabular input. The first row supplies field
// names; each subsequent row becomes one payload record.
func ParseCSV(r io.Reader) ([]model.Payload, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", common.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	var payloads []model.Payload
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		payload := make(model.Payload, len(header))
		for i, field := range header {
			if i < len(row) {
				payload[field] = row[i]
			}
		}
		payloads = append(payloads, payload)
	}

	return payloads, nil
}

// ParseJSON reads a structured list of records, either as a bare list or
// wrapped in an {"items": [...]} object. Malformed input is rejected
// outright rather than partially parsed.
func ParseJSON(r io.Reader) ([]model.Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			Items []model.Payload `json:"items"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", common.ErrInvalidInput, err)
		}
		return body.Items, nil
	}

	var payloads []model.Payload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", common.ErrInvalidInput, err)
	}

	return payloads, nil
}

// Validate checks that every record resolves a description-like field under
// one of the two accepted names. Records without one are unusable.
func Validate(payloads []model.Payload) error {
	if len(payloads) == 0 {
		return fmt.Errorf("%w: no records", common.ErrInvalidInput)
	}
	for i, p := range payloads {
		if _, ok := p["description"]; ok {
			continue
		}
		if _, ok := p["desc"]; ok {
			continue
		}
		return fmt.Errorf("%w: record %d has no description field", common.ErrInvalidInput, i)
	}
	return nil
}
