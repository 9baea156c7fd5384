package telemetry

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// Format identifies a supported telemetry batch encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ErrUnsupportedFormat is returned for inputs that are none of CSV, JSON or
// JSONL. Callers at the API boundary map it to a client-visible 400.
var ErrUnsupportedFormat = errors.New("unsupported telemetry format (expected CSV, JSON or JSONL)")

// DetectFormat guesses the batch encoding from the file name extension,
// falling back to content sniffing when the extension is unknown.
func DetectFormat(name string, body []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	}
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		return "", ErrUnsupportedFormat
	}
	if trim[0] == '[' {
		return FormatJSON, nil
	}
	if trim[0] == '{' {
		// A whole-body valid object is JSON, even pretty-printed across
		// lines. Newline-separated objects fail that check and are JSONL.
		if json.Valid(trim) {
			return FormatJSON, nil
		}
		return FormatJSONL, nil
	}
	if bytes.IndexByte(trim, ',') >= 0 {
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// ReadBatch decodes a telemetry batch in the given format into rows.
func ReadBatch(format Format, r io.Reader) ([]Row, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatJSONL:
		return ReadJSONL(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadCSV reads a header-prefixed CSV table. Cell types are inferred the way
// tabular importers do: empty cells become null, numeric cells numbers,
// "true"/"false" booleans, everything else strings.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(record) {
				break
			}
			row[col] = inferCell(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadJSON reads either a JSON array of objects or a single object.
func ReadJSON(r io.Reader) ([]Row, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json body: %w", err)
	}
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		return nil, nil
	}

	if trim[0] == '[' {
		var raws []map[string]interface{}
		if err := json.Unmarshal(trim, &raws); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
		rows := make([]Row, 0, len(raws))
		for _, raw := range raws {
			rows = append(rows, fromMap(raw))
		}
		return rows, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(trim, &raw); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	return []Row{fromMap(raw)}, nil
}

// ReadJSONL reads newline-delimited JSON objects, skipping blank lines.
func ReadJSONL(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var rows []Row
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("decode jsonl line %d: %w", lineNum, err)
		}
		rows = append(rows, fromMap(raw))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return rows, nil
}

func fromMap(raw map[string]interface{}) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		row[k] = FromAny(v)
	}
	return row
}

func inferCell(s string) Value {
	if s == "" {
		return Null
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(s)
}
