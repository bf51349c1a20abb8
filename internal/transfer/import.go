package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed import payload. FileKey is empty for formats that
// do not carry one (TSV, CSV, bare JSON arrays); callers fall back to
// FileKeyFromFilename. Mode is the payload's declared mode, or the mode
// inferred from the first row's fields.
type Document struct {
	FileKey string
	Mode    Mode
	Rows    []Row
}

// Parse decodes an import payload in the given format.
func Parse(content []byte, format Format) (*Document, error) {
	switch format {
	case FormatTSV:
		return parseTSV(content), nil
	case FormatCSV:
		return parseCSV(content)
	case FormatJSON:
		return parseJSON(content)
	case FormatXML:
		return parseXML(content)
	case FormatYAML:
		return parseYAML(content)
	default:
		return nil, fmt.Errorf("unknown import format %q", format)
	}
}

// detectedMode resolves a document's mode: the declared one wins, then
// the first row's field shape, then full.
func detectedMode(declared Mode, rows []Row) Mode {
	if declared != "" {
		return ParseMode(string(declared))
	}
	if len(rows) > 0 {
		return rows[0].DetectMode()
	}
	return ModeFull
}

func rowsFromRecords(headers []string, records [][]string) []Row {
	fields := make([]string, len(headers))
	for i, h := range headers {
		fields[i] = fieldFromHeader(strings.TrimSpace(h))
	}
	var rows []Row
	for _, values := range records {
		// Short rows are truncated artifacts, not data.
		if len(values) < len(headers) {
			continue
		}
		var r Row
		for i, field := range fields {
			r.setField(field, strings.TrimSpace(values[i]))
		}
		rows = append(rows, r)
	}
	return rows
}

func parseTSV(content []byte) *Document {
	// Only trailing newlines are stripped here. A whole-content TrimSpace
	// would eat the trailing tabs of the last row, turning a final row
	// with empty trailing fields into a short record.
	lines := strings.Split(strings.TrimRight(string(content), "\r\n"), "\n")
	if len(lines) < 2 {
		return &Document{Mode: ModeFull}
	}
	headers := strings.Split(strings.TrimRight(lines[0], "\r"), "\t")
	records := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		records = append(records, strings.Split(strings.TrimRight(line, "\r"), "\t"))
	}
	rows := rowsFromRecords(headers, records)
	return &Document{Mode: detectedMode("", rows), Rows: rows}
}

func parseCSV(content []byte) (*Document, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV import: %w", err)
	}
	if len(all) < 2 {
		return &Document{Mode: ModeFull}, nil
	}
	rows := rowsFromRecords(all[0], all[1:])
	return &Document{Mode: detectedMode("", rows), Rows: rows}, nil
}

func parseJSON(content []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(content)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var rows []Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse JSON import: %w", err)
		}
		return &Document{Mode: detectedMode("", rows), Rows: rows}, nil
	}
	var doc jsonExport
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON import: %w", err)
	}
	return &Document{
		FileKey: doc.FileKey,
		Mode:    detectedMode(doc.Mode, doc.Problems),
		Rows:    doc.Problems,
	}, nil
}

func parseXML(content []byte) (*Document, error) {
	var doc xmlExport
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML import: %w", err)
	}
	return &Document{
		FileKey: doc.FileKey,
		Mode:    detectedMode(doc.Mode, doc.Problems),
		Rows:    doc.Problems,
	}, nil
}

func parseYAML(content []byte) (*Document, error) {
	var doc jsonExport
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML import: %w", err)
	}
	return &Document{
		FileKey: doc.FileKey,
		Mode:    detectedMode(doc.Mode, doc.Problems),
		Rows:    doc.Problems,
	}, nil
}
