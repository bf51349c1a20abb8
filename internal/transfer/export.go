package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grindpulse/grindsync/internal/model"
)

const exportVersion = "1.0"

// jsonExport is the structured-payload envelope shared by JSON and YAML
// exports. XML carries the same metadata as attributes on the root
// element.
type jsonExport struct {
	FileKey    string `json:"fileKey" yaml:"fileKey"`
	Mode       Mode   `json:"mode" yaml:"mode"`
	ExportDate string `json:"exportDate" yaml:"exportDate"`
	Version    string `json:"version" yaml:"version"`
	Problems   []Row  `json:"problems" yaml:"problems"`
}

type xmlExport struct {
	XMLName    xml.Name `xml:"export"`
	FileKey    string   `xml:"fileKey,attr"`
	Mode       Mode     `xml:"mode,attr"`
	ExportDate string   `xml:"exportDate,attr"`
	Version    string   `xml:"version,attr"`
	Problems   []Row    `xml:"problems>problem"`
}

// Export serializes one set in the given format and mode. now stamps the
// exportDate metadata of the structured formats; TSV and CSV carry no
// metadata beyond their header row.
func Export(set *model.ProblemSet, format Format, mode Mode, now time.Time) ([]byte, error) {
	rows := make([]Row, 0, len(set.Problems))
	for _, p := range set.Problems {
		rows = append(rows, rowForMode(p, mode))
	}

	switch format {
	case FormatTSV:
		return exportTSV(rows, mode), nil
	case FormatCSV:
		return exportCSV(rows, mode)
	case FormatJSON:
		doc := jsonExport{
			FileKey:    set.Key,
			Mode:       mode,
			ExportDate: now.UTC().Format(time.RFC3339),
			Version:    exportVersion,
			Problems:   rows,
		}
		return json.MarshalIndent(doc, "", "  ")
	case FormatXML:
		doc := xmlExport{
			FileKey:    set.Key,
			Mode:       mode,
			ExportDate: now.UTC().Format(time.RFC3339),
			Version:    exportVersion,
			Problems:   rows,
		}
		out, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize XML export: %w", err)
		}
		return append([]byte(xml.Header), out...), nil
	case FormatYAML:
		doc := jsonExport{
			FileKey:    set.Key,
			Mode:       mode,
			ExportDate: now.UTC().Format(time.RFC3339),
			Version:    exportVersion,
			Problems:   rows,
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// escapeTSV flattens tabs and newlines to spaces so one problem always
// occupies one line.
func escapeTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}

func exportTSV(rows []Row, mode Mode) []byte {
	headers := headersForMode(mode)
	var b bytes.Buffer
	b.WriteString(strings.Join(headers, "\t"))
	b.WriteByte('\n')
	for _, r := range rows {
		for i, h := range headers {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(escapeTSV(r.fieldValue(fieldFromHeader(h))))
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func exportCSV(rows []Row, mode Mode) ([]byte, error) {
	headers := headersForMode(mode)
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(headers))
	for _, r := range rows {
		for i, h := range headers {
			record[i] = r.fieldValue(fieldFromHeader(h))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row for %q: %w", r.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV export: %w", err)
	}
	return b.Bytes(), nil
}
