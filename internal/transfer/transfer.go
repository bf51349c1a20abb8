// Package transfer implements problem-set import and export in five
// formats (TSV, CSV, JSON, XML, YAML) and three modes: full (definition
// plus progress), problems (definition only), and user (progress only).
// Imports detect conflicts against the live tracker state and resolve
// them per problem; destructive imports snapshot the set first so they
// can be undone.
package transfer

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies a serialization format.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// ParseFormat normalizes a user-supplied format name. ok is false for
// anything unrecognized.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tsv":
		return FormatTSV, true
	case "csv":
		return FormatCSV, true
	case "json":
		return FormatJSON, true
	case "xml":
		return FormatXML, true
	case "yaml", "yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// DetectFormat guesses the format of an import file, first from the
// filename extension and then from the content shape. CSV is the
// fallback when nothing else matches.
func DetectFormat(filename string, content []byte) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if f, ok := ParseFormat(ext); ok {
		return f
	}

	trimmed := bytes.TrimSpace(content)
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")), bytes.HasPrefix(trimmed, []byte("[")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("<?xml")), bytes.HasPrefix(trimmed, []byte("<export")):
		return FormatXML
	case bytes.ContainsRune(trimmed, '\t') && !bytes.ContainsRune(trimmed, ','):
		return FormatTSV
	case bytes.HasPrefix(trimmed, []byte("fileKey:")), bytes.HasPrefix(trimmed, []byte("problems:")):
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Mode selects which slice of each problem an export carries or an
// import is allowed to touch.
type Mode string

const (
	ModeFull     Mode = "full"
	ModeProblems Mode = "problems"
	ModeUser     Mode = "user"
)

// ParseMode normalizes a user-supplied mode name, defaulting to full.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "problems":
		return ModeProblems
	case "user":
		return ModeUser
	default:
		return ModeFull
	}
}

// FileKeyFromFilename derives a set key from an import filename when the
// payload carries none: extension stripped, lowercased, every run of
// non-alphanumerics replaced with underscores.
func FileKeyFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	var b strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Column headers, in canonical order. Imports also accept the legacy
// header spellings used by older set files (see fieldFromHeader).
var (
	problemHeaders = []string{"Problem Name", "Difficulty", "Intermediate Time", "Advanced Time", "Top Time", "Pattern"}
	userHeaders    = []string{"Problem Name", "Solved", "Time to Solve", "Comments", "Solved Date"}
	fullHeaders    = []string{"Problem Name", "Difficulty", "Intermediate Time", "Advanced Time", "Top Time", "Pattern", "Solved", "Time to Solve", "Comments", "Solved Date"}
)

func headersForMode(mode Mode) []string {
	switch mode {
	case ModeProblems:
		return problemHeaders
	case ModeUser:
		return userHeaders
	default:
		return fullHeaders
	}
}

// fieldFromHeader maps a column header to its canonical field name.
// Unknown headers degrade to a snake_cased version of themselves so a
// foreign column survives a round trip instead of vanishing.
func fieldFromHeader(header string) string {
	switch header {
	case "Problem Name":
		return "name"
	case "Difficulty":
		return "difficulty"
	case "Intermediate Time", "Intermediate Max time":
		return "intermediate_time"
	case "Advanced Time", "Advanced Max time":
		return "advanced_time"
	case "Top Time", "Top of the crop max time":
		return "top_time"
	case "Pattern", "Problem Pattern":
		return "pattern"
	case "Solved":
		return "solved"
	case "Time to Solve":
		return "time_to_solve"
	case "Comments":
		return "comments"
	case "Solved Date":
		return "solved_date"
	default:
		return strings.ReplaceAll(strings.ToLower(header), " ", "_")
	}
}

// parseBoolValue accepts the spellings of truth that show up in the
// wild: "true" in any case, and "1".
func parseBoolValue(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}
