// Package csv decodes tenant-uploaded delimited text into header-keyed
// rows.
//
// The decoder is hand-rolled rather than built on
// encoding/csv: uploads arrive from uncontrolled spreadsheet exports and
// the required semantics differ from RFC 4180 in ways encoding/csv does
// not offer: per-field whitespace trimming, missing trailing fields
// defaulting to empty strings instead of erroring, blank logical lines
// silently dropped, and a bounded preview sharing the exact same scan.
package csv

import (
	"strings"
)

// bom is the UTF-8 byte order mark some Windows exports prepend.
const bom = "\uFEFF"

// Decode converts raw CSV text into rows keyed by the header line.
//
// The first logical line is the header; every subsequent line is zipped
// against it. A row always carries exactly as many keys as the header has
// columns: missing trailing values become empty strings, never absent
// keys. Extra values beyond the header are discarded.
//
// Returns the header (sanitization is the caller's concern) and the data
// rows. Empty input, or input with a header but no data lines, yields an
// empty row slice.
func Decode(text string) ([]string, []Row) {
	return decode(text, -1)
}

// Preview decodes at most limit data rows using the identical scan as
// Decode, so a preview never disagrees with a full ingestion.
func Preview(text string, limit int) ([]string, []Row) {
	if limit < 0 {
		limit = 0
	}
	return decode(text, limit)
}

func decode(text string, limit int) ([]string, []Row) {
	text = strings.TrimPrefix(text, bom)

	lines := splitLogicalLines(text)
	if len(lines) == 0 {
		return nil, nil
	}

	header := splitFields(lines[0])
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if limit >= 0 && len(rows) >= limit {
			break
		}
		fields := splitFields(line)

		row := NewRow()
		for i, name := range header {
			if i < len(fields) {
				row.Set(name, Text(strings.TrimSpace(fields[i])))
			} else {
				row.Set(name, Text(""))
			}
		}
		rows = append(rows, row)
	}

	return header, rows
}

// splitLogicalLines splits text into logical lines, honoring quoting: a
// line terminator inside a quoted field is part of the field, not a line
// break. Both \n and \r\n (and bare \r) terminate lines outside quotes.
// Blank logical lines are dropped.
func splitLogicalLines(text string) []string {
	var lines []string
	var cur strings.Builder
	inQuotes := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				// Escaped quote: one literal quote, consumed as a unit.
				cur.WriteString(`""`)
				i++
				continue
			}
			inQuotes = !inQuotes
			cur.WriteRune(c)

		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			if line := cur.String(); strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
			cur.Reset()

		default:
			cur.WriteRune(c)
		}
	}

	if line := cur.String(); strings.TrimSpace(line) != "" {
		lines = append(lines, line)
	}

	return lines
}

// splitFields splits one logical line into fields at top-level commas,
// using the same quote-state scan as the line splitter. Quote delimiters
// are removed from the field value and escaped quotes become one literal
// quote.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes

		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()

		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())

	return fields
}
