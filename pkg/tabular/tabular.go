// Package tabular parses the delimited artifacts a backtest run leaves
// behind. The documents are semi-trusted: quoting may be sloppy, rows may be
// short, and a single bad row must never fail the document.
package tabular

import "strings"

// DefaultPointBudget caps ReadPoints when the caller passes no budget.
const DefaultPointBudget = 500

// Record is one parsed row keyed by header name.
type Record map[string]string

// Point is one (date, value) row of a plain two-column document. Values stay
// untyped text; coercion is the caller's responsibility.
type Point struct {
	Date  string
	Value string
}

// SplitLine splits one comma-delimited line into its fields. A field wrapped
// in double quotes may contain commas, and a doubled quote inside a quoted
// field is one literal quote. Unquoted content is reproduced byte-for-byte.
func SplitLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// ReadRecords parses a header-form document: the first row names the fields,
// every following non-blank row is mapped positionally to those names.
// Missing trailing fields default to empty text; extra fields are dropped.
// budget <= 0 keeps every row, otherwise only the earliest budget rows.
func ReadRecords(doc string, budget int) []Record {
	lines := splitLines(doc)
	if len(lines) == 0 {
		return nil
	}

	header := SplitLine(lines[0])
	var records []Record
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if budget > 0 && len(records) >= budget {
			break
		}
		fields := SplitLine(line)
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = fields[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

// ReadPoints parses a plain point-form document: a header row followed by
// (date, value) rows. Rows with fewer than two fields are silently skipped.
// budget <= 0 applies DefaultPointBudget; the earliest rows are kept.
func ReadPoints(doc string, budget int) []Point {
	if budget <= 0 {
		budget = DefaultPointBudget
	}

	lines := splitLines(doc)
	if len(lines) < 2 {
		return nil
	}

	var points []Point
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(points) >= budget {
			break
		}
		fields := SplitLine(line)
		if len(fields) < 2 {
			continue
		}
		points = append(points, Point{Date: fields[0], Value: fields[1]})
	}
	return points
}

func splitLines(doc string) []string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.TrimRight(doc, "\n")
	if doc == "" {
		return nil
	}
	return strings.Split(doc, "\n")
}
