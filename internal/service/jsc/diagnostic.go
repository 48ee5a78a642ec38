package jsc

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a compiler output line.
type Severity string

const (
	// SeverityError is a canonical error, including fatal errors.
	SeverityError Severity = "error"
	// SeverityWarning is a canonical warning.
	SeverityWarning Severity = "warning"
	// SeverityInfo is a canonical informational message.
	SeverityInfo Severity = "info"
	// SeverityMessage is any line not in the canonical format.
	SeverityMessage Severity = "message"
)

// canonicalPattern matches "origin(line,col) : [subcategory] error|warning CODE: text".
// The origin requires a blank after its colon so drive letters are not split.
var canonicalPattern = regexp.MustCompile(
	`^\s*(?:(?P<origin>.*?)(?:\((?P<location>[0-9,\- ]+)\))?\s*:\s+)?` +
		`(?P<subcategory>[^:]*?\s)?(?P<category>(?i:error|warning|info))` +
		`(?:\s+(?P<code>[A-Za-z]*[0-9]+))?\s*:\s*(?P<text>.*)$`)

// Diagnostic is one parsed compiler output line.
type Diagnostic struct {
	Severity    Severity
	Origin      string
	Line        int
	Column      int
	Subcategory string
	Code        string
	Text        string
	// Raw is the line as the compiler printed it.
	Raw string
}

// ParseDiagnostic classifies line. Lines outside the canonical format come
// back as SeverityMessage with Text set to the trimmed line.
func ParseDiagnostic(line string) Diagnostic {
	raw := strings.TrimRight(line, "\r\n")

	m := canonicalPattern.FindStringSubmatch(raw)
	if m == nil {
		return Diagnostic{Severity: SeverityMessage, Text: strings.TrimSpace(raw), Raw: raw}
	}

	group := func(name string) string {
		return strings.TrimSpace(m[canonicalPattern.SubexpIndex(name)])
	}

	d := Diagnostic{
		Severity:    Severity(strings.ToLower(group("category"))),
		Origin:      group("origin"),
		Subcategory: group("subcategory"),
		Code:        group("code"),
		Text:        group("text"),
		Raw:         raw,
	}

	d.Line, d.Column = parseLocation(group("location"))

	return d
}

// parseLocation reads "line", "line,col", "line-line" or "line,col,line,col".
func parseLocation(location string) (line, column int) {
	if location == "" {
		return 0, 0
	}

	parts := strings.Split(location, ",")

	line = leadingInt(parts[0])
	if len(parts) > 1 {
		column = leadingInt(parts[1])
	}

	return line, column
}

func leadingInt(s string) int {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "-")

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}

	return n
}

// String renders the diagnostic in the canonical format.
func (d Diagnostic) String() string {
	if d.Severity == SeverityMessage {
		return d.Text
	}

	var b strings.Builder

	if d.Origin != "" {
		b.WriteString(d.Origin)

		if d.Line > 0 {
			b.WriteString("(" + strconv.Itoa(d.Line))

			if d.Column > 0 {
				b.WriteString("," + strconv.Itoa(d.Column))
			}

			b.WriteString(")")
		}

		b.WriteString(" : ")
	}

	if d.Subcategory != "" {
		b.WriteString(d.Subcategory + " ")
	}

	b.WriteString(string(d.Severity))

	if d.Code != "" {
		b.WriteString(" " + d.Code)
	}

	b.WriteString(": " + d.Text)

	return b.String()
}
