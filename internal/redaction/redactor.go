// Package redaction masks phone numbers, email addresses and SSNs in free text.
package redaction

import "regexp"

const Marker = "[REDACTED]"

type Pattern struct {
	Name string
	re   *regexp.Regexp
}

func (p Pattern) Expr() string {
	return p.re.String()
}

// Passes run in order. The 10-digit phone pass precedes the 7-digit pass so a
// 10-digit number is never half-masked.
var patterns = []Pattern{
	{Name: "phone_10", re: regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{Name: "phone_7", re: regexp.MustCompile(`\b\d{3}[-.\s]?\d{4}\b`)},
	{Name: "phone_parens", re: regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`)},
	{Name: "email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)},
	{Name: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

type Redactor interface {
	Redact(text string) string
}

type PatternRedactor struct {
	patterns []Pattern
}

func New() *PatternRedactor {
	return &PatternRedactor{patterns: patterns}
}

func (r *PatternRedactor) Patterns() []Pattern {
	out := make([]Pattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

func (r *PatternRedactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.re.ReplaceAllLiteralString(text, Marker)
	}
	return text
}

// RedactCount is Redact plus the number of substitutions made by each pass.
func (r *PatternRedactor) RedactCount(text string) (string, map[string]int) {
	counts := make(map[string]int)
	for _, p := range r.patterns {
		matches := p.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		counts[p.Name] = len(matches)
		text = p.re.ReplaceAllLiteralString(text, Marker)
	}
	return text, counts
}

var defaultRedactor = New()

func Redact(text string) string {
	return defaultRedactor.Redact(text)
}
