package redaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		absent    string
		redacted  int
		unchanged bool
	}{
		{name: "7-digit phone", input: "Call user at 555-0199 for support", absent: "555-0199", redacted: 1},
		{name: "10-digit phone", input: "Contact: 123-456-7890", absent: "123-456-7890", redacted: 1},
		{name: "10-digit phone with dots", input: "Contact: 555.555.0199", absent: "555.555.0199", redacted: 1},
		{name: "10-digit phone without separators", input: "Contact: 5555550199", absent: "5555550199", redacted: 1},
		{name: "parenthesized area code", input: "Call (555) 123-4567", absent: "123-4567", redacted: 1},
		{name: "email", input: "Contact user at john.doe@example.com for help", absent: "john.doe@example.com", redacted: 1},
		{name: "ssn", input: "User SSN is 123-45-6789", absent: "123-45-6789", redacted: 1},
		{name: "mixed", input: "User john@test.com called 555-1234 with SSN 123-45-6789", redacted: 3},
		{name: "no false positive", input: "User accessed the dashboard at 10:00 AM", unchanged: true},
		{name: "empty", input: "", unchanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input)

			if tt.unchanged {
				assert.Equal(t, tt.input, got)
				return
			}

			assert.Equal(t, tt.redacted, strings.Count(got, Marker))
			if tt.absent != "" {
				assert.NotContains(t, got, tt.absent)
			}
		})
	}
}

func TestRedact_Idempotent(t *testing.T) {
	inputs := []string{
		"User john@test.com called 555-1234 with SSN 123-45-6789",
		"Call (555) 123-4567 or 555.555.0199",
		"nothing sensitive here",
	}

	for _, in := range inputs {
		once := Redact(in)
		assert.Equal(t, once, Redact(once))
	}
}

func TestRedact_PreservesSurroundingBytes(t *testing.T) {
	got := Redact("før 555-0199 efter\n\ttab")
	assert.Equal(t, "før [REDACTED] efter\n\ttab", got)
}

func TestRedactCount(t *testing.T) {
	r := New()

	got, counts := r.RedactCount("User john@test.com called 555-1234 with SSN 123-45-6789")

	assert.Equal(t, "User [REDACTED] called [REDACTED] with SSN [REDACTED]", got)
	assert.Equal(t, map[string]int{"email": 1, "phone_7": 1, "ssn": 1}, counts)
}

func TestPatterns_Order(t *testing.T) {
	var names []string
	for _, p := range New().Patterns() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"phone_10", "phone_7", "phone_parens", "email", "ssn"}, names)
}
