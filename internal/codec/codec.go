// Package codec turns a transport envelope into a validated InternalMessage.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"logworker/pkg/models"
)

type Kind string

const (
	BadEncoding     Kind = "bad_encoding"
	BadJSON         Kind = "bad_json"
	SchemaViolation Kind = "schema_violation"
)

// DecodeError is permanent: the same payload will never decode on redelivery.
type DecodeError struct {
	Kind   Kind
	Fields []string // offending fields, only for SchemaViolation
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Kind == SchemaViolation && len(e.Fields) > 0:
		return fmt.Sprintf("%s: invalid fields [%s]", e.Kind, strings.Join(e.Fields, ", "))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) IsFatal() bool {
	return true
}

func (e *DecodeError) IsRetryable() bool {
	return false
}

var requiredFields = []string{"tenant_id", "log_id", "text", "source", "ingested_at"}

// Decode validates env and returns the message it carries. It has no side effects.
func Decode(env models.PushEnvelope) (models.InternalMessage, error) {
	raw, err := decodeBase64(env.Message.Data)
	if err != nil {
		return models.InternalMessage{}, &DecodeError{Kind: BadEncoding, Err: err}
	}

	if !utf8.Valid(raw) {
		return models.InternalMessage{}, &DecodeError{Kind: BadJSON, Err: fmt.Errorf("payload is not valid UTF-8")}
	}

	if !json.Valid(raw) {
		return models.InternalMessage{}, &DecodeError{Kind: BadJSON, Err: fmt.Errorf("payload is not valid JSON")}
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		return models.InternalMessage{}, &DecodeError{Kind: SchemaViolation, Fields: requiredFields, Err: err}
	}

	values := make(map[string]string, len(requiredFields))
	var invalid []string
	for _, field := range requiredFields {
		rawValue, ok := object[field]
		if !ok {
			invalid = append(invalid, field)
			continue
		}
		var s string
		if err := json.Unmarshal(rawValue, &s); err != nil {
			invalid = append(invalid, field)
			continue
		}
		values[field] = s
	}

	invalid = append(invalid, validateValues(values)...)
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return models.InternalMessage{}, &DecodeError{Kind: SchemaViolation, Fields: invalid}
	}

	return models.InternalMessage{
		TenantID:   values["tenant_id"],
		LogID:      values["log_id"],
		Text:       values["text"],
		Source:     models.Source(values["source"]),
		IngestedAt: values["ingested_at"],
	}, nil
}

// validateValues checks the fields that decoded as strings.
func validateValues(values map[string]string) []string {
	var invalid []string

	if v, ok := values["tenant_id"]; ok && !models.ValidTenantID(v) {
		invalid = append(invalid, "tenant_id")
	}
	if v, ok := values["log_id"]; ok && !models.ValidLogID(v) {
		invalid = append(invalid, "log_id")
	}
	if v, ok := values["text"]; ok && !models.ValidText(v) {
		invalid = append(invalid, "text")
	}
	if v, ok := values["source"]; ok && !models.Source(v).Valid() {
		invalid = append(invalid, "source")
	}
	if v, ok := values["ingested_at"]; ok && strings.TrimSpace(v) == "" {
		invalid = append(invalid, "ingested_at")
	}

	return invalid
}

func decodeBase64(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		return raw, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(data); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
