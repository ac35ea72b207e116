package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTenantIDLength = 128
	MaxLogIDLength    = 128
	MaxTextLength     = 1_000_000
	LogIDPrefix       = "log_"
)

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

var (
	ErrInvalidTenantID = errors.New("tenant_id must be 1-128 characters of letters, digits, '_' or '-'")
	ErrInvalidText     = errors.New("text must be between 1 and 1000000 characters")
	ErrInvalidSource   = errors.New("source must be json_upload or text_upload")
)

// GenerateLogID returns an id of the form log_<16 hex chars>.
func GenerateLogID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return LogIDPrefix + hex[:16]
}

// NormalizeTenantID lowercases id and checks it against the tenant id alphabet.
func NormalizeTenantID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if !ValidTenantID(normalized) {
		return "", ErrInvalidTenantID
	}
	return normalized, nil
}

func ValidTenantID(id string) bool {
	return len(id) > 0 && len(id) <= MaxTenantIDLength && tenantIDPattern.MatchString(id)
}

// ValidLogID reports whether id can be used as the last path segment of a record key.
func ValidLogID(id string) bool {
	return len(id) > 0 && len(id) <= MaxLogIDLength && !strings.ContainsAny(id, "/\x00")
}

func ValidText(text string) bool {
	n := utf8.RuneCountInString(text)
	return n > 0 && n <= MaxTextLength
}

// NewInternalMessage builds a message that satisfies the queue contract.
// An empty logID is replaced with a generated one.
func NewInternalMessage(tenantID, logID, text string, source Source, now time.Time) (InternalMessage, error) {
	tenant, err := NormalizeTenantID(tenantID)
	if err != nil {
		return InternalMessage{}, err
	}
	if !ValidText(text) {
		return InternalMessage{}, ErrInvalidText
	}
	if !source.Valid() {
		return InternalMessage{}, ErrInvalidSource
	}
	if logID == "" {
		logID = GenerateLogID()
	}
	if !ValidLogID(logID) {
		return InternalMessage{}, fmt.Errorf("invalid log_id %q", logID)
	}

	return InternalMessage{
		TenantID:   tenant,
		LogID:      logID,
		Text:       text,
		Source:     source,
		IngestedAt: now.UTC().Format(time.RFC3339Nano),
	}, nil
}
