// Package store persists processed records under a per-tenant namespace.
//
// Every backend keys records by (tenant_id, log_id) and implements Put as a full
// replace, so reprocessing a redelivered message overwrites rather than appends.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"logworker/pkg/models"
)

// ErrNotFound is returned by Get when no record exists. It is not a *Error.
var ErrNotFound = errors.New("record not found")

type Store interface {
	Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error
	Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error)
}

type Key struct {
	TenantID string
	LogID    string
}

func (k Key) Path() string {
	return fmt.Sprintf("tenants/%s/processed_logs/%s", k.TenantID, k.LogID)
}

func (k Key) Validate() error {
	if !models.ValidTenantID(k.TenantID) {
		return fmt.Errorf("invalid tenant_id %q", k.TenantID)
	}
	if !models.ValidLogID(k.LogID) {
		return fmt.Errorf("invalid log_id %q", k.LogID)
	}
	return nil
}

type ErrorKind string

const (
	KindConnection     ErrorKind = "connection"
	KindPermission     ErrorKind = "permission"
	KindNotFoundTarget ErrorKind = "not_found_target"
	KindQuota          ErrorKind = "quota"
	KindTimeout        ErrorKind = "timeout"
	KindUnavailable    ErrorKind = "unavailable"
	KindEncoding       ErrorKind = "encoding"
	KindInvalidKey     ErrorKind = "invalid_key"
	KindUnknown        ErrorKind = "unknown"
)

// Error is a failed store operation. Callers treat every Error as transient.
type Error struct {
	Op      string
	Backend string
	Kind    ErrorKind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s failed (%s): %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) IsRetryable() bool {
	return true
}

func newError(backend, op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Backend: backend, Kind: kind, Err: err}
}

// classifyCommon handles failures every backend shares; it returns "" when the
// backend-specific classifier must decide.
func classifyCommon(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	return ""
}

// document is the serialized ProcessedRecord shared by the key-value backends.
type document struct {
	TenantID     string `json:"tenant_id" bson:"tenant_id"`
	LogID        string `json:"log_id" bson:"log_id"`
	Source       string `json:"source" bson:"source"`
	OriginalText string `json:"original_text" bson:"original_text"`
	ModifiedData string `json:"modified_data" bson:"modified_data"`
	IngestedAt   string `json:"ingested_at" bson:"ingested_at"`
	ProcessedAt  string `json:"processed_at" bson:"processed_at"`
	MessageID    string `json:"message_id" bson:"message_id"`
}

func newDocument(key Key, rec models.ProcessedRecord) document {
	return document{
		TenantID:     key.TenantID,
		LogID:        key.LogID,
		Source:       string(rec.Source),
		OriginalText: rec.OriginalText,
		ModifiedData: rec.ModifiedData,
		IngestedAt:   rec.IngestedAt,
		ProcessedAt:  rec.ProcessedAt.UTC().Format(time.RFC3339Nano),
		MessageID:    rec.MessageID,
	}
}

func (d document) record() (models.ProcessedRecord, error) {
	processedAt, err := time.Parse(time.RFC3339Nano, d.ProcessedAt)
	if err != nil {
		return models.ProcessedRecord{}, fmt.Errorf("parse processed_at: %w", err)
	}

	return models.ProcessedRecord{
		Source:       models.Source(d.Source),
		OriginalText: d.OriginalText,
		ModifiedData: d.ModifiedData,
		IngestedAt:   d.IngestedAt,
		ProcessedAt:  processedAt,
		MessageID:    d.MessageID,
	}, nil
}
