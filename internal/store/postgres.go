package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"logworker/pkg/models"
)

const BackendPostgres = "postgres"

const upsertRecordSQL = `
INSERT INTO processed_logs (
	tenant_id, log_id, path, source, original_text, modified_data, ingested_at, processed_at, message_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tenant_id, log_id) DO UPDATE SET
	path = EXCLUDED.path,
	source = EXCLUDED.source,
	original_text = EXCLUDED.original_text,
	modified_data = EXCLUDED.modified_data,
	ingested_at = EXCLUDED.ingested_at,
	processed_at = EXCLUDED.processed_at,
	message_id = EXCLUDED.message_id`

const selectRecordSQL = `
SELECT source, original_text, modified_data, ingested_at, processed_at, message_id
FROM processed_logs
WHERE tenant_id = $1 AND log_id = $2`

// PostgresStore maps the namespace onto a table keyed by (tenant_id, log_id).
// The schema is owned by pkg/migrations. Text columns are BYTEA so NUL survives.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, tenantID, logID string, rec models.ProcessedRecord) error {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return newError(BackendPostgres, "put", KindInvalidKey, err)
	}

	_, err := s.db.ExecContext(ctx, upsertRecordSQL,
		key.TenantID,
		key.LogID,
		key.Path(),
		string(rec.Source),
		[]byte(rec.OriginalText),
		[]byte(rec.ModifiedData),
		rec.IngestedAt,
		rec.ProcessedAt.UTC(),
		rec.MessageID,
	)
	if err != nil {
		return newError(BackendPostgres, "put", classifyPostgres(err), err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, logID string) (models.ProcessedRecord, error) {
	key := Key{TenantID: tenantID, LogID: logID}
	if err := key.Validate(); err != nil {
		return models.ProcessedRecord{}, newError(BackendPostgres, "get", KindInvalidKey, err)
	}

	var (
		rec                    models.ProcessedRecord
		source                 string
		originalText, modified []byte
	)
	err := s.db.QueryRowContext(ctx, selectRecordSQL, key.TenantID, key.LogID).Scan(
		&source,
		&originalText,
		&modified,
		&rec.IngestedAt,
		&rec.ProcessedAt,
		&rec.MessageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ProcessedRecord{}, newError(BackendPostgres, "get", classifyPostgres(err), err)
	}

	rec.Source = models.Source(source)
	rec.OriginalText = string(originalText)
	rec.ModifiedData = string(modified)
	rec.ProcessedAt = rec.ProcessedAt.UTC()
	return rec, nil
}

func classifyPostgres(err error) ErrorKind {
	if kind := classifyCommon(err); kind != "" {
		return kind
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, pq.ErrSSLNotSupported) {
		return KindConnection
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return KindUnknown
	}

	code := string(pqErr.Code)
	switch {
	case strings.HasPrefix(code, "08"):
		return KindConnection
	case strings.HasPrefix(code, "28"), code == "42501":
		return KindPermission
	case strings.HasPrefix(code, "53"):
		return KindQuota
	case code == "42P01", code == "3D000":
		return KindNotFoundTarget
	case code == "57014":
		return KindTimeout
	case strings.HasPrefix(code, "57P"), code == "40001", code == "40P01":
		return KindUnavailable
	case strings.HasPrefix(code, "22"):
		return KindEncoding
	default:
		return KindUnknown
	}
}
