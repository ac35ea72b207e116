package models

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

type Source string

const (
	SourceJSONUpload Source = "json_upload"
	SourceTextUpload Source = "text_upload"
)

func (s Source) Valid() bool {
	return s == SourceJSONUpload || s == SourceTextUpload
}

// InternalMessage is the payload the ingress gateway publishes to the queue.
type InternalMessage struct {
	TenantID   string `json:"tenant_id"`
	LogID      string `json:"log_id"`
	Text       string `json:"text"`
	Source     Source `json:"source"`
	IngestedAt string `json:"ingested_at"` // carried through to the record verbatim
}

// EncodeData returns the base64 JSON form carried in PushMessage.Data.
func (m InternalMessage) EncodeData() (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// PushEnvelope is a single delivery attempt as seen by the worker.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription" binding:"required"`
}

type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId" binding:"required"`
	PublishTime string            `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func (e PushEnvelope) MessageID() string {
	return e.Message.MessageID
}

// ProcessedRecord is the document stored at tenants/{tenant_id}/processed_logs/{log_id}.
// It is replaced in full on every successful (re)processing.
type ProcessedRecord struct {
	Source       Source    `json:"source"`
	OriginalText string    `json:"original_text"`
	ModifiedData string    `json:"modified_data"`
	IngestedAt   string    `json:"ingested_at"`
	ProcessedAt  time.Time `json:"processed_at"`
	MessageID    string    `json:"message_id"`
}
