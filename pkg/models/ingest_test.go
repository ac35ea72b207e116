package models

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLogID(t *testing.T) {
	pattern := regexp.MustCompile(`^log_[0-9a-f]{16}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateLogID()
		assert.Regexp(t, pattern, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestNormalizeTenantID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lowercases", input: "Acme_Corp", want: "acme_corp"},
		{name: "keeps dashes and digits", input: "tenant-42", want: "tenant-42"},
		{name: "trims whitespace", input: "  acme ", want: "acme"},
		{name: "empty", input: "", wantErr: true},
		{name: "slash", input: "acme/other", wantErr: true},
		{name: "dot", input: "acme.corp", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxTenantIDLength+1), wantErr: true},
		{name: "max length", input: strings.Repeat("a", MaxTenantIDLength), want: strings.Repeat("a", MaxTenantIDLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTenantID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTenantID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewInternalMessage(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

	msg, err := NewInternalMessage("ACME", "", "hello", SourceTextUpload, now)
	require.NoError(t, err)

	assert.Equal(t, "acme", msg.TenantID)
	assert.True(t, strings.HasPrefix(msg.LogID, LogIDPrefix))
	assert.Equal(t, "2024-01-15T15:00:00Z", msg.IngestedAt)

	_, err = NewInternalMessage("acme", "", "", SourceTextUpload, now)
	assert.ErrorIs(t, err, ErrInvalidText)

	_, err = NewInternalMessage("acme", "", "hello", Source("csv_upload"), now)
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = NewInternalMessage("acme", "a/b", "hello", SourceJSONUpload, now)
	assert.Error(t, err)
}

func TestInternalMessage_EncodeData(t *testing.T) {
	msg := InternalMessage{
		TenantID:   "acme",
		LogID:      "log_1",
		Text:       "hello",
		Source:     SourceJSONUpload,
		IngestedAt: "2024-01-15T10:00:00Z",
	}

	data, err := msg.EncodeData()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "acme", fields["tenant_id"])
	assert.Equal(t, "json_upload", fields["source"])
}

func TestPushEnvelopeBuilder(t *testing.T) {
	env := NewPushEnvelopeBuilder().
		WithMessageID("m-1").
		WithData("Zm9v").
		WithAttribute("tenant_id", "acme").
		WithSubscription("projects/test/subscriptions/worker").
		Build()

	assert.Equal(t, "m-1", env.MessageID())
	assert.Equal(t, "Zm9v", env.Message.Data)
	assert.Equal(t, "acme", env.Message.Attributes["tenant_id"])
	assert.NotEmpty(t, env.Message.PublishTime)

	bare := NewPushEnvelopeBuilder().WithMessageID("m-2").Build()
	assert.Nil(t, bare.Message.Attributes)
}
