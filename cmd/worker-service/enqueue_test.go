package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logworker/pkg/models"
)

func TestEnqueueOptions_Message(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	msg, err := (&enqueueOptions{tenantID: "ACME", text: "hello", source: "json_upload"}).message(now)
	require.NoError(t, err)
	assert.Equal(t, "acme", msg.TenantID)
	assert.True(t, models.ValidLogID(msg.LogID))
	assert.Equal(t, models.SourceJSONUpload, msg.Source)

	msg, err = (&enqueueOptions{tenantID: "acme", logID: "log_0123456789abcdef", text: "x", source: "text_upload"}).message(now)
	require.NoError(t, err)
	assert.Equal(t, "log_0123456789abcdef", msg.LogID)

	_, err = (&enqueueOptions{tenantID: "acme", text: "x", source: "fax"}).message(now)
	assert.Error(t, err)
}
