package broker

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"

	"logworker/pkg/models"
)

// PayloadField is the stream entry field holding the InternalMessage JSON.
const PayloadField = "payload"

func kafkaMessageID(m kafka.Message) string {
	return fmt.Sprintf("kafka:%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

func envelopeFromKafka(m kafka.Message, groupID string) models.PushEnvelope {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		attrs[h.Key] = string(h.Value)
	}
	if len(m.Key) > 0 {
		attrs["kafka_key"] = string(m.Key)
	}

	b := models.NewPushEnvelopeBuilder().
		WithMessageID(kafkaMessageID(m)).
		WithData(base64.StdEncoding.EncodeToString(m.Value)).
		WithAttributes(attrs).
		WithSubscription(groupID)
	if !m.Time.IsZero() {
		b = b.WithPublishTime(m.Time)
	}
	return b.Build()
}

func envelopeFromStream(id string, values map[string]interface{}, group string) models.PushEnvelope {
	var payload string
	attrs := make(map[string]string, len(values))
	for key, value := range values {
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		if key == PayloadField {
			payload = s
			continue
		}
		attrs[key] = s
	}

	return models.NewPushEnvelopeBuilder().
		WithMessageID(id).
		WithData(base64.StdEncoding.EncodeToString([]byte(payload))).
		WithAttributes(attrs).
		WithSubscription(group).
		Build()
}

func headersFromAttributes(attrs map[string]string) []kafka.Header {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return headers
}
