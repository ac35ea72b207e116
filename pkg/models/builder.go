package models

import "time"

type PushEnvelopeBuilder struct {
	envelope *PushEnvelope
}

func NewPushEnvelopeBuilder() *PushEnvelopeBuilder {
	return &PushEnvelopeBuilder{
		envelope: &PushEnvelope{
			Message: PushMessage{
				Attributes: make(map[string]string),
			},
		},
	}
}

func (b *PushEnvelopeBuilder) WithMessageID(id string) *PushEnvelopeBuilder {
	b.envelope.Message.MessageID = id
	return b
}

func (b *PushEnvelopeBuilder) WithData(data string) *PushEnvelopeBuilder {
	b.envelope.Message.Data = data
	return b
}

// WithMessage encodes msg into the data field. Encoding errors leave data empty,
// which the worker treats as a poison message.
func (b *PushEnvelopeBuilder) WithMessage(msg InternalMessage) *PushEnvelopeBuilder {
	data, err := msg.EncodeData()
	if err != nil {
		data = ""
	}
	b.envelope.Message.Data = data
	return b
}

func (b *PushEnvelopeBuilder) WithPublishTime(t time.Time) *PushEnvelopeBuilder {
	b.envelope.Message.PublishTime = t.UTC().Format(time.RFC3339Nano)
	return b
}

func (b *PushEnvelopeBuilder) WithAttribute(key, value string) *PushEnvelopeBuilder {
	b.envelope.Message.Attributes[key] = value
	return b
}

func (b *PushEnvelopeBuilder) WithAttributes(attrs map[string]string) *PushEnvelopeBuilder {
	for k, v := range attrs {
		b.envelope.Message.Attributes[k] = v
	}
	return b
}

func (b *PushEnvelopeBuilder) WithSubscription(subscription string) *PushEnvelopeBuilder {
	b.envelope.Subscription = subscription
	return b
}

func (b *PushEnvelopeBuilder) Build() PushEnvelope {
	if b.envelope.Message.PublishTime == "" {
		b.envelope.Message.PublishTime = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if len(b.envelope.Message.Attributes) == 0 {
		b.envelope.Message.Attributes = nil
	}
	return *b.envelope
}
