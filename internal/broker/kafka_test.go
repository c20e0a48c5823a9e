package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"almaconnector/internal/batch"
	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type recordingProducer struct {
	topics    []string
	envelopes []models.Envelope
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.Envelope) error {
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newTestConsumer(t *testing.T, encoding string, dlq Producer) *KafkaConsumer {
	t.Helper()
	codec, err := NewCodec(encoding)
	require.NoError(t, err)

	return &KafkaConsumer{
		cfg: config.KafkaConfig{
			DLQTopic: "alma_dlq",
			Retry:    config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1},
		},
		codec:       codec,
		logger:      logger.NopLogger(),
		dlqProducer: dlq,
		serviceName: "test",
	}
}

func publishOne(t *testing.T, encoding string, task models.Task) kafka.Message {
	t.Helper()
	codec, err := NewCodec(encoding)
	require.NoError(t, err)

	w := &fakeWriter{}
	p := newKafkaProducer(w, codec, logger.NopLogger())
	_, err = NewTaskPublisher(p, "alma_tasks").Enqueue(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	return w.messages[0]
}

func TestProducerConsumerRoundTrip(t *testing.T) {
	for _, encoding := range []string{"json", "msgpack"} {
		t.Run(encoding, func(t *testing.T) {
			m := publishOne(t, encoding, models.Task{Name: "create_alma_records", KeepAccess: true})
			assert.Equal(t, "alma_tasks", m.Topic)
			assert.NotEmpty(t, m.Key)

			// The consumer is configured with the other encoding; the header decides.
			other := "json"
			if encoding == "json" {
				other = "msgpack"
			}
			c := newTestConsumer(t, other, nil)

			var got models.Envelope
			c.handleMessage(context.Background(), m, func(_ context.Context, env models.Envelope) error {
				got = env
				return nil
			}, "alma_tasks")

			require.NotNil(t, got.Task)
			assert.Equal(t, "create_alma_records", got.Task.Name)
			assert.True(t, got.Task.KeepAccess)
			assert.Equal(t, string(m.Key), got.ID)
		})
	}
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(t, "json", dlq)
	m := publishOne(t, "json", models.Task{Name: "update_repository_records"})

	calls := 0
	c.handleMessage(context.Background(), m, func(context.Context, models.Envelope) error {
		calls++
		return apperrors.ErrService.WithMessage("alma down")
	}, "alma_tasks")

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.envelopes, 1)
	assert.Equal(t, "alma_dlq", dlq.topics[0])
	require.NotNil(t, dlq.envelopes[0].Metadata.DLQ)
	assert.Equal(t, "alma_tasks", dlq.envelopes[0].Metadata.DLQ.SourceTopic)
	assert.Contains(t, dlq.envelopes[0].Metadata.DLQ.Reason, "alma down")
}

func TestConsumer_ConfigurationErrorIsNotRetried(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(t, "json", dlq)
	m := publishOne(t, "json", models.Task{Name: "create_alma_records"})

	calls := 0
	c.handleMessage(context.Background(), m, func(context.Context, models.Envelope) error {
		calls++
		return apperrors.ErrConfiguration.WithMessage("no credentials")
	}, "alma_tasks")

	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.envelopes, 1)
}

func TestConsumer_PanicIsNotRetried(t *testing.T) {
	c := newTestConsumer(t, "json", nil)
	m := publishOne(t, "json", models.Task{Name: "create_alma_records"})

	calls := 0
	assert.NotPanics(t, func() {
		c.handleMessage(context.Background(), m, func(context.Context, models.Envelope) error {
			calls++
			panic("boom")
		}, "alma_tasks")
	})
	assert.Equal(t, 1, calls)
}

func TestConsumer_DropsGarbage(t *testing.T) {
	c := newTestConsumer(t, "json", nil)

	called := false
	c.handleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}, func(context.Context, models.Envelope) error {
		called = true
		return nil
	}, "alma_tasks")
	c.handleMessage(context.Background(), kafka.Message{Value: []byte(`{"id":"1"}`)}, func(context.Context, models.Envelope) error {
		called = true
		return nil
	}, "alma_tasks")

	assert.False(t, called)
}

func TestProducer_RejectsInvalidEnvelope(t *testing.T) {
	p := newKafkaProducer(&fakeWriter{}, jsonCodec{}, logger.NopLogger())
	err := p.Publish(context.Background(), "alma_tasks", models.Envelope{ID: "1"})

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEventPublisher(t *testing.T) {
	rec := &recordingProducer{}
	start := time.Now()
	res := &batch.Result{
		RunID:      "run-1",
		Kind:       batch.KindUpdate,
		Processed:  2,
		Failed:     1,
		Failures:   []batch.Failure{{Item: "abc", Code: "SERVICE_ERROR", Message: "boom"}},
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}

	require.NoError(t, NewEventPublisher(rec, "alma_events").Record(context.Background(), res))
	require.Len(t, rec.envelopes, 1)

	ev := rec.envelopes[0].Event
	require.NotNil(t, ev)
	assert.Equal(t, models.EventBatchFinished, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "update", ev.Kind)
	assert.Equal(t, time.Minute, ev.Duration)
	assert.Equal(t, []models.EventFailure{{Item: "abc", Code: "SERVICE_ERROR", Message: "boom"}}, ev.Failures)
}

func TestNewCodec(t *testing.T) {
	_, err := NewCodec("avro")
	assert.Error(t, err)

	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, "application/json", c.ContentType())
}
