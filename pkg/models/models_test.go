package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeBuilder(t *testing.T) {
	env := NewEnvelopeBuilder().
		WithSource("scheduler").
		WithTask(Task{Name: "create_alma_records"}).
		WithTraceID("trace-1").
		Build()

	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	require.NotNil(t, env.Task)
	assert.Nil(t, env.Event)
	assert.Equal(t, "trace-1", env.Metadata.TraceID)
	assert.NoError(t, ValidateEnvelope(env))
}

func TestEnvelopeBuilder_LastPayloadWins(t *testing.T) {
	env := NewEnvelopeBuilder().
		WithTask(Task{Name: "x"}).
		WithEvent(Event{Type: EventBatchFinished}).
		Build()

	assert.Nil(t, env.Task)
	require.NotNil(t, env.Event)
}

func TestValidateEnvelope(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		env       *Envelope
		wantField string
	}{
		{"nil", nil, "envelope"},
		{"no id", &Envelope{Source: "s", Timestamp: now, Task: &Task{Name: "t"}}, "id"},
		{"no source", &Envelope{ID: "1", Timestamp: now, Task: &Task{Name: "t"}}, "source"},
		{"no timestamp", &Envelope{ID: "1", Source: "s", Task: &Task{Name: "t"}}, "timestamp"},
		{"empty", &Envelope{ID: "1", Source: "s", Timestamp: now}, "task"},
		{"both", &Envelope{ID: "1", Source: "s", Timestamp: now, Task: &Task{Name: "t"}, Event: &Event{Type: "e"}}, "task"},
		{"unnamed task", &Envelope{ID: "1", Source: "s", Timestamp: now, Task: &Task{}}, "task.name"},
		{"untyped event", &Envelope{ID: "1", Source: "s", Timestamp: now, Event: &Event{}}, "event.type"},
		{"valid event", &Envelope{ID: "1", Source: "s", Timestamp: now, Event: &Event{Type: EventBatchFinished}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvelope(tt.env)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.False(t, verr.IsRetryable())
		})
	}
}
