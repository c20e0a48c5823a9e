package broker

import (
	"context"

	"almaconnector/internal/batch"
	"almaconnector/pkg/logging"
	"almaconnector/pkg/models"
)

const source = "alma"

// EventPublisher announces finished batches on the event topic.
type EventPublisher struct {
	producer Producer
	topic    string
}

func NewEventPublisher(producer Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

// Record implements batch.Recorder.
func (p *EventPublisher) Record(ctx context.Context, res *batch.Result) error {
	env := models.NewEnvelopeBuilder().
		WithSource(source).
		WithEvent(EventFromResult(res)).
		WithTraceID(logging.GetTraceID(ctx)).
		Build()
	return p.producer.Publish(ctx, p.topic, *env)
}

func EventFromResult(res *batch.Result) models.Event {
	ev := models.Event{
		Type:      models.EventBatchFinished,
		RunID:     res.RunID,
		Kind:      string(res.Kind),
		Task:      res.Task,
		Workflow:  res.Workflow,
		Processed: res.Processed,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
		Aborted:   res.Aborted,
		Duration:  res.Duration(),
	}
	for _, f := range res.Failures {
		ev.Failures = append(ev.Failures, models.EventFailure{Item: f.Item, Code: f.Code, Message: f.Message})
	}
	return ev
}

// TaskPublisher queues task requests for the worker.
type TaskPublisher struct {
	producer Producer
	topic    string
}

func NewTaskPublisher(producer Producer, topic string) *TaskPublisher {
	return &TaskPublisher{producer: producer, topic: topic}
}

// Enqueue publishes task and returns the message id.
func (p *TaskPublisher) Enqueue(ctx context.Context, task models.Task) (string, error) {
	env := models.NewEnvelopeBuilder().
		WithSource(source).
		WithTask(task).
		WithTraceID(logging.GetTraceID(ctx)).
		Build()
	if err := p.producer.Publish(ctx, p.topic, *env); err != nil {
		return "", err
	}
	return env.ID, nil
}
