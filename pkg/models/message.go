// Package models holds the messages exchanged over the broker: task
// requests for the worker and batch outcome events.
package models

import "time"

// Envelope wraps exactly one of Task or Event.
type Envelope struct {
	ID        string    `json:"id" msgpack:"id"`
	Source    string    `json:"source" msgpack:"source"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Task      *Task     `json:"task,omitempty" msgpack:"task,omitempty"`
	Event     *Event    `json:"event,omitempty" msgpack:"event,omitempty"`
	Metadata  Metadata  `json:"metadata" msgpack:"metadata"`
}

type Metadata struct {
	TraceID string   `json:"trace_id,omitempty" msgpack:"trace_id,omitempty"`
	DLQ     *DLQInfo `json:"dlq,omitempty" msgpack:"dlq,omitempty"`
}

type DLQInfo struct {
	Reason      string    `json:"reason" msgpack:"reason"`
	SourceTopic string    `json:"source_topic" msgpack:"source_topic"`
	Timestamp   time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Task asks a worker to run one named task.
type Task struct {
	Name        string `json:"name" msgpack:"name"`
	Workflow    string `json:"workflow,omitempty" msgpack:"workflow,omitempty"`
	UserEmail   string `json:"user_email,omitempty" msgpack:"user_email,omitempty"`
	KeepAccess  bool   `json:"keep_access,omitempty" msgpack:"keep_access,omitempty"`
	ScheduledBy string `json:"scheduled_by,omitempty" msgpack:"scheduled_by,omitempty"`
}

const EventBatchFinished = "batch.finished"

// Event reports the outcome of a batch run.
type Event struct {
	Type      string         `json:"type" msgpack:"type"`
	RunID     string         `json:"run_id" msgpack:"run_id"`
	Kind      string         `json:"kind" msgpack:"kind"`
	Task      string         `json:"task,omitempty" msgpack:"task,omitempty"`
	Workflow  string         `json:"workflow,omitempty" msgpack:"workflow,omitempty"`
	Processed int            `json:"processed" msgpack:"processed"`
	Failed    int            `json:"failed" msgpack:"failed"`
	Skipped   int            `json:"skipped" msgpack:"skipped"`
	Aborted   string         `json:"aborted,omitempty" msgpack:"aborted,omitempty"`
	Failures  []EventFailure `json:"failures,omitempty" msgpack:"failures,omitempty"`
	Duration  time.Duration  `json:"duration" msgpack:"duration"`
}

type EventFailure struct {
	Item    string `json:"item" msgpack:"item"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}
