package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// IsRetryable is false: a malformed message stays malformed.
func (e *ValidationError) IsRetryable() bool {
	return false
}

func ValidateEnvelope(msg *Envelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "message envelope cannot be nil"}
	}
	if msg.ID == "" {
		return &ValidationError{Field: "id", Message: "message ID is required"}
	}
	if msg.Source == "" {
		return &ValidationError{Field: "source", Message: "message source is required"}
	}
	if msg.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "message timestamp is required"}
	}

	switch {
	case msg.Task != nil && msg.Event != nil:
		return &ValidationError{Field: "task", Message: "message carries both a task and an event"}
	case msg.Task != nil:
		if msg.Task.Name == "" {
			return &ValidationError{Field: "task.name", Message: "task name is required"}
		}
	case msg.Event != nil:
		if msg.Event.Type == "" {
			return &ValidationError{Field: "event.type", Message: "event type is required"}
		}
	default:
		return &ValidationError{Field: "task", Message: "message carries neither a task nor an event"}
	}
	return nil
}
