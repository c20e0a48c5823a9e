package batch

import (
	"errors"
	"time"

	apperrors "almaconnector/pkg/errors"
)

type Kind string

const (
	KindImport Kind = "import"
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindURL    Kind = "update_url"
)

// Failure describes one item that did not go through.
type Failure struct {
	Item    string `json:"item" msgpack:"item"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Result summarises one batch run. Processed counts items that succeeded.
type Result struct {
	RunID      string    `json:"run_id" msgpack:"run_id"`
	Kind       Kind      `json:"kind" msgpack:"kind"`
	Task       string    `json:"task,omitempty" msgpack:"task,omitempty"`
	Workflow   string    `json:"workflow,omitempty" msgpack:"workflow,omitempty"`
	Processed  int       `json:"processed" msgpack:"processed"`
	Failed     int       `json:"failed" msgpack:"failed"`
	Skipped    int       `json:"skipped" msgpack:"skipped"`
	Failures   []Failure `json:"failures,omitempty" msgpack:"failures,omitempty"`
	Aborted    string    `json:"aborted,omitempty" msgpack:"aborted,omitempty"`
	StartedAt  time.Time `json:"started_at" msgpack:"started_at"`
	FinishedAt time.Time `json:"finished_at" msgpack:"finished_at"`
}

func (r *Result) HasFailures() bool {
	return r.Failed > 0 || r.Aborted != ""
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) Total() int {
	return r.Processed + r.Failed + r.Skipped
}

func (r *Result) addFailure(item string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Item: item, Code: errorCode(err), Message: err.Error()})
}

func errorCode(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperrors.ErrInternal.Code
}
