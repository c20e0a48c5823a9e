// Package batch runs a workflow once per item and keeps going when single
// items fail.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"almaconnector/internal/alma"
	"almaconnector/internal/constants"
	"almaconnector/internal/logger"
	"almaconnector/internal/repository"
	"almaconnector/internal/workflow"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/logging"
	"almaconnector/pkg/metrics"
)

// Recorder receives every finished result: the run store, the event
// publisher and the error mail all hook in here.
type Recorder interface {
	Record(ctx context.Context, result *Result) error
}

type RecorderFunc func(ctx context.Context, result *Result) error

func (f RecorderFunc) Record(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

type Option func(*Runner)

// WithCooldown sets the pause after every attempted import.
func WithCooldown(d time.Duration) Option {
	return func(r *Runner) {
		r.cooldown = d
	}
}

// WithSleep replaces the cooldown wait, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

func WithRecorder(recorders ...Recorder) Option {
	return func(r *Runner) {
		r.recorders = append(r.recorders, recorders...)
	}
}

// WithProgress reports every attempted item as it completes.
func WithProgress(fn func(ctx context.Context, p Progress)) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

func WithRunID(newID func() string) Option {
	return func(r *Runner) {
		r.newRunID = newID
	}
}

type Runner struct {
	dispatcher *workflow.Dispatcher
	log        logger.Logger
	cooldown   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	recorders  []Recorder
	progress   func(ctx context.Context, p Progress)
	newRunID   func() string
}

// Progress describes one attempted item.
type Progress struct {
	Kind    Kind
	Item    string
	Outcome workflow.Outcome
	Err     error
}

func NewRunner(dispatcher *workflow.Dispatcher, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		dispatcher: dispatcher,
		log:        log,
		cooldown:   constants.DefaultImportCooldown,
		sleep:      sleepContext,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ImportRows imports one repository record per row. Rows without an AC
// number are skipped; every attempted import is followed by the cooldown.
func (r *Runner) ImportRows(ctx context.Context, name string, identity repository.Identity, rows []workflow.ImportRow, svc alma.Service) (*Result, error) {
	name, err := r.resolve(ctx, workflow.KindImport, name)
	if err != nil {
		return nil, err
	}
	ctx, res := r.start(ctx, KindImport, name)

	for _, row := range rows {
		if row.ACNumber == "" {
			res.Skipped++
			metrics.IncBatchItem(string(KindImport), "skipped")
			continue
		}

		if err = r.item(ctx, res, row.ACNumber, []interface{}{"ac_number", row.ACNumber, "filename", row.Filename}, func() (workflow.Outcome, error) {
			out, err := r.dispatcher.Import(ctx, name, identity, row, svc)
			if err == nil {
				r.log.InfowCtx(ctx, "record imported", "ac_number", row.ACNumber, "record_id", out.RecordID, "mms_id", out.MMSID)
			}
			return out, err
		}); err != nil {
			break
		}

		if err = r.sleep(ctx, r.cooldown); err != nil {
			break
		}
	}

	return r.finish(ctx, res, err)
}

// CreateAlmaRecords creates one Alma record per (marc_id, cms_id) pair.
func (r *Runner) CreateAlmaRecords(ctx context.Context, name string, identity repository.Identity, svc alma.Service, pairs []workflow.Pair) (*Result, error) {
	name, err := r.resolve(ctx, workflow.KindCreate, name)
	if err != nil {
		return nil, err
	}
	ctx, res := r.start(ctx, KindCreate, name)

	for _, p := range pairs {
		metadata := workflow.Metadata{workflow.KeyMarcID: p.SourceID, workflow.KeyCMSID: p.TargetID}
		if err = r.item(ctx, res, p.SourceID, []interface{}{"marc_id", p.SourceID, "cms_id", p.TargetID}, func() (workflow.Outcome, error) {
			out, err := r.dispatcher.Create(ctx, name, identity, svc, metadata)
			if err == nil {
				r.log.InfowCtx(ctx, "alma record created", "marc_id", p.SourceID, "mms_id", out.MMSID)
			}
			return out, err
		}); err != nil {
			break
		}
	}

	return r.finish(ctx, res, err)
}

// UpdateRepositoryRecords refreshes one repository record per
// (marc_id, alma_id) pair.
func (r *Runner) UpdateRepositoryRecords(ctx context.Context, name string, identity repository.Identity, svc alma.Service, pairs []workflow.Pair, keepAccess bool) (*Result, error) {
	name, err := r.resolve(ctx, workflow.KindUpdate, name)
	if err != nil {
		return nil, err
	}
	ctx, res := r.start(ctx, KindUpdate, name)

	for _, p := range pairs {
		req := workflow.UpdateRequest{
			Metadata:     workflow.Metadata{workflow.KeyMarcID: p.SourceID, workflow.KeyAlmaID: p.TargetID},
			UpdateAccess: !keepAccess,
		}
		if err = r.item(ctx, res, p.SourceID, []interface{}{"marc_id", p.SourceID, "alma_id", p.TargetID}, func() (workflow.Outcome, error) {
			out, err := r.dispatcher.Update(ctx, name, identity, svc, req)
			if err == nil {
				r.log.InfowCtx(ctx, "repository record updated", "marc_id", p.SourceID, "alma_id", p.TargetID)
			}
			return out, err
		}); err != nil {
			break
		}
	}

	return r.finish(ctx, res, err)
}

// UpdateURLs writes each new URL into the 856 $u of the Alma record.
func (r *Runner) UpdateURLs(ctx context.Context, svc alma.Service, updates []URLUpdate) (*Result, error) {
	ctx, res := r.start(ctx, KindURL, "")

	var err error
	for _, u := range updates {
		if u.MMSID == "" {
			res.Skipped++
			metrics.IncBatchItem(string(KindURL), "skipped")
			continue
		}
		if err = r.item(ctx, res, u.MMSID, []interface{}{"mms_id", u.MMSID, "url", u.URL}, func() (workflow.Outcome, error) {
			_, err := svc.UpdateField(ctx, u.MMSID, constants.URLFieldPath, u.URL)
			return workflow.Outcome{MMSID: u.MMSID}, err
		}); err != nil {
			break
		}
	}

	return r.finish(ctx, res, err)
}

// resolve looks the workflow up once, so an unknown name fails the batch
// before the first item instead of failing every item.
func (r *Runner) resolve(ctx context.Context, kind workflow.Kind, name string) (string, error) {
	resolved, err := r.dispatcher.Resolve(kind, name)
	if err != nil {
		r.log.ErrorwCtx(ctx, "workflow not registered", "kind", kind, "workflow", name, "error", err.Error())
		return "", err
	}
	return resolved, nil
}

func (r *Runner) start(ctx context.Context, kind Kind, name string) (context.Context, *Result) {
	runID := r.newRunID()
	ctx = logging.WithRunID(ctx, runID)

	res := &Result{
		RunID:     runID,
		Kind:      kind,
		Task:      logging.GetTask(ctx),
		Workflow:  name,
		StartedAt: time.Now().UTC(),
	}
	r.log.InfowCtx(ctx, "batch started", "kind", kind, "workflow", name)
	return ctx, res
}

// item runs fn for one batch entry. Item failures are logged and counted;
// only a batch-level error is returned.
func (r *Runner) item(ctx context.Context, res *Result, id string, fields []interface{}, fn func() (workflow.Outcome, error)) error {
	var out workflow.Outcome
	err := apperrors.Guard(func() error {
		var err error
		out, err = fn()
		return err
	})
	if err == nil {
		res.Processed++
		metrics.IncBatchItem(string(res.Kind), "processed")
		r.report(ctx, Progress{Kind: res.Kind, Item: id, Outcome: out})
		return nil
	}

	if aborts(ctx, err) {
		return err
	}

	res.addFailure(id, err)
	metrics.IncBatchItem(string(res.Kind), "failed")
	r.log.ErrorwCtx(ctx, "batch item failed", append(fields, "error", err.Error())...)
	r.report(ctx, Progress{Kind: res.Kind, Item: id, Err: err})
	return nil
}

func (r *Runner) report(ctx context.Context, p Progress) {
	if r.progress != nil {
		r.progress(ctx, p)
	}
}

func aborts(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return apperrors.IsConfiguration(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) finish(ctx context.Context, res *Result, runErr error) (*Result, error) {
	res.FinishedAt = time.Now().UTC()
	if runErr != nil {
		res.Aborted = runErr.Error()
	}
	metrics.ObserveBatchDuration(string(res.Kind), res.Duration())

	if runErr != nil {
		r.log.ErrorwCtx(ctx, "batch aborted", "kind", res.Kind, "processed", res.Processed, "failed", res.Failed, "error", runErr.Error())
	} else {
		r.log.InfowCtx(ctx, "batch finished", "kind", res.Kind, "processed", res.Processed, "failed", res.Failed, "skipped", res.Skipped)
	}

	// Recording must outlive a cancelled batch context.
	recordCtx := context.WithoutCancel(ctx)
	for _, rec := range r.recorders {
		if err := rec.Record(recordCtx, res); err != nil {
			r.log.WarnwCtx(ctx, "failed to record batch result", "error", err.Error())
		}
	}

	return res, runErr
}

// URLUpdate is one row of the url update CSV.
type URLUpdate struct {
	MMSID string
	URL   string
}

