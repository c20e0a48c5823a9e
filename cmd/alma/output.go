package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"almaconnector/internal/batch"
)

// printer writes the colored command line output: green for success, red
// for errors, yellow for warnings and magenta for aborted runs.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	abort   lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:     out,
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		abort:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	}
}

func (p *printer) line(style lipgloss.Style, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, style.Render(msg))
}

func (p *printer) Success(msg string) { p.line(p.success, msg) }
func (p *printer) Error(msg string)   { p.line(p.failure, msg) }
func (p *printer) Warning(msg string) { p.line(p.warning, msg) }
func (p *printer) Abort(msg string)   { p.line(p.abort, msg) }

// Progress prints one line per attempted batch item.
func (p *printer) Progress(_ context.Context, pr batch.Progress) {
	if pr.Err != nil {
		p.Error(fmt.Sprintf("%s: %s, error: %v", pr.Kind, pr.Item, pr.Err))
		return
	}

	switch pr.Kind {
	case batch.KindImport:
		p.Success(fmt.Sprintf("record.id: %s, ac_number: %s", pr.Outcome.RecordID, pr.Item))
	case batch.KindCreate:
		p.Success(fmt.Sprintf("marc_id: %s, mms_id: %s", pr.Item, pr.Outcome.MMSID))
	case batch.KindUpdate:
		p.Success(fmt.Sprintf("marc_id: %s updated", pr.Item))
	default:
		p.Success(fmt.Sprintf("mms_id: %s updated", pr.Item))
	}
}

// Summary prints the totals of a finished run. A nil result means the run
// was not configured and has already been logged.
func (p *printer) Summary(res *batch.Result) {
	if res == nil {
		p.Warning("nothing to do, see the log for the missing configuration")
		return
	}

	msg := fmt.Sprintf("run %s: %d processed, %d failed, %d skipped in %s",
		res.RunID, res.Processed, res.Failed, res.Skipped, res.Duration().Round(time.Millisecond))
	switch {
	case res.Aborted != "":
		p.Abort(msg + ", aborted: " + res.Aborted)
	case res.Failed > 0:
		p.Warning(msg)
	default:
		p.Success(msg)
	}
}
