package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"almaconnector/internal/batch"
	"almaconnector/internal/workflow"
	apperrors "almaconnector/pkg/errors"
)

func TestImportRows(t *testing.T) {
	row, err := importRows("", `{"ac_number": "AC123", "filename": "a.pdf", "access": "open", "marcid": "m-1"}`)
	require.NoError(t, err)
	assert.Equal(t, []workflow.ImportRow{{ACNumber: "AC123", Filename: "a.pdf", Access: "open", MarcID: "m-1"}}, row)

	_, err = importRows("", `{"ac_number": "AC123"}`)
	assert.True(t, apperrors.IsValidation(err))

	_, err = importRows("", "")
	assert.True(t, apperrors.IsValidation(err))

	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("ac_number,filename,access,marcid\nAC1,,,\n,b.pdf,open,\n"), 0o600))
	rows, err := importRows(path, `{"ignored": true}`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AC1", rows[0].ACNumber)
}

func TestWorkflowMetadata(t *testing.T) {
	m, err := workflowMetadata(`{"marc_id": "abc-123", "cms_id": 42}`)
	require.NoError(t, err)
	assert.Equal(t, workflow.Metadata{"marc_id": "abc-123", "cms_id": "42"}, m)

	_, err = workflowMetadata(`[1, 2]`)
	assert.Error(t, err)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.Progress(context.Background(), batch.Progress{Kind: batch.KindImport, Item: "AC1", Outcome: workflow.Outcome{RecordID: "abc-123"}})
	p.Progress(context.Background(), batch.Progress{Kind: batch.KindCreate, Item: "m-1", Err: errors.New("rejected")})
	p.Summary(&batch.Result{RunID: "r1", Processed: 1, Failed: 1, StartedAt: time.Unix(0, 0), FinishedAt: time.Unix(2, 0)})
	p.Summary(nil)

	out := buf.String()
	assert.Contains(t, out, "record.id: abc-123, ac_number: AC1")
	assert.Contains(t, out, "create: m-1, error: rejected")
	assert.Contains(t, out, "run r1: 1 processed, 1 failed, 0 skipped in 2s")
	assert.Contains(t, out, "nothing to do")
}

func TestJobsList(t *testing.T) {
	var buf bytes.Buffer
	cmd := jobsListCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "create_alma_records: Create Alma Records (Create alma records)")
	assert.Contains(t, buf.String(), "update_repository_records: Update Repository Records (Update repository records)")
}
